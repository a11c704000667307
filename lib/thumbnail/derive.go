// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxEdge is the longest-edge cap in pixels.
	DefaultMaxEdge = 150

	// DefaultQuality is the JPEG quality used for thumbnails.
	DefaultQuality = 80

	// maxSourcePixels rejects sources whose header declares more
	// pixels than a thumbnail job should ever decode.
	maxSourcePixels = 64 * 1024 * 1024

	// MimeType is the type of every derived thumbnail.
	MimeType = "image/jpeg"
)

var (
	// ErrUnsupportedFormat means no registered decoder recognized the
	// source bytes (SVG, HEIC, truncated files).
	ErrUnsupportedFormat = errors.New("thumbnail: unsupported image format")

	// ErrTooLarge means the source dimensions exceed the decode limit.
	ErrTooLarge = errors.New("thumbnail: source image too large")
)

// Thumbnail is an encoded preview.
type Thumbnail struct {
	Data   []byte
	Width  int
	Height int
}

// FitWithin returns the dimensions of a width×height image scaled so
// its longest edge is at most maxEdge. Aspect ratio is preserved to
// the nearest pixel and neither dimension drops below 1. Images that
// already fit are returned unchanged.
func FitWithin(width, height, maxEdge int) (int, int) {
	if width <= maxEdge && height <= maxEdge {
		return width, height
	}
	scale := float64(maxEdge) / float64(max(width, height))
	scaledWidth := int(math.Round(float64(width) * scale))
	scaledHeight := int(math.Round(float64(height) * scale))
	return max(1, min(scaledWidth, maxEdge)), max(1, min(scaledHeight, maxEdge))
}

// Derive decodes data and encodes a JPEG thumbnail whose longest edge
// is at most maxEdge. Non-positive maxEdge or quality select the
// defaults.
func Derive(data []byte, maxEdge, quality int) (Thumbnail, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Thumbnail{}, ErrUnsupportedFormat
		}
		return Thumbnail{}, fmt.Errorf("thumbnail: reading header: %w", err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return Thumbnail{}, fmt.Errorf("thumbnail: invalid dimensions %dx%d", config.Width, config.Height)
	}
	if int64(config.Width)*int64(config.Height) > maxSourcePixels {
		return Thumbnail{}, fmt.Errorf("%w: %dx%d", ErrTooLarge, config.Width, config.Height)
	}

	source, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Thumbnail{}, fmt.Errorf("thumbnail: decoding: %w", err)
	}

	bounds := source.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), maxEdge)
	destination := image.NewRGBA(image.Rect(0, 0, width, height))

	// JPEG has no alpha channel; composite onto white.
	draw.Draw(destination, destination.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(destination, destination.Bounds(), source, bounds, draw.Over, nil)

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, destination, &jpeg.Options{Quality: quality}); err != nil {
		return Thumbnail{}, fmt.Errorf("thumbnail: encoding: %w", err)
	}
	return Thumbnail{Data: encoded.Bytes(), Width: width, Height: height}, nil
}
