// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Encoding identifies how a payload is stored. The values are
// persisted in the encoding column; do not renumber.
type Encoding uint8

const (
	EncodingRaw  Encoding = 0
	EncodingLZ4  Encoding = 1
	EncodingZstd Encoding = 2
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingLZ4:
		return "lz4"
	case EncodingZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", e)
	}
}

// Digest is a BLAKE3 keyed hash of an uncompressed payload.
type Digest [32]byte

// digestKey separates payload digests from any other BLAKE3 use of
// the same bytes. ASCII, zero-padded to the 32 bytes keyed mode needs.
var digestKey = [32]byte{
	't', 'o', 'o', 'l', 's', 'h', 'e', 'l', 'f', '.', 'b', 'l', 'o', 'b', '.',
	'p', 'a', 'y', 'l', 'o', 'a', 'd',
}

func digestPayload(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("blobstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("blobstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("blobstore: zstd decoder initialization failed: " + err.Error())
	}
}

var errIncompressible = errors.New("payload is incompressible")

// selectEncoding picks the encoding for a MIME type. Parameters after
// ";" are ignored.
func selectEncoding(mimeType string) Encoding {
	base := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))

	switch {
	case strings.HasPrefix(base, "text/"):
		return EncodingZstd
	case base == "application/json", base == "application/xml",
		base == "application/javascript", base == "application/x-ndjson",
		base == "image/svg+xml", strings.HasSuffix(base, "+json"):
		return EncodingZstd
	case base == "image/png", base == "image/jpeg", base == "image/gif",
		base == "image/webp", base == "image/avif",
		base == "application/zip", base == "application/gzip",
		base == "application/pdf",
		strings.HasPrefix(base, "video/"), strings.HasPrefix(base, "audio/"):
		return EncodingRaw
	default:
		return EncodingLZ4
	}
}

// encodePayload compresses data for storage. The returned slice is
// data itself for EncodingRaw.
func encodePayload(data []byte, mimeType string) ([]byte, Encoding, error) {
	encoding := selectEncoding(mimeType)
	if len(data) == 0 {
		return data, EncodingRaw, nil
	}

	var (
		encoded []byte
		err     error
	)
	switch encoding {
	case EncodingRaw:
		return data, EncodingRaw, nil
	case EncodingZstd:
		encoded = zstdEncoder.EncodeAll(data, nil)
		if len(encoded) >= len(data) {
			err = errIncompressible
		}
	case EncodingLZ4:
		encoded, err = compressLZ4(data)
	}
	if errors.Is(err, errIncompressible) {
		return data, EncodingRaw, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return encoded, encoding, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

// decodePayload reverses encodePayload and checks the result against
// the recorded size and digest. Every failure wraps ErrCorrupt.
func decodePayload(stored []byte, encoding Encoding, size int64, digest Digest) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch encoding {
	case EncodingRaw:
		data = stored
	case EncodingLZ4:
		data = make([]byte, size)
		var read int
		read, err = lz4.UncompressBlock(stored, data)
		if err == nil && int64(read) != size {
			err = fmt.Errorf("lz4 decoded %d bytes, expected %d", read, size)
		}
	case EncodingZstd:
		data, err = zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
	default:
		err = fmt.Errorf("unknown encoding %d", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%w: payload is %d bytes, recorded size %d", ErrCorrupt, len(data), size)
	}
	if digestPayload(data) != digest {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return data, nil
}
