// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
)

// fileView is the JSON shape of a stored file, without its bytes.
type fileView struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	Type           string    `json:"type"`
	Size           int64     `json:"size"`
	Temporary      bool      `json:"temporary"`
	OriginTool     string    `json:"origin_tool,omitempty"`
	HasThumbnail   bool      `json:"has_thumbnail"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

func newView(file *filelibrary.StoredFile) fileView {
	return fileView{
		ID:             file.ID,
		Filename:       file.Filename,
		Type:           file.Type,
		Size:           file.Size,
		Temporary:      file.IsTemporary,
		OriginTool:     file.OriginTool,
		HasThumbnail:   file.HasThumbnail(),
		CreatedAt:      file.CreatedAt,
		LastAccessedAt: file.LastAccessedAt,
	}
}

func lifecycle(temporary bool) string {
	if temporary {
		return "temporary"
	}
	return "permanent"
}

func writeDetail(w io.Writer, file *filelibrary.StoredFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", file.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", file.Filename)
	fmt.Fprintf(tw, "Type:\t%s\n", file.Type)
	fmt.Fprintf(tw, "Size:\t%s\n", humanize.IBytes(uint64(file.Size)))
	fmt.Fprintf(tw, "Lifecycle:\t%s\n", lifecycle(file.IsTemporary))
	if file.OriginTool != "" {
		fmt.Fprintf(tw, "Origin:\t%s\n", file.OriginTool)
	}
	if file.HasThumbnail() {
		fmt.Fprintf(tw, "Thumbnail:\t%s, %s\n", file.ThumbnailType, humanize.IBytes(uint64(len(file.ThumbnailBlob))))
	}
	fmt.Fprintf(tw, "Added:\t%s\n", file.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Accessed:\t%s\n", file.LastAccessedAt.Format(time.RFC3339))
	tw.Flush()
}

func writeTable(w io.Writer, files []*filelibrary.StoredFile, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSIZE\tLIFECYCLE\tADDED")
	for _, file := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			file.ID, file.Filename, file.Type,
			humanize.IBytes(uint64(file.Size)),
			lifecycle(file.IsTemporary),
			humanize.RelTime(file.CreatedAt, now, "ago", "from now"))
	}
	tw.Flush()
}
