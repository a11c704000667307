// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/toolshelf/cmd/toolshelf/cli"
	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
)

type addParams struct {
	cli.WorkspaceFlags
	cli.JSONOutput
	Name      string `flag:"name,n"   desc:"stored filename (default: base name of the path)"`
	Type      string `flag:"type,t"   desc:"MIME type (default: from extension, then content sniffing)"`
	Temporary bool   `flag:"temporary" desc:"store as a temporary file eligible for collection"`
	Origin    string `flag:"origin"   desc:"directive of the tool that produced the file"`
}

// addResult reports the stored id and, for images, how thumbnail
// derivation went.
type addResult struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

func addCommand(out io.Writer) *cli.Command {
	var params addParams

	return &cli.Command{
		Name:    "add",
		Summary: "Store a file",
		Usage:   "toolshelf file add <path> [flags]",
		Description: `Read a file from disk and store it in the File Library. Prints the
new file id. Image files are thumbnailed before the command returns.`,
		Examples: []cli.Example{
			{
				Description: "Store a screenshot as a temporary file",
				Command:     "toolshelf file add --temporary --origin image-resizer shot.png",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := cli.RequireArgs(args, 1, "a file path"); err != nil {
				return err
			}
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := params.Name
			if name == "" {
				name = filepath.Base(path)
			}
			mimeType := params.Type
			if mimeType == "" {
				mimeType = detectType(name, data)
			}

			result := addResult{Type: mimeType}
			var events <-chan filelibrary.Event
			err = cli.WithWorkspace(ctx, params.WorkspaceFlags, logger, func(workspace *cli.Workspace) error {
				// Closing the workspace ends the subscription.
				events, _ = workspace.Library.Subscribe(8)

				id, err := workspace.Library.AddFile(ctx, data, name, mimeType, params.Temporary, params.Origin)
				if err != nil {
					return err
				}
				result.ID = id
				return nil
			})
			if err != nil {
				return err
			}
			result.Thumbnail = thumbnailOutcome(events, result.ID)

			if done, err := params.EmitJSON(out, result); done {
				return err
			}
			fmt.Fprintln(out, result.ID)
			if result.Thumbnail != "" {
				logger.Info("thumbnail", "file", result.ID, "outcome", result.Thumbnail)
			}
			return nil
		},
	}
}

// thumbnailOutcome drains events after the library closed and
// describes the thumbnail result for id, or "" if none was derived.
func thumbnailOutcome(events <-chan filelibrary.Event, id string) string {
	outcome := ""
	for event := range events {
		if event.FileID != id {
			continue
		}
		switch event.Kind {
		case filelibrary.EventThumbnailAttached:
			outcome = "attached"
		case filelibrary.EventThumbnailFailed:
			outcome = fmt.Sprintf("failed: %v", event.Err)
		}
	}
	return outcome
}

// detectType picks a MIME type from the file extension, falling back
// to content sniffing.
func detectType(name string, data []byte) string {
	if byExtension := mime.TypeByExtension(filepath.Ext(name)); byExtension != "" {
		return byExtension
	}
	return http.DetectContentType(data)
}
