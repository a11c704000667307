// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/config"
	"github.com/bureau-foundation/toolshelf/lib/testutil"
	"github.com/bureau-foundation/toolshelf/lib/thumbnail"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Root = root
	cfg.Paths.Database = filepath.Join(root, "db", "toolshelf.db")
	cfg.Paths.Tools = filepath.Join(root, "tools")
	return cfg
}

func writeTool(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenWorkspaceWithoutToolsDirectory(t *testing.T) {
	cfg := testConfig(t)
	workspace, err := openWorkspace(context.Background(), cfg, clock.Fake(time.Unix(1_700_000_000, 0)), nil)
	if err != nil {
		t.Fatalf("openWorkspace() error: %v", err)
	}
	defer workspace.Close()

	if got := len(workspace.Registry.All()); got != 0 {
		t.Errorf("registry has %d tools, want 0", got)
	}
	if _, err := os.Stat(cfg.Paths.Database); err != nil {
		t.Errorf("database not created: %v", err)
	}
	if free, err := workspace.DiskFree(); err != nil || free == 0 {
		t.Errorf("DiskFree() = %d, %v, want free space", free, err)
	}

	ctx := context.Background()
	id, err := workspace.Library.AddFile(ctx, []byte("hello"), "a.txt", "text/plain", true, "")
	if err != nil {
		t.Fatalf("AddFile() error: %v", err)
	}
	file, err := workspace.Library.GetFile(ctx, id)
	if err != nil || file == nil {
		t.Fatalf("GetFile() = %v, %v", file, err)
	}
}

func TestOpenWorkspaceLoadsTools(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg.Paths.Tools, "image-resizer.jsonc", `{
		// Resizes images.
		"title": "Image Resizer",
		"route": "/tool/image-resizer",
		"inputConfig": {"acceptsMimeTypes": ["image/*"]},
		"outputConfig": {"transferableContent": [
			{"dataType": "fileReference", "stateKey": "processedFileId", "mimeType": "image/*"},
		]},
	}`)
	writeTool(t, cfg.Paths.Tools, "image-gallery.json",
		`{"title": "Image Gallery", "route": "/tool/image-gallery", "inputConfig": {"acceptsMimeTypes": ["image/*"]}}`)

	workspace, err := openWorkspace(context.Background(), cfg, clock.Fake(time.Unix(1_700_000_000, 0)), nil)
	if err != nil {
		t.Fatalf("openWorkspace() error: %v", err)
	}
	defer workspace.Close()

	compatible, err := workspace.Registry.Compatible("image-resizer", "image-gallery")
	if err != nil || !compatible {
		t.Errorf("Compatible(image-resizer, image-gallery) = %v, %v, want true", compatible, err)
	}
	bus, err := workspace.NewBus()
	if err != nil {
		t.Fatalf("NewBus() error: %v", err)
	}
	if err := bus.Signal("image-resizer", "image-gallery"); err != nil {
		t.Errorf("Signal() error: %v", err)
	}
}

func TestOpenWorkspaceRejectsBadTools(t *testing.T) {
	cfg := testConfig(t)
	writeTool(t, cfg.Paths.Tools, "broken.json", `{"title": ""}`)

	_, err := openWorkspace(context.Background(), cfg, clock.Fake(time.Unix(1_700_000_000, 0)), nil)
	if err == nil || !strings.Contains(err.Error(), "broken.json") {
		t.Errorf("openWorkspace() = %v, want error naming broken.json", err)
	}
}

func TestOpenWorkspaceHonorsConfigFlag(t *testing.T) {
	cfg := testConfig(t)
	configPath := filepath.Join(cfg.Paths.Root, "toolshelf.yaml")
	content := "paths:\n  root: " + cfg.Paths.Root + "\nlibrary:\n  max_total: 10 B\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	err := WithWorkspace(context.Background(), WorkspaceFlags{ConfigPath: configPath}, nil, func(workspace *Workspace) error {
		if workspace.Config.Paths.Database != filepath.Join(cfg.Paths.Root, "toolshelf.db") {
			t.Errorf("database = %s", workspace.Config.Paths.Database)
		}
		_, err := workspace.Library.AddFile(context.Background(), []byte("more than ten bytes"), "big.txt", "text/plain", false, "")
		if err == nil {
			t.Error("AddFile() over the configured limit succeeded")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithWorkspace() error: %v", err)
	}
}

func TestNewLibraryClosesDeriverOnError(t *testing.T) {
	deriver := thumbnail.New(thumbnail.Config{Workers: 2, QueueSize: 1})

	library, err := newLibrary(nil, deriver, clock.Fake(time.Unix(1_700_000_000, 0)), nil)
	if err == nil {
		library.Close()
		t.Fatal("newLibrary without a store succeeded")
	}
	if deriver.Submit(thumbnail.Job{FileID: "after-failure", MimeType: "image/png"}) {
		t.Error("deriver still accepts jobs after newLibrary failed")
	}
	testutil.RequireClosed(t, deriver.Results(), time.Second, "deriver workers still running")
}
