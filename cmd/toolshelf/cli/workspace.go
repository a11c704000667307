// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/toolshelf/lib/blobstore"
	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/config"
	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
	"github.com/bureau-foundation/toolshelf/lib/itde"
	"github.com/bureau-foundation/toolshelf/lib/sqlitepool"
	"github.com/bureau-foundation/toolshelf/lib/thumbnail"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
	"github.com/bureau-foundation/toolshelf/lib/toolstate"
)

// WorkspaceFlags are the flags shared by every command that opens a
// [Workspace]. Embed it in a params struct.
type WorkspaceFlags struct {
	ConfigPath string
	Verbose    bool
}

// AddFlags registers --config and --verbose.
func (f *WorkspaceFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ConfigPath, "config", "", "path to toolshelf.yaml (default $TOOLSHELF_CONFIG, then built-in defaults)")
	flagSet.BoolVarP(&f.Verbose, "verbose", "v", false, "log debug messages")
}

// Workspace holds the components a command works against, opened
// from one configuration.
type Workspace struct {
	Config   *config.Config
	Logger   *slog.Logger
	Clock    clock.Clock
	Pool     *sqlitepool.Pool
	Blobs    *blobstore.Store
	Library  *filelibrary.Library
	States   *toolstate.Store
	Registry *tooldef.Registry
	Resolver *itde.Resolver
}

// OpenWorkspace loads the configuration selected by flags and opens
// the database and every store on it. A missing tools directory
// yields an empty registry. The caller must Close the workspace.
func OpenWorkspace(ctx context.Context, flags WorkspaceFlags, logger *slog.Logger) (*Workspace, error) {
	cfg, err := config.Discover(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if flags.Verbose {
		logger = NewCommandLogger(slog.LevelDebug)
	}
	return openWorkspace(ctx, cfg, clock.Real(), logger)
}

func openWorkspace(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *slog.Logger) (workspace *Workspace, err error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	maxBytes, err := cfg.MaxTotalBytes()
	if err != nil {
		return nil, err
	}

	registry, err := loadRegistry(cfg.Paths.Tools)
	if err != nil {
		return nil, err
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Paths.Database,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	blobs, err := blobstore.Open(ctx, blobstore.Config{
		Pool:          pool,
		Clock:         clk,
		Logger:        logger,
		MaxTotalBytes: maxBytes,
	})
	if err != nil {
		return nil, err
	}

	states, err := toolstate.OpenStore(ctx, toolstate.StoreConfig{
		Pool:   pool,
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	deriver := thumbnail.New(thumbnail.Config{
		MaxEdge:   cfg.Thumbnail.MaxEdge,
		Quality:   cfg.Thumbnail.JPEGQuality,
		Workers:   cfg.Thumbnail.Workers,
		QueueSize: cfg.Thumbnail.QueueSize,
		Logger:    logger,
	})
	library, err := newLibrary(blobs, deriver, clk, logger)
	if err != nil {
		return nil, err
	}

	resolver, err := itde.NewResolver(itde.ResolverConfig{
		Registry: registry,
		States:   states,
		Files:    library,
		Logger:   logger,
	})
	if err != nil {
		library.Close()
		return nil, err
	}

	return &Workspace{
		Config:   cfg,
		Logger:   logger,
		Clock:    clk,
		Pool:     pool,
		Blobs:    blobs,
		Library:  library,
		States:   states,
		Registry: registry,
		Resolver: resolver,
	}, nil
}

// newLibrary hands deriver to a new library. The library owns the
// deriver from then on; if it cannot be created the deriver is closed
// here so its workers exit.
func newLibrary(blobs *blobstore.Store, deriver *thumbnail.Deriver, clk clock.Clock, logger *slog.Logger) (*filelibrary.Library, error) {
	library, err := filelibrary.New(filelibrary.Config{
		Store:   blobs,
		Deriver: deriver,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		if deriver != nil {
			deriver.Close()
		}
		return nil, err
	}
	return library, nil
}

func loadRegistry(dir string) (*tooldef.Registry, error) {
	if dir == "" {
		return tooldef.NewRegistry()
	}
	registry, err := tooldef.LoadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return tooldef.NewRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("loading tools from %s: %w", dir, err)
	}
	return registry, nil
}

// NewBus builds a signal bus over the workspace registry and resolver.
func (w *Workspace) NewBus() (*itde.Bus, error) {
	return itde.NewBus(itde.BusConfig{
		Registry: w.Registry,
		Resolver: w.Resolver,
		Clock:    w.Clock,
		Logger:   w.Logger,
	})
}

// Close stops the File Library, waiting for queued thumbnails, then
// closes the database.
func (w *Workspace) Close() error {
	w.Library.Close()
	return w.Pool.Close()
}

// WithWorkspace opens a workspace, runs fn against it and closes it.
// A close failure is reported only when fn succeeded.
func WithWorkspace(ctx context.Context, flags WorkspaceFlags, logger *slog.Logger, fn func(*Workspace) error) (err error) {
	workspace, err := OpenWorkspace(ctx, flags, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := workspace.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing workspace: %w", closeErr)
		}
	}()
	return fn(workspace)
}

// DiskFree returns the bytes available to unprivileged users on the
// filesystem holding the database.
func (w *Workspace) DiskFree() (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(w.Config.Paths.Database), &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", filepath.Dir(w.Config.Paths.Database), err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
