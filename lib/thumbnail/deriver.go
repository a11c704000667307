// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package thumbnail

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// Config holds the parameters for a Deriver.
type Config struct {
	// MaxEdge is the longest-edge cap. Defaults to DefaultMaxEdge.
	MaxEdge int

	// Quality is the JPEG quality. Defaults to DefaultQuality.
	Quality int

	// Workers is the number of derivation goroutines. Defaults to
	// min(runtime.NumCPU(), 4).
	Workers int

	// QueueSize bounds pending jobs. Submit fails fast once the
	// queue is full. Defaults to 64.
	QueueSize int

	// Logger receives per-job debug messages. Nil discards them.
	Logger *slog.Logger
}

// Job asks for a thumbnail of one file.
type Job struct {
	FileID   string
	Data     []byte
	MimeType string
}

// Result is the outcome of one Job. Exactly one of Thumbnail or Err is
// meaningful.
type Result struct {
	FileID    string
	Thumbnail Thumbnail
	MimeType  string
	Err       error
}

// OK reports whether derivation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Deriver is a pool of thumbnail workers. Create with New, read
// Results until it is closed, and call Close when done.
type Deriver struct {
	maxEdge int
	quality int
	logger  *slog.Logger

	// mu guards closed and the send side of jobs: Submit holds the
	// read lock while sending so Close cannot close the channel under
	// it.
	mu      sync.RWMutex
	closed  bool
	jobs    chan Job
	results chan Result
	workers sync.WaitGroup
}

// New starts the worker goroutines.
func New(cfg Config) *Deriver {
	workers := cfg.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 4)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	deriver := &Deriver{
		maxEdge: cfg.MaxEdge,
		quality: cfg.Quality,
		logger:  logger,
		jobs:    make(chan Job, queueSize),
		results: make(chan Result, queueSize),
	}
	if deriver.maxEdge <= 0 {
		deriver.maxEdge = DefaultMaxEdge
	}

	deriver.workers.Add(workers)
	for range workers {
		go deriver.work()
	}
	go func() {
		deriver.workers.Wait()
		close(deriver.results)
	}()
	return deriver
}

// MaxEdge returns the configured longest-edge cap.
func (d *Deriver) MaxEdge() int { return d.maxEdge }

// Submit queues a job without blocking. Returns false if the queue is
// full or the Deriver is closed; no Result is produced in that case.
func (d *Deriver) Submit(job Job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// Results delivers one Result per accepted job. The channel closes
// after Close once every queued job has been processed.
func (d *Deriver) Results() <-chan Result { return d.results }

// Close stops accepting jobs. Queued jobs still run; their results
// are delivered before Results closes. Safe to call more than once.
func (d *Deriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.jobs)
}

func (d *Deriver) work() {
	defer d.workers.Done()
	for job := range d.jobs {
		result := d.run(job)
		if result.OK() {
			d.logger.Debug("thumbnail derived",
				"file_id", job.FileID,
				"width", result.Thumbnail.Width,
				"height", result.Thumbnail.Height,
				"bytes", len(result.Thumbnail.Data),
			)
		}
		d.results <- result
	}
}

// run derives one thumbnail. A panicking decoder becomes a failed
// Result rather than taking down the worker.
func (d *Deriver) run(job Job) (result Result) {
	result.FileID = job.FileID
	defer func() {
		if recovered := recover(); recovered != nil {
			result.Thumbnail = Thumbnail{}
			result.Err = fmt.Errorf("thumbnail: decoder panic: %v", recovered)
		}
	}()

	thumbnail, err := Derive(job.Data, d.maxEdge, d.quality)
	if err != nil {
		result.Err = err
		return result
	}
	result.Thumbnail = thumbnail
	result.MimeType = MimeType
	return result
}
