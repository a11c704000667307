// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package itde

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/bureau-foundation/toolshelf/lib/blobstore"
	"github.com/bureau-foundation/toolshelf/lib/clock"
	"github.com/bureau-foundation/toolshelf/lib/codec"
	"github.com/bureau-foundation/toolshelf/lib/filelibrary"
	"github.com/bureau-foundation/toolshelf/lib/sqlitepool"
	"github.com/bureau-foundation/toolshelf/lib/testutil"
	"github.com/bureau-foundation/toolshelf/lib/tooldef"
	"github.com/bureau-foundation/toolshelf/lib/toolstate"
)

func testDefinitions() []*tooldef.Definition {
	return []*tooldef.Definition{
		{
			Directive:   "image-resizer",
			Title:       "Image Resizer",
			Route:       "/tool/image-resizer",
			InputConfig: &tooldef.InputConfig{AcceptsMimeTypes: []string{"image/*"}},
			OutputConfig: &tooldef.OutputConfig{TransferableContent: []tooldef.TransferableContent{
				{DataType: tooldef.DataFileReference, StateKey: "processedFileId", MimeType: "image/*"},
			}},
		},
		{
			Directive:   "image-gallery",
			Title:       "Image Gallery",
			Route:       "/tool/image-gallery",
			InputConfig: &tooldef.InputConfig{AcceptsMimeTypes: []string{"image/*"}},
		},
		{
			Directive:   "text-counter",
			Title:       "Text Counter",
			Route:       "/tool/text-counter",
			InputConfig: &tooldef.InputConfig{AcceptsMimeTypes: []string{"text/plain"}},
			OutputConfig: &tooldef.OutputConfig{TransferableContent: []tooldef.TransferableContent{
				{DataType: tooldef.DataText, StateKey: "report"},
			}},
		},
		{
			Directive: "batch-exporter",
			Title:     "Batch Exporter",
			Route:     "/tool/batch-exporter",
			OutputConfig: &tooldef.OutputConfig{TransferableContent: []tooldef.TransferableContent{
				{DataType: tooldef.DataFileReference, StateKey: "fileIds"},
				{DataType: tooldef.DataJSON, StateKey: "manifest"},
				{DataType: tooldef.DataText, StateKey: "summary", MimeType: "text/markdown"},
			}},
		},
		{
			Directive:   "file-storage",
			Title:       "File Storage",
			Route:       "/tool/file-storage",
			InputConfig: &tooldef.InputConfig{AcceptsMimeTypes: []string{"*/*"}},
		},
	}
}

type testEnv struct {
	clock    *clock.FakeClock
	registry *tooldef.Registry
	states   *toolstate.Store
	library  *filelibrary.Library
	resolver *Resolver
	bus      *Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pool, err := sqlitepool.Open(sqlitepool.Config{Path: testutil.DatabasePath(t), PoolSize: 2})
	if err != nil {
		t.Fatalf("sqlitepool.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("pool.Close: %v", err)
		}
	})

	fakeClock := clock.Fake(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	store, err := blobstore.Open(ctx, blobstore.Config{Pool: pool, Clock: fakeClock})
	if err != nil {
		t.Fatalf("blobstore.Open: %v", err)
	}
	library, err := filelibrary.New(filelibrary.Config{Store: store, Clock: fakeClock})
	if err != nil {
		t.Fatalf("filelibrary.New: %v", err)
	}
	t.Cleanup(library.Close)

	states, err := toolstate.OpenStore(ctx, toolstate.StoreConfig{Pool: pool, Clock: fakeClock})
	if err != nil {
		t.Fatalf("toolstate.OpenStore: %v", err)
	}
	registry, err := tooldef.NewRegistry(testDefinitions()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	resolver, err := NewResolver(ResolverConfig{Registry: registry, States: states, Files: library})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	bus, err := NewBus(BusConfig{Registry: registry, Resolver: resolver, Clock: fakeClock})
	if err != nil {
		t.Fatalf("NewBus: %v", err)
	}
	return &testEnv{
		clock:    fakeClock,
		registry: registry,
		states:   states,
		library:  library,
		resolver: resolver,
		bus:      bus,
	}
}

func (e *testEnv) saveState(t *testing.T, route string, state map[string]any) {
	t.Helper()
	data, err := codec.Marshal(state)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	if err := e.states.Save(context.Background(), route, data); err != nil {
		t.Fatalf("states.Save: %v", err)
	}
}

func (e *testEnv) addFile(t *testing.T, blob []byte, filename, mimeType string) string {
	t.Helper()
	id, err := e.library.AddFile(context.Background(), blob, filename, mimeType, true, "test")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	return id
}

// recorder is a ProcessFunc that remembers what it was given.
type recorder struct {
	signals  []Signal
	resolved []Resolved
	err      error
}

func (r *recorder) process(_ context.Context, signal Signal, resolved Resolved) error {
	r.signals = append(r.signals, signal)
	r.resolved = append(r.resolved, resolved)
	return r.err
}

func (e *testEnv) register(t *testing.T, directive string, opts TargetOptions) (*Target, *recorder) {
	t.Helper()
	record := &recorder{}
	target, err := e.bus.Register(directive, record.process, opts)
	if err != nil {
		t.Fatalf("Register(%s): %v", directive, err)
	}
	return target, record
}

func mustSignal(t *testing.T, bus *Bus, source, target string) {
	t.Helper()
	if err := bus.Signal(source, target); err != nil {
		t.Fatalf("Signal(%s, %s): %v", source, target, err)
	}
}

func TestSignalChecksRegistry(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		source, target string
		want           error
	}{
		{"text-counter", "image-gallery", ErrIncompatible},
		{"image-gallery", "file-storage", ErrIncompatible},
		{"image-resizer", "no-such-tool", ErrUnknownTarget},
		{"no-such-tool", "file-storage", ErrUnknownSource},
	}
	for _, test := range tests {
		if err := env.bus.Signal(test.source, test.target); !errors.Is(err, test.want) {
			t.Errorf("Signal(%s, %s) err = %v, want %v", test.source, test.target, err, test.want)
		}
	}
	if _, err := env.bus.Register("no-such-tool", (&recorder{}).process, TargetOptions{}); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("Register unknown: err = %v, want ErrUnknownTarget", err)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{})

	if _, err := env.bus.Register("file-storage", (&recorder{}).process, TargetOptions{}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register: err = %v, want ErrAlreadyRegistered", err)
	}
	target.Unregister()
	if _, err := env.bus.Register("file-storage", (&recorder{}).process, TargetOptions{}); err != nil {
		t.Fatalf("Register after Unregister: %v", err)
	}
}

func TestIgnoreAllSignalsReturnsToIdle(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{})

	if target.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", target.State())
	}
	mustSignal(t, env.bus, "image-resizer", "file-storage")
	mustSignal(t, env.bus, "text-counter", "file-storage")
	if target.State() != StateSignaled || len(target.PendingSignals()) != 2 {
		t.Fatalf("after two signals: state %s, %d pending", target.State(), len(target.PendingSignals()))
	}

	target.IgnoreAllSignals()
	if target.State() != StateIdle || len(target.PendingSignals()) != 0 || target.IsModalOpen() {
		t.Fatalf("after IgnoreAllSignals: state %s, %d pending, modal %v",
			target.State(), len(target.PendingSignals()), target.IsModalOpen())
	}
}

func TestNewerSignalReplacesOlder(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{})

	mustSignal(t, env.bus, "image-resizer", "file-storage")
	env.clock.Advance(time.Second)
	mustSignal(t, env.bus, "text-counter", "file-storage")
	env.clock.Advance(time.Second)
	mustSignal(t, env.bus, "image-resizer", "file-storage")

	pending := target.PendingSignals()
	if len(pending) != 2 {
		t.Fatalf("pending = %+v, want 2 signals", pending)
	}
	if pending[0].SourceDirective != "text-counter" || pending[1].SourceDirective != "image-resizer" {
		t.Errorf("pending order = %s, %s", pending[0].SourceDirective, pending[1].SourceDirective)
	}
	if pending[1].SourceToolTitle != "Image Resizer" || !pending[1].ReceivedAt.Equal(env.clock.Now()) {
		t.Errorf("replacement signal = %+v", pending[1])
	}
}

func TestIgnoreSignal(t *testing.T) {
	env := newTestEnv(t)
	target, record := env.register(t, "file-storage", TargetOptions{AutoPrompt: true})

	mustSignal(t, env.bus, "image-resizer", "file-storage")
	mustSignal(t, env.bus, "text-counter", "file-storage")

	if !target.IgnoreSignal("image-resizer") {
		t.Fatal("IgnoreSignal returned false for a queued signal")
	}
	if target.IgnoreSignal("image-resizer") {
		t.Fatal("IgnoreSignal returned true twice")
	}
	if target.State() != StatePrompting {
		t.Errorf("state with one remaining = %s, want prompting", target.State())
	}
	target.IgnoreSignal("text-counter")
	if target.State() != StateIdle || target.IsModalOpen() {
		t.Errorf("state after ignoring last = %s, modal %v", target.State(), target.IsModalOpen())
	}
	if len(record.signals) != 0 {
		t.Error("ignored signals were processed")
	}
}

func TestAutoPromptAndDefer(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{AutoPrompt: true})

	mustSignal(t, env.bus, "image-resizer", "file-storage")
	if target.State() != StatePrompting {
		t.Fatalf("auto-prompt state = %s, want prompting", target.State())
	}

	target.CloseModal()
	if target.State() != StateSignaled || !target.Deferred() {
		t.Fatalf("after defer: state %s, deferred %v", target.State(), target.Deferred())
	}

	mustSignal(t, env.bus, "text-counter", "file-storage")
	if target.IsModalOpen() {
		t.Fatal("prompt reopened automatically after the user deferred")
	}

	if !target.OpenModalIfSignalsExist() || target.State() != StatePrompting {
		t.Fatalf("manual reopen: state %s", target.State())
	}

	target.CloseModal()
	target.ClearDeferred()
	mustSignal(t, env.bus, "image-resizer", "file-storage")
	if !target.IsModalOpen() {
		t.Error("prompt did not auto-open after ClearDeferred")
	}
}

func TestOpenModalWithoutSignals(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{})

	if target.OpenModalIfSignalsExist() {
		t.Fatal("OpenModalIfSignalsExist opened with an empty queue")
	}
	if target.State() != StateIdle {
		t.Errorf("state = %s, want idle", target.State())
	}
}

func TestSignalBeforeRegistrationWaits(t *testing.T) {
	env := newTestEnv(t)
	env.saveState(t, "/tool/text-counter", map[string]any{"report": "12 words"})

	mustSignal(t, env.bus, "text-counter", "file-storage")

	target, record := env.register(t, "file-storage", TargetOptions{AutoPrompt: true})
	if target.State() != StatePrompting {
		t.Fatalf("state after late registration = %s, want prompting", target.State())
	}
	if _, err := target.AcceptSignal(context.Background(), "text-counter"); err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}
	if len(record.resolved) != 1 || string(record.resolved[0].Items[0].Data) != "12 words" {
		t.Fatalf("processed = %+v", record.resolved)
	}
}

func TestAcceptSingleSignalReturnsToIdle(t *testing.T) {
	env := newTestEnv(t)
	env.saveState(t, "/tool/text-counter", map[string]any{"report": "3 lines, 12 words"})
	target, record := env.register(t, "file-storage", TargetOptions{AutoPrompt: true})

	mustSignal(t, env.bus, "text-counter", "file-storage")
	resolved, err := target.AcceptSignal(context.Background(), "text-counter")
	if err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}
	if target.State() != StateIdle || target.IsModalOpen() {
		t.Fatalf("after accept: state %s, modal %v", target.State(), target.IsModalOpen())
	}
	if resolved.Kind != KindItemList || len(resolved.Items) != 1 {
		t.Fatalf("resolved = %+v", resolved)
	}
	item := resolved.Items[0]
	if item.Kind != ItemInline || item.MimeType != "text/plain" || string(item.Data) != "3 lines, 12 words" {
		t.Errorf("item = %+v", item)
	}
	if len(record.signals) != 1 || record.signals[0].SourceDirective != "text-counter" {
		t.Errorf("processed signals = %+v", record.signals)
	}

	if _, err := target.AcceptSignal(context.Background(), "text-counter"); !errors.Is(err, ErrNoSignal) {
		t.Errorf("second accept: err = %v, want ErrNoSignal", err)
	}
}

func TestAcceptModalPolicy(t *testing.T) {
	tests := []struct {
		name             string
		closeAfterAccept bool
		wantState        State
	}{
		{"stay open", false, StatePrompting},
		{"close after accept", true, StateSignaled},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t)
			target, _ := env.register(t, "file-storage", TargetOptions{AutoPrompt: true, CloseAfterAccept: test.closeAfterAccept})

			mustSignal(t, env.bus, "text-counter", "file-storage")
			mustSignal(t, env.bus, "image-resizer", "file-storage")
			if _, err := target.AcceptSignal(context.Background(), "text-counter"); err != nil {
				t.Fatalf("AcceptSignal: %v", err)
			}
			if target.State() != test.wantState {
				t.Errorf("state = %s, want %s", target.State(), test.wantState)
			}
			if len(target.PendingSignals()) != 1 {
				t.Errorf("pending = %d, want 1", len(target.PendingSignals()))
			}
		})
	}
}

func TestAcceptConsumesSignalWhenProcessingFails(t *testing.T) {
	env := newTestEnv(t)
	target, record := env.register(t, "file-storage", TargetOptions{})
	record.err = errors.New("target busy")

	mustSignal(t, env.bus, "text-counter", "file-storage")
	if _, err := target.AcceptSignal(context.Background(), "text-counter"); err == nil {
		t.Fatal("AcceptSignal did not report the processing error")
	}
	if target.State() != StateIdle {
		t.Errorf("state = %s, want idle", target.State())
	}
}

func TestAcceptAfterUnregister(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{})
	mustSignal(t, env.bus, "text-counter", "file-storage")

	target.Unregister()
	if _, err := target.AcceptSignal(context.Background(), "text-counter"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("AcceptSignal after Unregister: err = %v, want ErrNotRegistered", err)
	}
	if len(target.PendingSignals()) != 1 {
		t.Error("Unregister dropped queued signals")
	}
}

func TestTargetSubscribe(t *testing.T) {
	env := newTestEnv(t)
	target, _ := env.register(t, "file-storage", TargetOptions{AutoPrompt: true})

	statuses, cancel := target.Subscribe(8)
	defer cancel()

	mustSignal(t, env.bus, "text-counter", "file-storage")
	status := testutil.RequireReceive(t, statuses, time.Second, "status after signal")
	if status.State != StatePrompting || len(status.Pending) != 1 || status.Directive != "file-storage" {
		t.Errorf("status = %+v", status)
	}

	target.IgnoreAllSignals()
	status = testutil.RequireReceive(t, statuses, time.Second, "status after ignore")
	if status.State != StateIdle {
		t.Errorf("status after ignore = %s, want idle", status.State)
	}
}

func TestResolveNone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resizer, _ := env.registry.Lookup("image-resizer")
	if got := env.resolver.Resolve(ctx, "image-resizer", resizer.OutputConfig); got.Kind != KindNone {
		t.Errorf("no persisted state: kind = %s (%s), want none", got.Kind, got.ErrorMessage)
	}

	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": ""})
	if got := env.resolver.Resolve(ctx, "image-resizer", resizer.OutputConfig); got.Kind != KindNone {
		t.Errorf("empty file id: kind = %s (%s), want none", got.Kind, got.ErrorMessage)
	}

	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": blobstore.NewID()})
	if got := env.resolver.Resolve(ctx, "image-resizer", resizer.OutputConfig); got.Kind != KindNone {
		t.Errorf("deleted file: kind = %s (%s), want none", got.Kind, got.ErrorMessage)
	}

	if got := env.resolver.Resolve(ctx, "image-gallery", nil); got.Kind != KindNone {
		t.Errorf("no output config: kind = %s, want none", got.Kind)
	}
}

func TestResolveErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if got := env.resolver.Resolve(ctx, "no-such-tool", &tooldef.OutputConfig{}); got.Kind != KindError || got.ErrorMessage == "" {
		t.Errorf("missing metadata: %+v", got)
	}

	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": 42})
	resizer, _ := env.registry.Lookup("image-resizer")
	if got := env.resolver.Resolve(ctx, "image-resizer", resizer.OutputConfig); got.Kind != KindError {
		t.Errorf("wrong field type: kind = %s, want error", got.Kind)
	}

	unknown := &tooldef.OutputConfig{TransferableContent: []tooldef.TransferableContent{
		{DataType: "stream", StateKey: "processedFileId"},
	}}
	if got := env.resolver.Resolve(ctx, "image-resizer", unknown); got.Kind != KindError {
		t.Errorf("unknown dataType: kind = %s, want error", got.Kind)
	}
}

func TestResolveOrdersItemsAndSkipsMissingFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.addFile(t, []byte("a,b\n1,2\n"), "first.csv", "text/csv")
	second := env.addFile(t, []byte("{}"), "second.json", "application/json")
	env.saveState(t, "/tool/batch-exporter", map[string]any{
		"fileIds":  []any{first, blobstore.NewID(), "", second},
		"manifest": map[string]any{"count": int64(2)},
		"summary":  "# Export",
	})

	exporter, _ := env.registry.Lookup("batch-exporter")
	resolved := env.resolver.Resolve(ctx, "batch-exporter", exporter.OutputConfig)
	if resolved.Kind != KindItemList {
		t.Fatalf("kind = %s (%s), want itemList", resolved.Kind, resolved.ErrorMessage)
	}
	if len(resolved.Items) != 4 {
		t.Fatalf("items = %+v, want 4", resolved.Items)
	}
	if resolved.Items[0].FileID != first || resolved.Items[1].FileID != second {
		t.Errorf("file order = %s, %s", resolved.Items[0].FileID, resolved.Items[1].FileID)
	}
	if resolved.Items[0].Filename != "first.csv" || resolved.Items[0].Size != 8 {
		t.Errorf("file item = %+v", resolved.Items[0])
	}
	manifest := resolved.Items[2]
	if manifest.Kind != ItemInline || manifest.MimeType != "application/json" || string(manifest.Data) != `{"count":2}` {
		t.Errorf("manifest item = %+v (%s)", manifest, manifest.Data)
	}
	if summary := resolved.Items[3]; summary.MimeType != "text/markdown" || string(summary.Data) != "# Export" {
		t.Errorf("summary item = %+v", summary)
	}
}

func TestResolveLeavesAccessTimes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := env.clock.Now()
	id := env.addFile(t, []byte("png-ish"), "a.png", "image/png")
	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": id})
	env.clock.Advance(time.Hour)

	source, err := env.registry.Lookup("image-resizer")
	if err != nil {
		t.Fatal(err)
	}
	resolved := env.resolver.Resolve(ctx, "image-resizer", source.OutputConfig)
	if resolved.Kind != KindItemList || len(resolved.Items) != 1 {
		t.Fatalf("Resolve = %+v", resolved)
	}

	file, err := env.library.StatFile(ctx, id)
	if err != nil || file == nil {
		t.Fatalf("StatFile = %+v, %v", file, err)
	}
	if !file.LastAccessedAt.Equal(created) {
		t.Errorf("LastAccessedAt = %v after Resolve, want untouched %v", file.LastAccessedAt, created)
	}
}

func TestAcceptedNarrowsToInput(t *testing.T) {
	resolved := Resolved{Kind: KindItemList, Items: []Item{
		{Kind: ItemInline, MimeType: "text/plain"},
		{Kind: ItemFileReference, MimeType: "image/png"},
	}}

	images := resolved.Accepted(&tooldef.InputConfig{AcceptsMimeTypes: []string{"image/*"}})
	if images.Kind != KindItemList || len(images.Items) != 1 || images.Items[0].MimeType != "image/png" {
		t.Errorf("narrowed to images = %+v", images)
	}

	none := resolved.Accepted(&tooldef.InputConfig{AcceptsMimeTypes: []string{"application/pdf"}})
	if none.Kind != KindNone || len(none.Items) != 0 {
		t.Errorf("no acceptable type = %+v, want none", none)
	}

	empty := Resolved{Kind: KindNone}
	if got := empty.Accepted(nil); got.Kind != KindNone {
		t.Errorf("none narrowed to %s", got.Kind)
	}
}

// A compatible source holding only types the target does not accept
// resolves to none at accept time.
func TestAcceptWithNothingAcceptableIsNone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := env.addFile(t, []byte{0, 1, 2, 3}, "archive.bin", "application/octet-stream")
	env.saveState(t, "/tool/batch-exporter", map[string]any{"fileIds": []any{id}})

	target, recorded := env.register(t, "text-counter", TargetOptions{})
	mustSignal(t, env.bus, "batch-exporter", "text-counter")
	resolved, err := target.AcceptSignal(ctx, "batch-exporter")
	if err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}
	if resolved.Kind != KindNone {
		t.Fatalf("resolved = %+v, want none", resolved)
	}
	if len(recorded.resolved) != 1 || recorded.resolved[0].Kind != KindNone {
		t.Errorf("process saw %+v, want one none result", recorded.resolved)
	}
}

func TestPromoteInline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inline := Item{Kind: ItemInline, StateKey: "report", MimeType: "text/plain", Data: []byte("hello")}
	promoted, err := PromoteInline(ctx, env.library, inline, "file-storage")
	if err != nil {
		t.Fatalf("PromoteInline: %v", err)
	}
	if promoted.Kind != ItemFileReference || promoted.Filename != "report.txt" || promoted.Size != 5 {
		t.Fatalf("promoted = %+v", promoted)
	}
	file, err := env.library.GetFile(ctx, promoted.FileID)
	if err != nil || file == nil {
		t.Fatalf("GetFile = %v, %v", file, err)
	}
	if !file.IsTemporary || file.OriginTool != "file-storage" || string(file.Blob) != "hello" {
		t.Errorf("stored file = %+v", file)
	}

	reference := Item{Kind: ItemFileReference, FileID: "abc"}
	if same, err := PromoteInline(ctx, env.library, reference, "file-storage"); err != nil || same.FileID != "abc" {
		t.Errorf("PromoteInline(reference) = %+v, %v", same, err)
	}
}

func TestSendToToolFlushesSourceState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	type counterState struct {
		Report string `json:"report"`
	}
	handle, err := toolstate.Mount(ctx, env.states, toolstate.Options[counterState]{
		Route: "/tool/text-counter",
		Clock: env.clock,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	handle.Save(counterState{Report: "fresh"})

	target, _ := env.register(t, "file-storage", TargetOptions{})
	sender := NewSender(env.bus)
	if err := sender.SendToTool(ctx, handle, "text-counter", "file-storage"); err != nil {
		t.Fatalf("SendToTool: %v", err)
	}

	resolved, err := target.AcceptSignal(ctx, "text-counter")
	if err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}
	if !resolved.OK() || string(resolved.Items[0].Data) != "fresh" {
		t.Fatalf("resolved = %+v, want the just-saved report", resolved)
	}

	targets, err := sender.CompatibleTargets("text-counter")
	if err != nil {
		t.Fatalf("CompatibleTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].Directive != "file-storage" {
		t.Errorf("CompatibleTargets = %v", targets)
	}
}

func TestReferencedFiles(t *testing.T) {
	env := newTestEnv(t)

	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": "one"})
	env.saveState(t, "/tool/batch-exporter", map[string]any{"fileIds": []any{"two", "three"}, "summary": "four"})
	env.saveState(t, "/tool/text-counter", map[string]any{"report": "five"})

	referenced, err := ReferencedFiles(context.Background(), env.registry, env.states)
	if err != nil {
		t.Fatalf("ReferencedFiles: %v", err)
	}
	if len(referenced) != 3 {
		t.Fatalf("referenced = %v, want one, two, three", referenced)
	}
	for _, id := range []string{"one", "two", "three"} {
		if _, ok := referenced[id]; !ok {
			t.Errorf("%s not referenced", id)
		}
	}
}

// A receiving tool that keeps an accepted temporary file in its own
// state protects it from the sweep, at any depth of the state.
func TestReferencedFilesCoversReceivingTools(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	selected := env.addFile(t, []byte("selected"), "a.txt", "text/plain")
	nested := env.addFile(t, []byte("nested"), "b.txt", "text/plain")
	orphan := env.addFile(t, []byte("orphan"), "c.txt", "text/plain")
	env.saveState(t, "/tool/image-gallery", map[string]any{
		"selectedFileId": selected,
		"history":        map[string]any{"recent": []any{nested}},
	})
	env.saveState(t, "/tool/unregistered", map[string]any{"caption": "not an id"})

	env.clock.Advance(2 * time.Hour)
	keep, err := ReferencedFiles(ctx, env.registry, env.states)
	if err != nil {
		t.Fatalf("ReferencedFiles: %v", err)
	}
	if len(keep) != 2 {
		t.Errorf("referenced = %v, want %s and %s", keep, selected, nested)
	}

	deleted, err := env.library.SweepTemporaryFiles(ctx, keep, env.clock.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("SweepTemporaryFiles: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != orphan {
		t.Fatalf("swept %v, want only %s", deleted, orphan)
	}
	for _, id := range []string{selected, nested} {
		file, err := env.library.GetFile(ctx, id)
		if err != nil {
			t.Fatalf("GetFile(%s): %v", id, err)
		}
		if file == nil {
			t.Errorf("file %s referenced by image-gallery state was swept", id)
		}
	}
}

// A source emits a wide image as a temporary file, an image target
// accepts it and promotes it, and the source's later cleanup keeps it.
func TestImageHandoffSurvivesSourceCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	canvas := image.NewNRGBA(image.Rect(0, 0, 2000, 1000))
	for x := 0; x < 2000; x++ {
		canvas.Set(x, 500, color.NRGBA{R: 255, A: 255})
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, canvas); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	fileID := env.addFile(t, encoded.Bytes(), "wide.png", "image/png")
	env.saveState(t, "/tool/image-resizer", map[string]any{"processedFileId": fileID})

	var promoted bool
	process := func(ctx context.Context, signal Signal, resolved Resolved) error {
		if resolved.Kind != KindItemList {
			return errors.New("unexpected " + string(resolved.Kind) + ": " + resolved.ErrorMessage)
		}
		var err error
		promoted, err = env.library.MakeFilePermanentAndUpdate(ctx, resolved.Items[0].FileID, "gallery-wide.png")
		return err
	}
	target, err := env.bus.Register("image-gallery", process, TargetOptions{AutoPrompt: true})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := NewSender(env.bus).SendToTool(ctx, nil, "image-resizer", "image-gallery"); err != nil {
		t.Fatalf("SendToTool: %v", err)
	}
	resolved, err := target.AcceptSignal(ctx, "image-resizer")
	if err != nil {
		t.Fatalf("AcceptSignal: %v", err)
	}
	if len(resolved.Items) != 1 || resolved.Items[0].FileID != fileID || resolved.Items[0].MimeType != "image/png" {
		t.Fatalf("resolved = %+v", resolved)
	}
	if !promoted {
		t.Fatal("target did not promote the file")
	}
	if target.State() != StateIdle {
		t.Errorf("target state = %s, want idle", target.State())
	}

	if err := env.library.CleanupOrphanedTemporaryFiles(ctx, []string{fileID}); err != nil {
		t.Fatalf("CleanupOrphanedTemporaryFiles: %v", err)
	}
	file, err := env.library.GetFile(ctx, fileID)
	if err != nil || file == nil {
		t.Fatalf("promoted file gone after cleanup: %v, %v", file, err)
	}
	if file.IsTemporary || file.Filename != "gallery-wide.png" {
		t.Errorf("file = %q temporary %v", file.Filename, file.IsTemporary)
	}
}
