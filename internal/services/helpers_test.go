package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/storage"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var errStoreDown = errors.New("store unreachable")

// flakyBackend wraps the memory store and records removes. Puts fail once
// failPutAfter puts succeeded (when >= 0); removes fail while failRemove is set.
type flakyBackend struct {
	*storage.MemoryStore
	mu           sync.Mutex
	puts         int
	failPutAfter int
	failRemove   bool
	removes      []string
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{MemoryStore: storage.NewMemoryStore(), failPutAfter: -1}
}

func (f *flakyBackend) Put(ctx context.Context, key, ct string, data []byte) error {
	f.mu.Lock()
	fail := f.failPutAfter >= 0 && f.puts >= f.failPutAfter
	if !fail {
		f.puts++
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.MemoryStore.Put(ctx, key, ct, data)
}

func (f *flakyBackend) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removes = append(f.removes, key)
	fail := f.failRemove
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.MemoryStore.Remove(ctx, key)
}

func (f *flakyBackend) removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removes...)
}

// failingRepo lets a test force the next Create or Update to fail.
type failingRepo[T models.Resource] struct {
	repository.Repository[T]
	createErr error
	updateErr error
}

func (r *failingRepo[T]) Create(ctx context.Context, rec T) (T, error) {
	if r.createErr != nil {
		var zero T
		return zero, r.createErr
	}
	return r.Repository.Create(ctx, rec)
}

func (r *failingRepo[T]) Update(ctx context.Context, id string, p models.Patch) (T, error) {
	if r.updateErr != nil {
		var zero T
		return zero, r.updateErr
	}
	return r.Repository.Update(ctx, id, p)
}

type harness[T models.Resource] struct {
	backend *flakyBackend
	media   *media.Client
	repo    *failingRepo[T]
	reaper  *Reaper
	logs    *observer.ObservedLogs
	life    *Lifecycle[T]
}

func newHarness[T models.Resource](t *testing.T, kind *models.Kind[T]) *harness[T] {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	backend := newFlakyBackend()
	mc := media.NewClient(backend, media.NewCodec("https://cdn.test/media", ""), media.DefaultPolicies(0),
		media.BreakerConfig{MaxFailures: 1000}, nil, log)
	rep := NewOrphanReporter(log, nil, nil, nil)
	reaper := NewReaper(mc, ReaperConfig{
		Workers:        2,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, rep, log)
	t.Cleanup(reaper.Close)

	repo := &failingRepo[T]{Repository: repository.NewMemoryRepository(kind)}
	life := NewLifecycle[T](kind, repo, Deps{Media: mc, Reaper: reaper, Orphans: rep, Log: log})
	return &harness[T]{backend: backend, media: mc, repo: repo, reaper: reaper, logs: logs, life: life}
}

func (h *harness[T]) orphanLogs() int {
	return h.logs.FilterMessage("orphaned blob").Len()
}

func imageFile(t *testing.T, name string) media.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))))
	return media.File{Name: name, ContentType: "image/png", Data: buf.Bytes()}
}

func donationFields(title string) models.Patch {
	return models.Patch{
		"title":       title,
		"description": "two bags",
		"quantity":    "10kg",
		"location":    map[string]any{"address": "12 MG Road", "city": "Pune", "state": "MH"},
	}
}
