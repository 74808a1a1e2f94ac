package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/events"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/orphans"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stalledWriter holds every write until release is closed.
type stalledWriter struct {
	release chan struct{}
	mu      sync.Mutex
	types   []string
}

func (w *stalledWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		w.types = append(w.types, string(m.Headers[0].Value))
	}
	return nil
}

func (w *stalledWriter) Close() error { return nil }

func (w *stalledWriter) written() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.types...)
}

func TestLifecycleDoesNotWaitForEventBroker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, models.Donations)
	w := &stalledWriter{release: make(chan struct{})}
	pub := events.NewPublisherWithWriter(w, zap.NewNop())
	life := NewLifecycle[*models.Donation](models.Donations, h.repo, Deps{
		Media:  h.media,
		Reaper: h.reaper,
		Events: pub,
		Log:    zap.NewNop(),
	})

	start := time.Now()
	d, err := life.Create(ctx, alice, withImages(donationFields("Rice"), imageFile(t, "a.png")))
	require.NoError(t, err)
	_, err = life.Update(ctx, alice, d.ID, Input{Fields: models.Patch{"quantity": "5kg"}})
	require.NoError(t, err)
	require.NoError(t, life.Delete(ctx, alice, d.ID))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(w.release)
	require.NoError(t, pub.Close())
	assert.Equal(t, []string{events.ResourceCreated, events.ResourceUpdated, events.ResourceDeleted}, w.written())
}

func TestOrphanReportDoesNotWaitForEventBroker(t *testing.T) {
	w := &stalledWriter{release: make(chan struct{})}
	pub := events.NewPublisherWithWriter(w, zap.NewNop())
	rep := NewOrphanReporter(zap.NewNop(), nil, nil, pub)

	start := time.Now()
	rep.Report(context.Background(), orphans.Orphan{Identifier: "wall-of-humanity/avatars/a", Reason: "superseded"}, nil)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(w.release)
	require.NoError(t, pub.Close())
	assert.Equal(t, []string{events.MediaOrphaned}, w.written())
}
