package services

import (
	"context"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/events"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/orphans"
	"go.uber.org/zap"
)

type OrphanRecorder interface {
	Record(ctx context.Context, o orphans.Orphan) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// OrphanReporter is the sink for blobs that could not be deleted after their
// triggering operation committed. Every orphan is logged exactly once.
type OrphanReporter struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	ledger  OrphanRecorder
	events  EventPublisher
}

func NewOrphanReporter(log *zap.Logger, m *metrics.Metrics, ledger OrphanRecorder, pub EventPublisher) *OrphanReporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrphanReporter{log: log, metrics: m, ledger: ledger, events: pub}
}

func (r *OrphanReporter) Report(ctx context.Context, o orphans.Orphan, cause error) {
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}
	r.log.Warn("orphaned blob",
		zap.String("identifier", o.Identifier),
		zap.String("reason", o.Reason),
		zap.String("kind", o.Kind),
		zap.String("resource_id", o.ResourceID),
		zap.Error(cause))
	r.metrics.Orphan(o.Reason)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if r.ledger != nil {
		if err := r.ledger.Record(ctx, o); err != nil {
			r.log.Error("record orphan failed", zap.String("identifier", o.Identifier), zap.Error(err))
		}
	}
	if r.events != nil {
		_ = r.events.Publish(ctx, events.Event{
			Type:       events.MediaOrphaned,
			Kind:       o.Kind,
			ResourceID: o.ResourceID,
			Identifier: o.Identifier,
			Reason:     o.Reason,
			At:         o.At,
		})
	}
}
