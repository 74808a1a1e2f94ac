package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/orphans"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Deleter removes a blob by identifier. Deleting an absent blob succeeds.
type Deleter interface {
	Delete(ctx context.Context, identifier string) error
}

type ReaperConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JobTimeout     time.Duration
}

func (c *ReaperConfig) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
}

// Job is one blob delete the caller does not wait for.
type Job struct {
	Identifier string
	Kind       string
	ResourceID string
	Reason     string
}

// Reaper runs blob deletes off the request path. A delete that still fails
// after its retries, or that cannot be queued, is reported as an orphan.
type Reaper struct {
	media   Deleter
	cfg     ReaperConfig
	orphans *OrphanReporter
	log     *zap.Logger

	jobs    chan Job
	pending sync.WaitGroup
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewReaper(media Deleter, cfg ReaperConfig, rep *OrphanReporter, log *zap.Logger) *Reaper {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reaper{
		media:   media,
		cfg:     cfg,
		orphans: rep,
		log:     log,
		jobs:    make(chan Job, cfg.QueueSize),
	}
	r.workers.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.run()
	}
	return r
}

// Dispatch queues deletes and returns immediately.
func (r *Reaper) Dispatch(jobs ...Job) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, j := range jobs {
		if r.closed {
			r.orphans.Report(context.Background(), orphan(j), errors.New("reaper closed"))
			continue
		}
		r.pending.Add(1)
		select {
		case r.jobs <- j:
		default:
			r.pending.Done()
			r.orphans.Report(context.Background(), orphan(j), errors.New("reaper queue full"))
		}
	}
}

// Wait blocks until every dispatched job has settled.
func (r *Reaper) Wait() {
	r.pending.Wait()
}

// Close stops accepting jobs, drains the queue and stops the workers.
func (r *Reaper) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.workers.Wait()
}

func (r *Reaper) run() {
	defer r.workers.Done()
	for j := range r.jobs {
		r.reap(j)
		r.pending.Done()
	}
}

func (r *Reaper) reap(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.JobTimeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.cfg.InitialBackoff
	eb.MaxInterval = r.cfg.MaxBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.cfg.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := r.media.Delete(ctx, j.Identifier)
		if err == nil {
			return nil
		}
		// only store faults are worth retrying
		if !errors.Is(err, apperr.ErrUpstreamMedia) {
			return backoff.Permanent(err)
		}
		r.log.Debug("blob delete failed, retrying",
			zap.String("identifier", j.Identifier), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, policy)
	if err != nil {
		r.orphans.Report(ctx, orphan(j), err)
		return
	}
	r.log.Debug("blob deleted", zap.String("identifier", j.Identifier), zap.String("reason", j.Reason))
}

func orphan(j Job) orphans.Orphan {
	return orphans.Orphan{Identifier: j.Identifier, Reason: j.Reason, Kind: j.Kind, ResourceID: j.ResourceID}
}
