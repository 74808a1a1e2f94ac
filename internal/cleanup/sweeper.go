// Package cleanup reclaims blobs that no record references any more.
//
// Best-effort deletes in the request path can fail and leave orphaned blobs.
// The sweeper lists every managed folder, compares it with the identifiers the
// records still reference, and deletes the rest. Blobs younger than the grace
// period are skipped since an in-flight create may not have written its record
// yet. Blobs the orphan ledger already knows about are deleted regardless of
// age.
package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source contributes the identifiers its records reference.
type Source interface {
	Collect(ctx context.Context, add func(identifier string)) error
}

type forEacher[T models.Resource] interface {
	ForEach(ctx context.Context, fn func(T) error) error
}

type repoSource[T models.Resource] struct {
	repo   forEacher[T]
	decode func(string) (string, bool)
}

// FromRepository adapts a repository into a Source.
func FromRepository[T models.Resource](repo forEacher[T], decode func(string) (string, bool)) Source {
	return repoSource[T]{repo: repo, decode: decode}
}

func (s repoSource[T]) Collect(ctx context.Context, add func(string)) error {
	return s.repo.ForEach(ctx, func(rec T) error {
		for _, refs := range rec.Media() {
			for _, ref := range refs {
				if ref.Identifier != "" {
					add(ref.Identifier)
				} else if id, ok := s.decode(ref.Locator); ok {
					add(id)
				}
			}
		}
		return nil
	})
}

type Lister interface {
	List(ctx context.Context, prefix string, fn func(storage.Object) error) error
}

type Deleter interface {
	Delete(ctx context.Context, identifier string) error
}

type Ledger interface {
	Pending(ctx context.Context) ([]string, error)
	Resolve(ctx context.Context, identifier string) error
}

type Config struct {
	Grace       time.Duration
	DryRun      bool
	Concurrency int
}

type Sweeper struct {
	sources  []Source
	store    Lister
	media    Deleter
	ledger   Ledger
	prefixes []string
	cfg      Config
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// Report summarises one sweep.
type Report struct {
	Scanned  int
	Live     int
	Young    int
	Deleted  int
	Failed   int
	Resolved int
	// Orphans lists the identifiers deleted, or that would be in a dry run.
	Orphans []string
}

func New(sources []Source, store Lister, media Deleter, ledger Ledger, prefixes []string, cfg Config, m *metrics.Metrics, log *zap.Logger) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		sources:  sources,
		store:    store,
		media:    media,
		ledger:   ledger,
		prefixes: prefixes,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// WithConfig returns a copy of the sweeper using cfg.
func (s *Sweeper) WithConfig(cfg Config) *Sweeper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = s.cfg.Concurrency
	}
	c := *s
	c.cfg = cfg
	return &c
}

func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	live, err := s.collect(ctx)
	if err != nil {
		return Report{}, err
	}
	known := map[string]bool{}
	if s.ledger != nil {
		pending, err := s.ledger.Pending(ctx)
		if err != nil {
			return Report{}, err
		}
		for _, id := range pending {
			known[id] = true
		}
	}

	var (
		mu   sync.Mutex
		rep  Report
		seen = map[string]bool{}
	)
	cutoff := s.now().Add(-s.cfg.Grace)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, prefix := range s.prefixes {
		prefix := prefix
		g.Go(func() error {
			return s.store.List(gctx, prefix, func(o storage.Object) error {
				mu.Lock()
				rep.Scanned++
				seen[o.Key] = true
				mu.Unlock()

				switch {
				case live[o.Key]:
					mu.Lock()
					rep.Live++
					mu.Unlock()
					if known[o.Key] {
						s.resolve(gctx, o.Key, &mu, &rep)
					}
					return nil
				case !known[o.Key] && o.LastModified.After(cutoff):
					mu.Lock()
					rep.Young++
					mu.Unlock()
					return nil
				}
				s.reclaim(gctx, o.Key, known[o.Key], &mu, &rep)
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	// ledger entries whose blob is already gone
	for id := range known {
		if !seen[id] {
			s.resolve(ctx, id, &mu, &rep)
		}
	}

	s.metrics.Swept("deleted", rep.Deleted)
	s.metrics.Swept("failed", rep.Failed)
	s.log.Info("sweep complete",
		zap.Bool("dry_run", s.cfg.DryRun),
		zap.Int("scanned", rep.Scanned),
		zap.Int("live", rep.Live),
		zap.Int("young", rep.Young),
		zap.Int("deleted", rep.Deleted),
		zap.Int("failed", rep.Failed),
		zap.Int("resolved", rep.Resolved))
	return rep, nil
}

func (s *Sweeper) collect(ctx context.Context) (map[string]bool, error) {
	var mu sync.Mutex
	live := map[string]bool{}
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		src := src
		g.Go(func() error {
			return src.Collect(gctx, func(id string) {
				mu.Lock()
				live[id] = true
				mu.Unlock()
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return live, nil
}

func (s *Sweeper) reclaim(ctx context.Context, key string, known bool, mu *sync.Mutex, rep *Report) {
	if s.cfg.DryRun {
		mu.Lock()
		rep.Orphans = append(rep.Orphans, key)
		mu.Unlock()
		return
	}
	if err := s.media.Delete(ctx, key); err != nil {
		s.log.Warn("sweep: delete failed", zap.String("identifier", key), zap.Error(err))
		mu.Lock()
		rep.Failed++
		mu.Unlock()
		return
	}
	mu.Lock()
	rep.Deleted++
	rep.Orphans = append(rep.Orphans, key)
	mu.Unlock()
	if known {
		s.resolve(ctx, key, mu, rep)
	}
}

func (s *Sweeper) resolve(ctx context.Context, id string, mu *sync.Mutex, rep *Report) {
	if s.ledger == nil || s.cfg.DryRun {
		return
	}
	if err := s.ledger.Resolve(ctx, id); err != nil {
		s.log.Warn("sweep: resolve failed", zap.String("identifier", id), zap.Error(err))
		return
	}
	mu.Lock()
	rep.Resolved++
	mu.Unlock()
}

// RunPeriodic sweeps once immediately and then on every interval until ctx is
// cancelled.
func (s *Sweeper) RunPeriodic(ctx context.Context, interval time.Duration) {
	go func() {
		s.runLogged(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runLogged(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) runLogged(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("sweep failed", zap.Error(err))
	}
}
