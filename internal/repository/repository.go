package repository

import (
	"context"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Filter narrows a public listing. Keys of Equals that the kind does not
// allow filtering on are ignored.
type Filter struct {
	Equals map[string]string
	Limit  int
	Skip   int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}

// Repository persists records of one resource kind.
type Repository[T models.Resource] interface {
	// Create assigns id and timestamps, validates and stores rec.
	Create(ctx context.Context, rec T) (T, error)
	Get(ctx context.Context, id string) (T, error)
	// Update applies a partial update. Immutable and unknown keys are dropped.
	Update(ctx context.Context, id string, patch models.Patch) (T, error)
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]T, error)
	ListPublic(ctx context.Context, f Filter) ([]T, error)
	// ForEach streams every record. Only the cleanup sweeper uses it.
	ForEach(ctx context.Context, fn func(T) error) error
}

// stamp returns the updated_at value for a write: never before created_at.
func stamp(now, created time.Time) time.Time {
	if now.Before(created) {
		return created
	}
	return now
}

// writable keeps the patch keys the kind accepts.
func writable[T models.Resource](kind *models.Kind[T], patch models.Patch) models.Patch {
	out := models.Patch{}
	for k, v := range patch.Sanitize() {
		if kind.Writable(k) {
			out[k] = v
		}
	}
	return out
}
