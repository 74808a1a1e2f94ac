package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepository is the in-process driver used for development and tests.
// Records are stored as copies so callers never share state with the store.
type MemoryRepository[T models.Resource] struct {
	kind  *models.Kind[T]
	mu    sync.RWMutex
	recs  map[string]T
	seq   map[string]int
	next  int
	now   func() time.Time
	newID func() string
}

func NewMemoryRepository[T models.Resource](kind *models.Kind[T]) *MemoryRepository[T] {
	return &MemoryRepository[T]{
		kind:  kind,
		recs:  map[string]T{},
		seq:   map[string]int{},
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (r *MemoryRepository[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, apperr.Persistence("create "+r.kind.Name+" failed", err)
	}
	meta := rec.Meta()
	meta.ID = r.newID()
	meta.CreatedAt = r.now()
	meta.UpdatedAt = meta.CreatedAt
	if err := models.Validate(rec); err != nil {
		return zero, err
	}
	stored, err := r.kind.Clone(rec)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(stored, ""); err != nil {
		return zero, err
	}
	r.recs[meta.ID] = stored
	r.next++
	r.seq[meta.ID] = r.next
	return rec, nil
}

func (r *MemoryRepository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	r.mu.RLock()
	rec, ok := r.recs[id]
	r.mu.RUnlock()
	if !ok {
		return zero, apperr.NotFound(r.kind.Name, id)
	}
	return r.kind.Clone(rec)
}

func (r *MemoryRepository[T]) Update(ctx context.Context, id string, patch models.Patch) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, apperr.Persistence("update "+r.kind.Name+" failed", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.recs[id]
	if !ok {
		return zero, apperr.NotFound(r.kind.Name, id)
	}
	merged, err := r.kind.Apply(current, writable(r.kind, patch))
	if err != nil {
		return zero, err
	}
	meta := merged.Meta()
	meta.UpdatedAt = stamp(r.now(), meta.CreatedAt)
	if err := models.Validate(merged); err != nil {
		return zero, err
	}
	if err := r.checkUnique(merged, id); err != nil {
		return zero, err
	}
	r.recs[id] = merged
	return r.kind.Clone(merged)
}

func (r *MemoryRepository[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Persistence("delete "+r.kind.Name+" failed", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[id]; !ok {
		return apperr.NotFound(r.kind.Name, id)
	}
	delete(r.recs, id)
	delete(r.seq, id)
	return nil
}

func (r *MemoryRepository[T]) ListByOwner(ctx context.Context, ownerID string) ([]T, error) {
	return r.list(func(rec T, _ bson.M) bool { return rec.Meta().OwnerID == ownerID }, 0, 0, false)
}

func (r *MemoryRepository[T]) ListPublic(ctx context.Context, f Filter) ([]T, error) {
	match := func(_ T, doc bson.M) bool {
		for k, v := range r.kind.PublicScope {
			if fmt.Sprint(lookup(doc, k)) != fmt.Sprint(v) {
				return false
			}
		}
		for k, v := range f.Equals {
			if r.kind.CanFilter(k) && fmt.Sprint(lookup(doc, k)) != v {
				return false
			}
		}
		return true
	}
	return r.list(match, f.limit(), max(f.Skip, 0), true)
}

func (r *MemoryRepository[T]) ForEach(ctx context.Context, fn func(T) error) error {
	all, err := r.list(func(T, bson.M) bool { return true }, 0, 0, false)
	if err != nil {
		return err
	}
	for _, rec := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// list returns copies of the matching records, newest first.
func (r *MemoryRepository[T]) list(match func(T, bson.M) bool, limit, skip int, public bool) ([]T, error) {
	r.mu.RLock()
	type entry struct {
		rec T
		seq int
	}
	var hits []entry
	for id, rec := range r.recs {
		doc, err := models.ToDoc(rec)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if match(rec, doc) {
			hits = append(hits, entry{rec: rec, seq: r.seq[id]})
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		ci, cj := hits[i].rec.Meta().CreatedAt, hits[j].rec.Meta().CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return hits[i].seq > hits[j].seq
	})
	if skip >= len(hits) {
		return []T{}, nil
	}
	hits = hits[skip:]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]T, 0, len(hits))
	for _, h := range hits {
		var (
			rec T
			err error
		)
		if public {
			rec, err = r.kind.Public(h.rec)
		} else {
			rec, err = r.kind.Clone(h.rec)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// checkUnique must be called with the write lock held.
func (r *MemoryRepository[T]) checkUnique(rec T, self string) error {
	if len(r.kind.Unique) == 0 {
		return nil
	}
	doc, err := models.ToDoc(rec)
	if err != nil {
		return err
	}
	for id, other := range r.recs {
		if id == self {
			continue
		}
		od, err := models.ToDoc(other)
		if err != nil {
			return err
		}
		for _, u := range r.kind.Unique {
			v := lookup(doc, u.Field)
			if v == nil || v == "" {
				continue
			}
			if fmt.Sprint(v) == fmt.Sprint(lookup(od, u.Field)) {
				return apperr.Validation(u.Field, u.Message)
			}
		}
	}
	return nil
}

// lookup resolves a dotted path in a document.
func lookup(doc bson.M, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case bson.M:
			cur = m[part]
		case bson.D:
			cur = m.Map()[part]
		default:
			return nil
		}
	}
	return cur
}
