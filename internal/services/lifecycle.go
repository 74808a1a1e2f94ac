package services

import (
	"context"
	"fmt"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/events"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/orphans"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"go.uber.org/zap"
)

// MediaStore is what the lifecycle needs from the media client.
type MediaStore interface {
	Check(policy string, f media.File) (string, error)
	Upload(ctx context.Context, policy string, f media.File) (models.MediaRef, error)
	Delete(ctx context.Context, identifier string) error
	Decode(locator string) (string, bool)
}

// Input is a decoded mutation request.
type Input struct {
	Fields models.Patch
	// Files holds new uploads keyed by slot field.
	Files map[string][]media.File
	// Remove lists slots to clear without replacement.
	Remove []string
}

type Deps struct {
	Media   MediaStore
	Reaper  *Reaper
	Orphans *OrphanReporter
	Events  EventPublisher
	Metrics *metrics.Metrics
	Log     *zap.Logger
	// CompensationTimeout bounds each compensating delete.
	CompensationTimeout time.Duration
}

// Lifecycle keeps one resource kind's records consistent with their blobs.
// Media is uploaded before metadata is written, and superseded blobs are
// deleted only after the metadata write committed.
type Lifecycle[T models.Resource] struct {
	kind    *models.Kind[T]
	repo    repository.Repository[T]
	media   MediaStore
	reaper  *Reaper
	orphans *OrphanReporter
	events  EventPublisher
	metrics *metrics.Metrics
	log     *zap.Logger
	timeout time.Duration
}

func NewLifecycle[T models.Resource](kind *models.Kind[T], repo repository.Repository[T], d Deps) *Lifecycle[T] {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	rep := d.Orphans
	if rep == nil {
		rep = NewOrphanReporter(log, d.Metrics, nil, d.Events)
	}
	timeout := d.CompensationTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Lifecycle[T]{
		kind:    kind,
		repo:    repo,
		media:   d.Media,
		reaper:  d.Reaper,
		orphans: rep,
		events:  d.Events,
		metrics: d.Metrics,
		log:     log.With(zap.String("kind", kind.Name)),
		timeout: timeout,
	}
}

func (l *Lifecycle[T]) Kind() *models.Kind[T] { return l.kind }

// Create uploads the attached files, then stores the record. When the store
// rejects the record, every blob uploaded for it is deleted again.
func (l *Lifecycle[T]) Create(ctx context.Context, p auth.Principal, in Input) (T, error) {
	var zero T
	rec, err := l.create(ctx, p, in)
	l.count("create", err)
	if err != nil {
		return zero, err
	}
	l.publish(ctx, events.ResourceCreated, rec)
	return rec, nil
}

func (l *Lifecycle[T]) create(ctx context.Context, p auth.Principal, in Input) (T, error) {
	var zero T
	if p.ID == "" {
		return zero, apperr.Forbidden("authentication required")
	}
	draft, err := l.kind.Apply(l.kind.New(), l.fields(in.Fields))
	if err != nil {
		return zero, err
	}
	draft.Meta().OwnerID = p.ID
	if err := models.Validate(draft); err != nil {
		return zero, err
	}
	if err := l.checkFiles(in.Files); err != nil {
		return zero, err
	}

	uploaded, refs, err := l.upload(ctx, in.Files)
	if err != nil {
		return zero, err
	}
	for field, r := range refs {
		draft.SetMedia(field, r)
	}

	rec, err := l.repo.Create(ctx, draft)
	if err != nil {
		l.compensate(ctx, "", uploaded)
		return zero, err
	}
	return rec, nil
}

// Update applies a patch and replaces or clears media slots. Blobs that the
// committed record no longer references are handed to the reaper.
func (l *Lifecycle[T]) Update(ctx context.Context, p auth.Principal, id string, in Input) (T, error) {
	var zero T
	rec, err := l.update(ctx, p, id, in)
	l.count("update", err)
	if err != nil {
		return zero, err
	}
	l.publish(ctx, events.ResourceUpdated, rec)
	return rec, nil
}

func (l *Lifecycle[T]) update(ctx context.Context, p auth.Principal, id string, in Input) (T, error) {
	var zero T
	current, err := l.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := auth.Authorize(p, current, auth.ActionUpdate); err != nil {
		return zero, err
	}

	fields := l.fields(in.Fields)
	merged, err := l.kind.Apply(current, fields)
	if err != nil {
		return zero, err
	}
	if err := models.Validate(merged); err != nil {
		return zero, err
	}
	if err := l.checkFiles(in.Files); err != nil {
		return zero, err
	}
	clear := map[string]bool{}
	for _, field := range in.Remove {
		if _, ok := l.kind.Slot(field); !ok {
			return zero, apperr.Validation(field, field+" is not a media field")
		}
		if _, replaced := in.Files[field]; !replaced {
			clear[field] = true
		}
	}

	uploaded, refs, err := l.upload(ctx, in.Files)
	if err != nil {
		return zero, err
	}

	patch := models.Patch{}
	for k, v := range fields {
		patch[k] = v
	}
	old := current.Media()
	var superseded []models.MediaRef
	for _, slot := range l.kind.Slots {
		r, replaced := refs[slot.Field]
		if !replaced && !clear[slot.Field] {
			continue
		}
		patch[slot.Field] = slotValue(slot, r)
		superseded = append(superseded, old[slot.Field]...)
	}

	rec, err := l.repo.Update(ctx, id, patch)
	if err != nil {
		l.compensate(ctx, id, uploaded)
		return zero, err
	}
	l.reap(id, "superseded", superseded)
	return rec, nil
}

// Delete removes the record, then hands all of its blobs to the reaper.
func (l *Lifecycle[T]) Delete(ctx context.Context, p auth.Principal, id string) error {
	rec, err := l.delete(ctx, p, id)
	l.count("delete", err)
	if err != nil {
		return err
	}
	l.publish(ctx, events.ResourceDeleted, rec)
	return nil
}

func (l *Lifecycle[T]) delete(ctx context.Context, p auth.Principal, id string) (T, error) {
	var zero T
	current, err := l.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := auth.Authorize(p, current, auth.ActionDelete); err != nil {
		return zero, err
	}
	if err := l.repo.Delete(ctx, id); err != nil {
		return zero, err
	}
	var refs []models.MediaRef
	for _, slot := range l.kind.Slots {
		refs = append(refs, current.Media()[slot.Field]...)
	}
	l.reap(id, "resource deleted", refs)
	return current, nil
}

// Get returns the full record to its owner and the public projection to
// anyone else.
func (l *Lifecycle[T]) Get(ctx context.Context, p auth.Principal, id string) (T, error) {
	var zero T
	rec, err := l.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if auth.Authorize(p, rec, auth.ActionRead) == nil {
		return rec, nil
	}
	return l.kind.Public(rec)
}

func (l *Lifecycle[T]) ListMine(ctx context.Context, p auth.Principal) ([]T, error) {
	if p.ID == "" {
		return nil, apperr.Forbidden("authentication required")
	}
	return l.repo.ListByOwner(ctx, p.ID)
}

func (l *Lifecycle[T]) ListPublic(ctx context.Context, f repository.Filter) ([]T, error) {
	return l.repo.ListPublic(ctx, f)
}

// fields keeps the client-settable keys. Media slots are only ever written
// from uploads.
func (l *Lifecycle[T]) fields(in models.Patch) models.Patch {
	out := models.Patch{}
	for k, v := range in.Sanitize() {
		if l.kind.IsMutable(k) {
			out[k] = v
		}
	}
	return out
}

func (l *Lifecycle[T]) checkFiles(files map[string][]media.File) error {
	for field, fs := range files {
		slot, ok := l.kind.Slot(field)
		if !ok {
			return apperr.Validation(field, field+" is not a media field")
		}
		if len(fs) > slot.Max {
			return apperr.Validation(field, fmt.Sprintf("%s accepts at most %d files", field, slot.Max))
		}
		for _, f := range fs {
			if _, err := l.media.Check(slot.Policy, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// upload stores files slot by slot in declaration order. If any upload fails
// the blobs already stored for this request are deleted before returning.
func (l *Lifecycle[T]) upload(ctx context.Context, files map[string][]media.File) ([]models.MediaRef, map[string][]models.MediaRef, error) {
	var all []models.MediaRef
	refs := map[string][]models.MediaRef{}
	for _, slot := range l.kind.Slots {
		fs, ok := files[slot.Field]
		if !ok {
			continue
		}
		refs[slot.Field] = []models.MediaRef{}
		for _, f := range fs {
			ref, err := l.media.Upload(ctx, slot.Policy, f)
			if err != nil {
				l.compensate(ctx, "", all)
				return nil, nil, err
			}
			all = append(all, ref)
			refs[slot.Field] = append(refs[slot.Field], ref)
		}
	}
	return all, refs, nil
}

// compensate deletes blobs stored for an operation that did not commit. Each
// delete is awaited and tried once; a failure leaves an orphan.
func (l *Lifecycle[T]) compensate(ctx context.Context, resourceID string, refs []models.MediaRef) {
	for _, ref := range refs {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		err := l.media.Delete(cctx, ref.Identifier)
		cancel()
		if err != nil {
			l.orphans.Report(ctx, orphans.Orphan{
				Identifier: ref.Identifier,
				Reason:     "compensation failed",
				Kind:       l.kind.Name,
				ResourceID: resourceID,
			}, err)
		}
	}
}

// reap dispatches deletes for refs inside the managed namespace. Locators
// that do not decode, such as placeholders, are left alone.
func (l *Lifecycle[T]) reap(resourceID, reason string, refs []models.MediaRef) {
	var jobs []Job
	for _, ref := range refs {
		id, ok := l.media.Decode(ref.Locator)
		if !ok {
			continue
		}
		jobs = append(jobs, Job{Identifier: id, Kind: l.kind.Name, ResourceID: resourceID, Reason: reason})
	}
	if len(jobs) == 0 {
		return
	}
	if l.reaper == nil {
		for _, j := range jobs {
			l.orphans.Report(context.Background(), orphan(j), fmt.Errorf("no reaper configured"))
		}
		return
	}
	l.reaper.Dispatch(jobs...)
}

func (l *Lifecycle[T]) publish(ctx context.Context, typ string, rec T) {
	if l.events == nil {
		return
	}
	meta := rec.Meta()
	_ = l.events.Publish(ctx, events.Event{
		Type:       typ,
		Kind:       l.kind.Name,
		ResourceID: meta.ID,
		OwnerID:    meta.OwnerID,
	})
}

func (l *Lifecycle[T]) count(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindInternal.String()
		if e, ok := apperr.As(err); ok {
			outcome = e.Kind.String()
		}
		l.log.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
	l.metrics.Operation(l.kind.Name, op, outcome)
}

// slotValue is the stored form of a slot's refs: a list for multi slots, a
// single ref or nil otherwise.
func slotValue(slot models.Slot, refs []models.MediaRef) any {
	if slot.Multi() {
		if refs == nil {
			refs = []models.MediaRef{}
		}
		return refs
	}
	if len(refs) == 0 {
		return nil
	}
	r := refs[0]
	return &r
}
