package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// MediaRef points at one uploaded blob. Identifier is always the decoded form
// of Locator for refs issued by the media client.
type MediaRef struct {
	Locator    string `bson:"locator" json:"url"`
	Identifier string `bson:"identifier" json:"identifier"`
}

// Base carries the fields every resource kind shares. The repository owns all
// of them; they are never taken from a client payload.
type Base struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (b *Base) Meta() *Base { return b }

// Resource is implemented by pointers to the resource kinds.
type Resource interface {
	Meta() *Base
	// Media returns the refs currently held by each media slot, keyed by slot field.
	Media() map[string][]MediaRef
	SetMedia(field string, refs []MediaRef)
}

// Patch is a partial update keyed by stored field name.
type Patch map[string]any

// Immutable fields are stripped from every patch before it is applied.
var Immutable = []string{"_id", "id", "owner_id", "created_at", "updated_at"}

func (p Patch) Sanitize() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range Immutable {
		delete(out, k)
	}
	return out
}

// Slot describes one media-bearing field of a resource kind.
type Slot struct {
	Field  string
	Policy string
	Max    int
}

func (s Slot) Multi() bool { return s.Max > 1 }

// Unique is a uniqueness constraint with the message shown when it is violated.
type Unique struct {
	Field   string
	Message string
}

// Kind describes one resource kind to the generic repository, lifecycle and
// handler code.
type Kind[T Resource] struct {
	Name        string
	Path        string
	Collection  string
	New         func() T
	Slots       []Slot
	Mutable     []string
	JSONFields  []string
	Filterable  []string
	PublicScope bson.M
	Private     []string
	Unique      []Unique
}

func (k *Kind[T]) Slot(field string) (Slot, bool) {
	for _, s := range k.Slots {
		if s.Field == field {
			return s, true
		}
	}
	return Slot{}, false
}

func (k *Kind[T]) IsMutable(field string) bool {
	return contains(k.Mutable, field)
}

// Writable reports whether a patch may set field: a mutable field or a media slot.
func (k *Kind[T]) Writable(field string) bool {
	_, isSlot := k.Slot(field)
	return isSlot || k.IsMutable(field)
}

func (k *Kind[T]) IsJSON(field string) bool {
	return contains(k.JSONFields, field)
}

func (k *Kind[T]) CanFilter(field string) bool {
	return contains(k.Filterable, field)
}

// Hidden lists the fields removed from the public projection.
func (k *Kind[T]) Hidden() []string {
	return append([]string{"owner_id"}, k.Private...)
}

func (k *Kind[T]) UniqueMessage(field string) string {
	for _, u := range k.Unique {
		if u.Field == field {
			return u.Message
		}
	}
	return ""
}

func one(ref *MediaRef) []MediaRef {
	if ref == nil {
		return nil
	}
	return []MediaRef{*ref}
}

func first(refs []MediaRef) *MediaRef {
	if len(refs) == 0 {
		return nil
	}
	r := refs[0]
	return &r
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
