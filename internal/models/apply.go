package models

import (
	"fmt"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"go.mongodb.org/mongo-driver/bson"
)

// Apply overlays a patch onto a copy of base. base itself is left untouched.
func (k *Kind[T]) Apply(base T, p Patch) (T, error) {
	var zero T
	doc, err := ToDoc(base)
	if err != nil {
		return zero, err
	}
	for key, v := range p {
		doc[key] = v
	}
	out := k.New()
	raw, err := bson.Marshal(doc)
	if err != nil {
		return zero, apperr.Validation("", fmt.Sprintf("invalid %s payload", k.Name))
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return zero, apperr.Validation("", fmt.Sprintf("invalid %s payload: %v", k.Name, err))
	}
	return out, nil
}

// Public returns a copy of v with the hidden fields removed.
func (k *Kind[T]) Public(v T) (T, error) {
	var zero T
	doc, err := ToDoc(v)
	if err != nil {
		return zero, err
	}
	for _, f := range k.Hidden() {
		delete(doc, f)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return zero, err
	}
	out := k.New()
	if err := bson.Unmarshal(raw, out); err != nil {
		return zero, err
	}
	return out, nil
}

// Clone returns a deep copy of v.
func (k *Kind[T]) Clone(v T) (T, error) {
	return k.Apply(v, nil)
}

// ToDoc converts a record to its stored document form.
func ToDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal resource: %w", err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal resource: %w", err)
	}
	return doc, nil
}
