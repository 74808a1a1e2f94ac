package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
)

func uniqueIndexName(field string) string {
	return field + "_unique"
}

// classify maps a driver error onto the service error taxonomy.
func classify[T models.Resource](kind *models.Kind[T], op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		field := duplicateField(kind, err.Error())
		msg := kind.UniqueMessage(field)
		if msg == "" {
			msg = "a " + kind.Name + " with these details already exists"
		}
		return apperr.Validation(field, msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return apperr.Persistence(op+" "+kind.Name+" failed", err)
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		return apperr.Conflict(kind.Name+" violates a storage constraint", err)
	}
	return apperr.Persistence(op+" "+kind.Name+" failed", err)
}

func duplicateField[T models.Resource](kind *models.Kind[T], msg string) string {
	for _, u := range kind.Unique {
		if strings.Contains(msg, "index: "+uniqueIndexName(u.Field)) {
			return u.Field
		}
	}
	return ""
}
