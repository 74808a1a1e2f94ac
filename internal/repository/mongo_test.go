package repository

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func asD(t testing.TB, v any) bson.D {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func ns(mt *mtest.T) string {
	return mt.DB.Name() + "." + mt.Coll.Name()
}

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	newRepo := func(mt *mtest.T) *MongoRepository[*models.Donation] {
		r := NewMongoRepository(mt.Coll, models.Donations)
		r.now = func() time.Time { return fixed }
		r.newID = func() string { return "d1" }
		return r
	}

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		d, err := newRepo(mt).Create(ctx, donation("u1", "rice"))
		require.NoError(mt, err)
		assert.Equal(mt, "d1", d.ID)
		assert.Equal(mt, fixed, d.CreatedAt)
	})

	mt.Run("create validates before writing", func(mt *mtest.T) {
		d := donation("u1", "rice")
		d.Location = nil
		_, err := newRepo(mt).Create(ctx, d)
		assert.ErrorIs(mt, err, apperr.ErrValidation)
	})

	mt.Run("get not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))
		_, err := newRepo(mt).Get(ctx, "missing")
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})

	mt.Run("get", func(mt *mtest.T) {
		stored := donation("u1", "rice")
		stored.ID = "d1"
		stored.CreatedAt = fixed
		stored.UpdatedAt = fixed
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, asD(mt, stored)))
		got, err := newRepo(mt).Get(ctx, "d1")
		require.NoError(mt, err)
		assert.Equal(mt, "rice", got.Title)
		assert.Equal(mt, "Pune", got.Location.City)
	})

	mt.Run("update", func(mt *mtest.T) {
		stored := donation("u1", "rice")
		stored.ID = "d1"
		stored.CreatedAt = fixed.Add(-time.Hour)
		after := *stored
		after.Title = "dal"
		after.UpdatedAt = fixed
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, asD(mt, stored)),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: asD(mt, &after)}),
		)
		out, err := newRepo(mt).Update(ctx, "d1", models.Patch{"title": "dal", "owner_id": "u9"})
		require.NoError(mt, err)
		assert.Equal(mt, "dal", out.Title)
		assert.Equal(mt, "u1", out.OwnerID)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		err := newRepo(mt).Delete(ctx, "d1")
		assert.ErrorIs(mt, err, apperr.ErrNotFound)
	})

	mt.Run("delete", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		assert.NoError(mt, newRepo(mt).Delete(ctx, "d1"))
	})

	mt.Run("list by owner", func(mt *mtest.T) {
		a, b := donation("u1", "a"), donation("u1", "b")
		a.ID, b.ID = "1", "2"
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns(mt), mtest.FirstBatch, asD(mt, a)),
			mtest.CreateCursorResponse(0, ns(mt), mtest.NextBatch, asD(mt, b)),
		)
		out, err := newRepo(mt).ListByOwner(ctx, "u1")
		require.NoError(mt, err)
		require.Len(mt, out, 2)
		assert.Equal(mt, "b", out[1].Title)
	})

	mt.Run("store failure is a persistence error", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 0}, {Key: "code", Value: 2}, {Key: "errmsg", Value: "bad value"}})
		_, err := newRepo(mt).Get(ctx, "d1")
		assert.ErrorIs(mt, err, apperr.ErrPersistence)
		assert.Equal(mt, http.StatusInternalServerError, apperr.Status(err))
	})
}

func TestMongoDuplicateKeyBecomesValidationError(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ngo email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: humanity.ngos index: organization_email_unique dup key: { organization_email: \"a@ngo.org\" }",
		}))
		repo := NewMongoRepository(mt.Coll, models.NGOs)
		n := models.NGOs.New()
		n.OwnerID = "u1"
		n.OrganizationName = "Helping Hands"
		n.OrganizationEmail = "a@ngo.org"

		_, err := repo.Create(context.Background(), n)
		e, ok := apperr.As(err)
		require.True(mt, ok)
		assert.Equal(mt, apperr.KindValidation, e.Kind)
		assert.Equal(mt, "organization_email", e.Field)
		assert.Equal(mt, models.NGOs.UniqueMessage("organization_email"), e.Message)
		assert.Equal(mt, http.StatusBadRequest, apperr.Status(err))
	})

	mt.Run("profile owner", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Code:    11000,
			Message: "E11000 duplicate key error collection: humanity.profiles index: owner_id_unique dup key: { owner_id: \"u1\" }",
		}))
		repo := NewMongoRepository(mt.Coll, models.Profiles)
		p := models.Profiles.New()
		p.OwnerID = "u1"
		p.Name = "Asha"
		p.Email = "asha@example.org"
		_, err := repo.Create(context.Background(), p)
		e, ok := apperr.As(err)
		require.True(mt, ok)
		assert.Equal(mt, "owner_id", e.Field)
	})

	mt.Run("other write errors are conflicts", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Code:    121,
			Message: "Document failed validation",
		}))
		repo := NewMongoRepository(mt.Coll, models.Donations)
		_, err := repo.Create(context.Background(), donation("u1", "rice"))
		assert.ErrorIs(mt, err, apperr.ErrPersistence)
		assert.Equal(mt, http.StatusConflict, apperr.Status(err))
	})
}
