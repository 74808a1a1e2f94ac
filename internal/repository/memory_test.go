package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/apperr"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func donation(owner, title string) *models.Donation {
	d := models.Donations.New()
	d.OwnerID = owner
	d.Title = title
	d.Description = "desc"
	d.Quantity = "1"
	d.Location = &models.Location{Address: "a", City: "Pune", State: "MH"}
	return d
}

func clockFrom(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestMemoryCreateAssignsMetadata(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	d, err := repo.Create(ctx, donation("u1", "rice"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.False(t, d.CreatedAt.IsZero())
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)

	got, err := repo.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "rice", got.Title)

	got.Title = "mutated"
	again, _ := repo.Get(ctx, d.ID)
	assert.Equal(t, "rice", again.Title, "Get returns a copy")
}

func TestMemoryCreateValidates(t *testing.T) {
	repo := NewMemoryRepository(models.Donations)
	d := donation("u1", "rice")
	d.Quantity = ""
	_, err := repo.Create(context.Background(), d)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "quantity", e.Field)
}

func TestMemoryUpdateKeepsImmutableFields(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	repo.now = clockFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d, err := repo.Create(ctx, donation("u1", "rice"))
	require.NoError(t, err)

	out, err := repo.Update(ctx, d.ID, models.Patch{
		"title":      "dal",
		"owner_id":   "u2",
		"_id":        "other",
		"created_at": time.Now(),
		"unknown":    "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "dal", out.Title)
	assert.Equal(t, "u1", out.OwnerID)
	assert.Equal(t, d.ID, out.ID)
	assert.True(t, d.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, out.UpdatedAt.After(out.CreatedAt))
}

func TestMemoryUpdateNeverStampsBeforeCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	created := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return created }
	d, err := repo.Create(ctx, donation("u1", "rice"))
	require.NoError(t, err)

	repo.now = func() time.Time { return created.Add(-time.Hour) }
	out, err := repo.Update(ctx, d.ID, models.Patch{"title": "late"})
	require.NoError(t, err)
	assert.True(t, created.Equal(out.UpdatedAt))
}

func TestMemoryUpdateRejectsInvalidMergeWithoutWriting(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	d, err := repo.Create(ctx, donation("u1", "rice"))
	require.NoError(t, err)

	_, err = repo.Update(ctx, d.ID, models.Patch{"status": "sold"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	got, _ := repo.Get(ctx, d.ID)
	assert.Equal(t, models.DonationAvailable, got.Status)

	_, err = repo.Update(ctx, "missing", models.Patch{"title": "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.NGOs)
	ngo := func(owner, email string) *models.NGO {
		n := models.NGOs.New()
		n.OwnerID = owner
		n.OrganizationName = "Helping Hands"
		n.OrganizationEmail = email
		return n
	}
	first, err := repo.Create(ctx, ngo("u1", "a@ngo.org"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, ngo("u2", "a@ngo.org"))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, "organization_email", e.Field)
	assert.Contains(t, e.Message, "An NGO with this email address already exists")

	second, err := repo.Create(ctx, ngo("u2", "b@ngo.org"))
	require.NoError(t, err)
	_, err = repo.Update(ctx, second.ID, models.Patch{"organization_email": "a@ngo.org"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = repo.Update(ctx, first.ID, models.Patch{"organization_email": "a@ngo.org"})
	assert.NoError(t, err, "a record does not collide with itself")
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	d, err := repo.Create(ctx, donation("u1", "rice"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, d.ID))
	assert.ErrorIs(t, repo.Delete(ctx, d.ID), apperr.ErrNotFound)
	_, err = repo.Get(ctx, d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryListings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	repo.now = clockFrom(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 25; i++ {
		owner := "u1"
		if i%5 == 0 {
			owner = "u2"
		}
		_, err := repo.Create(ctx, donation(owner, fmt.Sprintf("d%02d", i)))
		require.NoError(t, err)
	}
	done := donation("u1", "finished")
	done.Status = models.DonationCompleted
	_, err := repo.Create(ctx, done)
	require.NoError(t, err)

	mine, err := repo.ListByOwner(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, mine, 5)
	assert.Equal(t, "d20", mine[0].Title, "newest first")
	assert.Equal(t, "u2", mine[0].OwnerID)

	pub, err := repo.ListPublic(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, pub, DefaultLimit)
	assert.Equal(t, "d24", pub[0].Title, "completed donations are outside the public scope")
	for _, d := range pub {
		assert.Empty(t, d.OwnerID)
	}

	page, err := repo.ListPublic(ctx, Filter{Skip: 20, Limit: 500})
	require.NoError(t, err)
	assert.Len(t, page, 5)

	_, err = repo.Create(ctx, func() *models.Donation {
		d := donation("u3", "mumbai")
		d.Location.City = "Mumbai"
		return d
	}())
	require.NoError(t, err)
	city, err := repo.ListPublic(ctx, Filter{Equals: map[string]string{"location.city": "Mumbai", "owner_id": "u1"}})
	require.NoError(t, err)
	require.Len(t, city, 1, "owner_id is not filterable and is ignored")
	assert.Equal(t, "mumbai", city[0].Title)
}

func TestMemoryForEachStopsOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(models.Donations)
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, donation("u1", "x"))
		require.NoError(t, err)
	}
	stop := errors.New("stop")
	n := 0
	err := repo.ForEach(ctx, func(*models.Donation) error {
		n++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}
