package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefmud/species-ident/internal/models"
)

func seed(t *testing.T, s *MemoryStore) (models.User, models.Species, models.Image) {
	t.Helper()
	ctx := context.Background()

	u := models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, &u))
	sp := models.Species{Name: "zebra", Attributes: map[string]bool{"ungulate": true}}
	require.NoError(t, s.CreateSpecies(ctx, &sp))
	img := models.Image{BaseURL: "http://x/", FilePath: "a.JPG"}
	require.NoError(t, s.CreateImage(ctx, &img))
	return u, sp, img
}

func TestMemoryStoreUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seed(t, s)

	var conflict *models.ConflictError

	err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "new@example.com"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)

	err = s.CreateUser(ctx, &models.User{Username: "alicia", Email: "alice@example.com"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)

	err = s.CreateSpecies(ctx, &models.Species{Name: "zebra"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "name", conflict.Field)

	err = s.CreateImage(ctx, &models.Image{FilePath: "a.JPG"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "filepath", conflict.Field)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMemoryStoreUsernameConflictReportedFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "alice", Email: "a@example.com"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "bob", Email: "b@example.com"}))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateUser(ctx, &models.User{Username: fmt.Sprintf("user%d", i), Email: fmt.Sprintf("u%d@example.com", i)}))
	}

	// the username matches one user and the email another
	for i := 0; i < 20; i++ {
		var conflict *models.ConflictError
		err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "b@example.com"})
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "username", conflict.Field)
	}
}

func TestMemoryStoreUserExists(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s)

	u, e, err := s.UserExists(context.Background(), "alice", "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, u)
	assert.False(t, e)

	u, e, err = s.UserExists(context.Background(), "bob", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, u)
	assert.True(t, e)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, sp, _ := seed(t, s)

	got, err := s.GetSpecies(ctx, sp.ID)
	require.NoError(t, err)
	got.Attributes["ungulate"] = false

	again, err := s.GetSpecies(ctx, sp.ID)
	require.NoError(t, err)
	assert.True(t, again.Attributes["ungulate"])
}

func TestMemoryStoreObservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, sp, img := seed(t, s)

	base := time.Date(2013, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		o := models.Observation{UserID: u.ID, ImageID: img.ID, SpeciesID: sp.ID, Count: i, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.InsertObservation(ctx, &o))
		assert.Equal(t, "zebra", o.SpeciesName)
		assert.Equal(t, "alice", o.Username)
	}

	err := s.InsertObservation(ctx, &models.Observation{UserID: u.ID, ImageID: img.ID, SpeciesID: 99})
	assert.ErrorIs(t, err, models.ErrSpeciesNotFound)
	err = s.InsertObservation(ctx, &models.Observation{UserID: u.ID, ImageID: 99, SpeciesID: sp.ID})
	assert.ErrorIs(t, err, models.ErrNotFound)

	list, err := s.ListObservations(ctx, models.ObservationFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 2, list[0].Count, "newest first")

	paged, err := s.ListObservations(ctx, models.ObservationFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, 1, paged[0].Count)

	n, err := s.CountImageObservations(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	counts, err := s.SpeciesCountsForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{sp.ID: 3}, counts)
}

func TestMemoryStoreDeleteAuthorizeFailureKeepsRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u, sp, img := seed(t, s)

	o := models.Observation{UserID: u.ID, ImageID: img.ID, SpeciesID: sp.ID}
	require.NoError(t, s.InsertObservation(ctx, &o))

	_, err := s.DeleteObservation(ctx, o.ID, func(models.Observation) error { return models.ErrForbidden })
	assert.ErrorIs(t, err, models.ErrForbidden)

	n, err := s.CountObservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := s.DeleteObservation(ctx, o.ID, func(models.Observation) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, o.ID, deleted.ID)

	_, err = s.DeleteObservation(ctx, o.ID, func(models.Observation) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStoreImageStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	count, maxID, err := s.ImageStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, maxID)

	s.PutImage(models.Image{ID: 4, FilePath: "four.JPG"})
	s.PutImage(models.Image{ID: 9, FilePath: "nine.JPG"})

	count, maxID, err = s.ImageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 9, maxID)

	// new images continue after the highest explicit id
	img := models.Image{FilePath: "ten.JPG"}
	require.NoError(t, s.CreateImage(ctx, &img))
	assert.Equal(t, 10, img.ID)

	_, err = s.GetImage(ctx, 5)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
