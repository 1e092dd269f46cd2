package services

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jefmud/species-ident/internal/models"
)

func TestParseCount(t *testing.T) {
	cases := map[string]int{
		"3":          3,
		" 12 ":       12,
		"0":          0,
		"-4":         0,
		"":           0,
		"two":        0,
		"1.5":        0,
		"2147483647": 2147483647,
		"2147483648": 0,
		"3000000000": 0,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseCount(raw), "ParseCount(%q)", raw)
	}
}

func TestRecordIncrementsUserTotal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	env.addImages(t, 1)
	env.addSpecies(t, "zebra", nil)

	before, err := env.agg.UserTotals(env.ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)

	obs, err := env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{
		Species: "zebra",
		Count:   "4",
		Notes:   "two foals",
		Overlay: map[string]any{"x": 10.0},
	})
	require.NoError(t, err)
	assert.NotZero(t, obs.ID)
	assert.Equal(t, 4, obs.Count)
	assert.Equal(t, "zebra", obs.SpeciesName)
	assert.Equal(t, "alice", obs.Username)

	after, err := env.agg.UserTotals(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, before[0].Count+1, after[0].Count)

	assert.Equal(t, []string{models.EventObservationRecorded}, env.sink.names())
}

func TestRecordResolvesSpeciesByIDOrName(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	env.addImages(t, 1)
	zebra := env.addSpecies(t, "zebra", nil)

	byID, err := env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{Species: models.FormValue(strconv.Itoa(zebra.ID)), Count: "1"})
	require.NoError(t, err)
	assert.Equal(t, zebra.ID, byID.SpeciesID)

	byName, err := env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{Species: "zebra", Count: "1"})
	require.NoError(t, err)
	assert.Equal(t, zebra.ID, byName.SpeciesID)

	// both observations of the same image by the same user are kept
	list, err := env.ledger.ListObservations(env.ctx, models.ObservationFilter{UserID: alice.UserID, ImageID: 1})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRecordRejectsUnknownSpeciesAndImage(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	env.addImages(t, 1)
	env.addSpecies(t, "zebra", nil)

	_, err := env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{Species: "unicorn", Count: "1"})
	assert.ErrorIs(t, err, models.ErrSpeciesNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = env.ledger.Record(env.ctx, alice, 99, models.ObservationRequest{Species: "zebra", Count: "1"})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.False(t, errors.Is(err, models.ErrSpeciesNotFound))

	n, err := env.store.CountObservations(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, env.sink.names())
}

func TestRecordCoercesBadCount(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	env.addImages(t, 1)
	env.addSpecies(t, "zebra", nil)

	obs, err := env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{Species: "zebra", Count: "lots"})
	require.NoError(t, err)
	assert.Equal(t, 0, obs.Count)

	obs, err = env.ledger.Record(env.ctx, alice, 1, models.ObservationRequest{Species: "zebra", Count: "3000000000"})
	require.NoError(t, err)
	assert.Equal(t, 0, obs.Count)
}

func TestDeleteObservation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	bob := env.addUser(t, "bob", false)
	admin := env.addUser(t, "root", true)
	env.addImages(t, 1)
	env.addSpecies(t, "zebra", nil)

	t.Run("non-owner is forbidden and ledger unchanged", func(t *testing.T) {
		obs := env.record(t, alice, 1, "zebra")
		before, err := env.store.CountObservations(env.ctx)
		require.NoError(t, err)

		_, err = env.ledger.Delete(env.ctx, obs.ID, bob)
		assert.ErrorIs(t, err, models.ErrForbidden)

		after, err := env.store.CountObservations(env.ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		_, err = env.ledger.GetObservation(env.ctx, obs.ID)
		assert.NoError(t, err)
	})

	t.Run("owner can delete", func(t *testing.T) {
		obs := env.record(t, alice, 1, "zebra")
		deleted, err := env.ledger.Delete(env.ctx, obs.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, obs.ID, deleted.ID)

		_, err = env.ledger.GetObservation(env.ctx, obs.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("admin can delete anything", func(t *testing.T) {
		obs := env.record(t, bob, 1, "zebra")
		_, err := env.ledger.Delete(env.ctx, obs.ID, admin)
		require.NoError(t, err)
	})

	t.Run("missing observation", func(t *testing.T) {
		_, err := env.ledger.Delete(env.ctx, 12345, admin)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("anonymous actor is forbidden", func(t *testing.T) {
		obs := env.record(t, alice, 1, "zebra")
		_, err := env.ledger.Delete(env.ctx, obs.ID, models.Actor{})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestTalk(t *testing.T) {
	env := newTestEnv(t)
	alice := env.addUser(t, "alice", false)
	bob := env.addUser(t, "bob", false)
	env.addImages(t, 1, 2)

	_, err := env.ledger.AddTalk(env.ctx, alice, 1, "   ")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "notes", verr.Field)

	_, err = env.ledger.AddTalk(env.ctx, alice, 77, "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)

	note, err := env.ledger.AddTalk(env.ctx, alice, 1, "is that a hyena?")
	require.NoError(t, err)
	_, err = env.ledger.AddTalk(env.ctx, alice, 2, "blurry")
	require.NoError(t, err)

	onImage, err := env.ledger.ListTalk(env.ctx, models.TalkFilter{UserID: alice.UserID, ImageID: 1})
	require.NoError(t, err)
	require.Len(t, onImage, 1)
	assert.Equal(t, "is that a hyena?", onImage[0].Notes)

	all, err := env.ledger.ListTalk(env.ctx, models.TalkFilter{UserID: alice.UserID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = env.ledger.DeleteTalk(env.ctx, note.ID, bob)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.ledger.DeleteTalk(env.ctx, note.ID, alice)
	require.NoError(t, err)

	all, err = env.ledger.ListTalk(env.ctx, models.TalkFilter{UserID: alice.UserID})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Equal(t, []string{models.EventTalkAdded, models.EventTalkAdded, models.EventTalkDeleted}, env.sink.names())
}
