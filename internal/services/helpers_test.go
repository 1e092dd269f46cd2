package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jefmud/species-ident/internal/db"
	"github.com/jefmud/species-ident/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.LedgerEvent
}

func (r *recordingSink) Publish(ctx context.Context, ev models.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Event)
	}
	return out
}

type testEnv struct {
	ctx     context.Context
	store   *db.MemoryStore
	catalog *CatalogService
	ledger  *LedgerService
	agg     *Aggregator
	users   *UserService
	sink    *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := db.NewMemoryStore()
	catalog := NewCatalogService(store, 0)
	sink := &recordingSink{}
	tokens := NewTokenIssuer("test-secret", time.Hour, 24*time.Hour, db.NewMemoryDenylist())
	users := NewUserService(store, tokens)
	users.SetHashCost(bcrypt.MinCost)

	return &testEnv{
		ctx:     context.Background(),
		store:   store,
		catalog: catalog,
		ledger:  NewLedgerService(store, catalog, sink),
		agg:     NewAggregator(store, catalog),
		users:   users,
		sink:    sink,
	}
}

func (e *testEnv) addUser(t *testing.T, username string, admin bool) models.Actor {
	t.Helper()
	u := models.User{Username: username, Email: username + "@example.com", PasswordHash: "x", IsAdmin: admin}
	require.NoError(t, e.store.CreateUser(e.ctx, &u))
	return models.ActorFor(u)
}

func (e *testEnv) addImages(t *testing.T, ids ...int) {
	t.Helper()
	for _, id := range ids {
		e.store.PutImage(models.Image{ID: id, BaseURL: "http://example.com/", FilePath: fmt.Sprintf("S1/%d.JPG", id)})
	}
}

func (e *testEnv) addSpecies(t *testing.T, name string, attrs map[string]bool) models.Species {
	t.Helper()
	sp, err := e.catalog.CreateSpecies(e.ctx, models.SpeciesRequest{Name: name, Attributes: attrs})
	require.NoError(t, err)
	return sp
}

func (e *testEnv) record(t *testing.T, who models.Actor, imageID int, species string) models.Observation {
	t.Helper()
	obs, err := e.ledger.Record(e.ctx, who, imageID, models.ObservationRequest{Species: models.FormValue(species), Count: "1"})
	require.NoError(t, err)
	return obs
}
