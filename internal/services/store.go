package services

import (
	"context"
	"time"

	"github.com/jefmud/species-ident/internal/models"
)

// Lookups return models.ErrNotFound (possibly wrapped) when the row does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UserExists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type CatalogStore interface {
	CreateSpecies(ctx context.Context, s *models.Species) error
	UpdateSpecies(ctx context.Context, s models.Species) error
	GetSpecies(ctx context.Context, id int) (models.Species, error)
	GetSpeciesByName(ctx context.Context, name string) (models.Species, error)
	ListSpecies(ctx context.Context) ([]models.Species, error)
	CreateImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id int) (models.Image, error)
	ListImages(ctx context.Context, offset, limit int) ([]models.Image, error)
	// ImageStats returns the number of images and the largest image id.
	ImageStats(ctx context.Context) (count, maxID int, err error)
}

type LedgerStore interface {
	InsertObservation(ctx context.Context, o *models.Observation) error
	GetObservation(ctx context.Context, id int) (models.Observation, error)
	// DeleteObservation removes the observation only if authorize returns nil.
	DeleteObservation(ctx context.Context, id int, authorize func(models.Observation) error) (models.Observation, error)
	ListObservations(ctx context.Context, f models.ObservationFilter) ([]models.Observation, error)
	CountObservations(ctx context.Context) (int, error)
	CountImageObservations(ctx context.Context, imageID int) (int, error)
	// ObservationTotalsByUser returns one entry per user, including users with no observations.
	ObservationTotalsByUser(ctx context.Context) ([]models.UserTotal, error)
	// SpeciesCountsForUser maps species id to the user's observation count.
	SpeciesCountsForUser(ctx context.Context, userID int) (map[int]int, error)

	InsertTalk(ctx context.Context, t *models.Talk) error
	DeleteTalk(ctx context.Context, id int, authorize func(models.Talk) error) (models.Talk, error)
	ListTalk(ctx context.Context, f models.TalkFilter) ([]models.Talk, error)
}

type Store interface {
	UserStore
	CatalogStore
	LedgerStore
	Ping(ctx context.Context) error
	Close()
}

// TokenDenylist remembers revoked token ids until they would have expired anyway.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// EventSink receives ledger events after they are committed.
type EventSink interface {
	Publish(ctx context.Context, ev models.LedgerEvent) error
}
