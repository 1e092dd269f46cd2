package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jefmud/species-ident/internal/models"
)

// MemoryStore is an in-process store with the same semantics as
// PostgresStore, including unique constraints. Used by tests and memory:// mode.
type MemoryStore struct {
	mu sync.RWMutex

	users        map[int]models.User
	species      map[int]models.Species
	images       map[int]models.Image
	observations map[int]models.Observation
	talk         map[int]models.Talk

	nextUserID, nextSpeciesID, nextImageID, nextObservationID, nextTalkID int

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int]models.User),
		species:      make(map[int]models.Species),
		images:       make(map[int]models.Image),
		observations: make(map[int]models.Observation),
		talk:         make(map[int]models.Talk),
		now:          time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() {}

func copySpecies(sp models.Species) models.Species {
	attrs := make(map[string]bool, len(sp.Attributes))
	for k, v := range sp.Attributes {
		attrs[k] = v
	}
	sp.Attributes = attrs
	return sp
}

func copyObservation(o models.Observation) models.Observation {
	if o.Overlay != nil {
		overlay := make(map[string]any, len(o.Overlay))
		for k, v := range o.Overlay {
			overlay[k] = v
		}
		o.Overlay = overlay
	}
	return o
}

// Users

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// username wins when both collide, whatever the map order
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return &models.ConflictError{Field: "username"}
		}
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return &models.ConflictError{Field: "email"}
		}
	}
	s.nextUserID++
	u.ID = s.nextUserID
	if u.JoinedAt.IsZero() {
		u.JoinedAt = s.now()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, models.ErrNotFound
}

func (s *MemoryStore) UserExists(ctx context.Context, username, email string) (bool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var usernameTaken, emailTaken bool
	for _, u := range s.users {
		usernameTaken = usernameTaken || u.Username == username
		emailTaken = emailTaken || u.Email == email
	}
	return usernameTaken, emailTaken, nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Catalog

func (s *MemoryStore) CreateSpecies(ctx context.Context, sp *models.Species) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.species {
		if existing.Name == sp.Name {
			return &models.ConflictError{Field: "name"}
		}
	}
	s.nextSpeciesID++
	sp.ID = s.nextSpeciesID
	s.species[sp.ID] = copySpecies(*sp)
	return nil
}

func (s *MemoryStore) UpdateSpecies(ctx context.Context, sp models.Species) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.species[sp.ID]; !ok {
		return models.ErrNotFound
	}
	for id, existing := range s.species {
		if id != sp.ID && existing.Name == sp.Name {
			return &models.ConflictError{Field: "name"}
		}
	}
	s.species[sp.ID] = copySpecies(sp)
	return nil
}

func (s *MemoryStore) GetSpecies(ctx context.Context, id int) (models.Species, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.species[id]
	if !ok {
		return models.Species{}, models.ErrNotFound
	}
	return copySpecies(sp), nil
}

func (s *MemoryStore) GetSpeciesByName(ctx context.Context, name string) (models.Species, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sp := range s.species {
		if sp.Name == name {
			return copySpecies(sp), nil
		}
	}
	return models.Species{}, models.ErrNotFound
}

func (s *MemoryStore) ListSpecies(ctx context.Context) ([]models.Species, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Species, 0, len(s.species))
	for _, sp := range s.species {
		out = append(out, copySpecies(sp))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateImage(ctx context.Context, img *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.images {
		if existing.FilePath == img.FilePath {
			return &models.ConflictError{Field: "filepath"}
		}
	}
	s.nextImageID++
	img.ID = s.nextImageID
	if img.Timestamp.IsZero() {
		img.Timestamp = s.now()
	}
	s.images[img.ID] = *img
	return nil
}

// PutImage stores an image under an explicit id, leaving gaps in the id
// sequence possible.
func (s *MemoryStore) PutImage(img models.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if img.Timestamp.IsZero() {
		img.Timestamp = s.now()
	}
	s.images[img.ID] = img
	if img.ID > s.nextImageID {
		s.nextImageID = img.ID
	}
}

func (s *MemoryStore) GetImage(ctx context.Context, id int) (models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		return models.Image{}, models.ErrNotFound
	}
	return img, nil
}

func (s *MemoryStore) ListImages(ctx context.Context, offset, limit int) ([]models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]models.Image, 0, len(s.images))
	for _, img := range s.images {
		all = append(all, img)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, offset, limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStore) ImageStats(ctx context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxID := 0
	for id := range s.images {
		if id > maxID {
			maxID = id
		}
	}
	return len(s.images), maxID, nil
}

// Ledger

func (s *MemoryStore) InsertObservation(ctx context.Context, o *models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[o.ImageID]; !ok {
		return models.ErrNotFound
	}
	u, ok := s.users[o.UserID]
	if !ok {
		return models.ErrNotFound
	}
	sp, ok := s.species[o.SpeciesID]
	if !ok {
		return models.ErrSpeciesNotFound
	}

	s.nextObservationID++
	o.ID = s.nextObservationID
	o.Username = u.Username
	o.SpeciesName = sp.Name
	if o.Timestamp.IsZero() {
		o.Timestamp = s.now()
	}
	s.observations[o.ID] = copyObservation(*o)
	return nil
}

// decorate refreshes joined display fields, as the SQL joins do.
func (s *MemoryStore) decorate(o models.Observation) models.Observation {
	if u, ok := s.users[o.UserID]; ok {
		o.Username = u.Username
	}
	if sp, ok := s.species[o.SpeciesID]; ok {
		o.SpeciesName = sp.Name
	}
	return copyObservation(o)
}

func (s *MemoryStore) GetObservation(ctx context.Context, id int) (models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.observations[id]
	if !ok {
		return models.Observation{}, models.ErrNotFound
	}
	return s.decorate(o), nil
}

func (s *MemoryStore) DeleteObservation(ctx context.Context, id int, authorize func(models.Observation) error) (models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.observations[id]
	if !ok {
		return models.Observation{}, models.ErrNotFound
	}
	o = s.decorate(o)
	if err := authorize(o); err != nil {
		return models.Observation{}, err
	}
	delete(s.observations, id)
	return o, nil
}

func newestFirst(ti, tj time.Time, ui, uj string, idi, idj int) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	if ui != uj {
		return ui < uj
	}
	return idi > idj
}

func (s *MemoryStore) ListObservations(ctx context.Context, f models.ObservationFilter) ([]models.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Observation{}
	for _, o := range s.observations {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.ImageID != 0 && o.ImageID != f.ImageID {
			continue
		}
		if f.SpeciesID != 0 && o.SpeciesID != f.SpeciesID {
			continue
		}
		out = append(out, s.decorate(o))
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].Timestamp, out[j].Timestamp, out[i].Username, out[j].Username, out[i].ID, out[j].ID)
	})
	return page(out, f.Offset, f.Limit), nil
}

func (s *MemoryStore) CountObservations(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observations), nil
}

func (s *MemoryStore) CountImageObservations(ctx context.Context, imageID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.observations {
		if o.ImageID == imageID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ObservationTotalsByUser(ctx context.Context) ([]models.UserTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int]int, len(s.users))
	for _, o := range s.observations {
		counts[o.UserID]++
	}
	totals := make([]models.UserTotal, 0, len(s.users))
	for id, u := range s.users {
		totals = append(totals, models.UserTotal{Username: u.Username, Count: counts[id]})
	}
	return totals, nil
}

func (s *MemoryStore) SpeciesCountsForUser(ctx context.Context, userID int) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int]int)
	for _, o := range s.observations {
		if o.UserID == userID {
			counts[o.SpeciesID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) InsertTalk(ctx context.Context, t *models.Talk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[t.ImageID]; !ok {
		return models.ErrNotFound
	}
	u, ok := s.users[t.UserID]
	if !ok {
		return models.ErrNotFound
	}
	s.nextTalkID++
	t.ID = s.nextTalkID
	t.Username = u.Username
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	s.talk[t.ID] = *t
	return nil
}

func (s *MemoryStore) DeleteTalk(ctx context.Context, id int, authorize func(models.Talk) error) (models.Talk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.talk[id]
	if !ok {
		return models.Talk{}, models.ErrNotFound
	}
	if err := authorize(t); err != nil {
		return models.Talk{}, err
	}
	delete(s.talk, id)
	return t, nil
}

func (s *MemoryStore) ListTalk(ctx context.Context, f models.TalkFilter) ([]models.Talk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Talk{}
	for _, t := range s.talk {
		if f.UserID != 0 && t.UserID != f.UserID {
			continue
		}
		if f.ImageID != 0 && t.ImageID != f.ImageID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].Timestamp, out[j].Timestamp, out[i].Username, out[j].Username, out[i].ID, out[j].ID)
	})
	return out, nil
}
