package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jefmud/species-ident/internal/models"
)

// PostgresStore implements services.Store on a pgx pool. Every call borrows a
// pooled connection for its own duration.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return classify(s.pool.Ping(ctx))
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// withTx runs fn in a transaction, rolling back unless fn and commit succeed.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

// Users

const userColumns = `id, username, email, password_hash, first_name, last_name, is_admin, joined_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsAdmin, &u.JoinedAt)
	return u, classify(err)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		query := `INSERT INTO users (username, email, password_hash, first_name, last_name, is_admin)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, joined_at`
		err := tx.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsAdmin).
			Scan(&u.ID, &u.JoinedAt)
		return classify(err)
	})
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *PostgresStore) UserExists(ctx context.Context, username, email string) (bool, bool, error) {
	var usernameTaken, emailTaken bool
	query := `SELECT
		EXISTS (SELECT 1 FROM users WHERE username = $1),
		EXISTS (SELECT 1 FROM users WHERE email = $2)`
	err := s.pool.QueryRow(ctx, query, username, email).Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, classify(err)
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, classify(rows.Err())
}

// Catalog

func scanSpecies(row pgx.Row) (models.Species, error) {
	var sp models.Species
	var attrs []byte
	if err := row.Scan(&sp.ID, &sp.Name, &sp.Slug, &sp.RefURL, &attrs); err != nil {
		return models.Species{}, classify(err)
	}
	sp.Attributes = map[string]bool{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &sp.Attributes); err != nil {
			return models.Species{}, fmt.Errorf("decode attributes of %s: %w", sp.Name, err)
		}
	}
	return sp, nil
}

func marshalAttributes(attrs map[string]bool) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]bool{}
	}
	return json.Marshal(attrs)
}

func (s *PostgresStore) CreateSpecies(ctx context.Context, sp *models.Species) error {
	attrs, err := marshalAttributes(sp.Attributes)
	if err != nil {
		return err
	}
	query := `INSERT INTO species (name, slug, ref_url, attributes) VALUES ($1, $2, $3, $4) RETURNING id`
	return classify(s.pool.QueryRow(ctx, query, sp.Name, sp.Slug, sp.RefURL, attrs).Scan(&sp.ID))
}

func (s *PostgresStore) UpdateSpecies(ctx context.Context, sp models.Species) error {
	attrs, err := marshalAttributes(sp.Attributes)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE species SET name = $2, slug = $3, ref_url = $4, attributes = $5 WHERE id = $1`,
		sp.ID, sp.Name, sp.Slug, sp.RefURL, attrs)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSpecies(ctx context.Context, id int) (models.Species, error) {
	return scanSpecies(s.pool.QueryRow(ctx, `SELECT id, name, slug, ref_url, attributes FROM species WHERE id = $1`, id))
}

func (s *PostgresStore) GetSpeciesByName(ctx context.Context, name string) (models.Species, error) {
	return scanSpecies(s.pool.QueryRow(ctx, `SELECT id, name, slug, ref_url, attributes FROM species WHERE name = $1`, name))
}

func (s *PostgresStore) ListSpecies(ctx context.Context) ([]models.Species, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, slug, ref_url, attributes FROM species ORDER BY name`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	species := []models.Species{}
	for rows.Next() {
		sp, err := scanSpecies(rows)
		if err != nil {
			return nil, err
		}
		species = append(species, sp)
	}
	return species, classify(rows.Err())
}

func (s *PostgresStore) CreateImage(ctx context.Context, img *models.Image) error {
	query := `INSERT INTO images (base_url, filepath, site) VALUES ($1, $2, $3) RETURNING id, timestamp`
	return classify(s.pool.QueryRow(ctx, query, img.BaseURL, img.FilePath, img.Site).Scan(&img.ID, &img.Timestamp))
}

func (s *PostgresStore) GetImage(ctx context.Context, id int) (models.Image, error) {
	var img models.Image
	err := s.pool.QueryRow(ctx, `SELECT id, base_url, filepath, site, timestamp FROM images WHERE id = $1`, id).
		Scan(&img.ID, &img.BaseURL, &img.FilePath, &img.Site, &img.Timestamp)
	return img, classify(err)
}

func (s *PostgresStore) ListImages(ctx context.Context, offset, limit int) ([]models.Image, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, base_url, filepath, site, timestamp FROM images ORDER BY id OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.BaseURL, &img.FilePath, &img.Site, &img.Timestamp); err != nil {
			return nil, classify(err)
		}
		images = append(images, img)
	}
	return images, classify(rows.Err())
}

func (s *PostgresStore) ImageStats(ctx context.Context) (int, int, error) {
	var count, maxID int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(MAX(id), 0) FROM images`).Scan(&count, &maxID)
	return count, maxID, classify(err)
}

// Ledger

const observationSelect = `SELECT o.id, o.image_id, o.user_id, u.username, o.species_id, s.name,
	o.count, o.notes, o.overlay, o.timestamp
	FROM observations o
	JOIN users u ON u.id = o.user_id
	JOIN species s ON s.id = o.species_id`

func scanObservation(row pgx.Row) (models.Observation, error) {
	var o models.Observation
	var overlay []byte
	err := row.Scan(&o.ID, &o.ImageID, &o.UserID, &o.Username, &o.SpeciesID, &o.SpeciesName,
		&o.Count, &o.Notes, &overlay, &o.Timestamp)
	if err != nil {
		return models.Observation{}, classify(err)
	}
	if len(overlay) > 0 {
		if err := json.Unmarshal(overlay, &o.Overlay); err != nil {
			return models.Observation{}, fmt.Errorf("decode overlay of observation %d: %w", o.ID, err)
		}
	}
	return o, nil
}

func (s *PostgresStore) InsertObservation(ctx context.Context, o *models.Observation) error {
	var overlay any
	if len(o.Overlay) > 0 {
		b, err := json.Marshal(o.Overlay)
		if err != nil {
			return fmt.Errorf("encode overlay: %w", err)
		}
		overlay = b
	}

	query := `INSERT INTO observations (image_id, user_id, species_id, count, notes, overlay, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := s.pool.QueryRow(ctx, query, o.ImageID, o.UserID, o.SpeciesID, o.Count, o.Notes, overlay, o.Timestamp).
		Scan(&o.ID)
	return classify(err)
}

func (s *PostgresStore) GetObservation(ctx context.Context, id int) (models.Observation, error) {
	return scanObservation(s.pool.QueryRow(ctx, observationSelect+` WHERE o.id = $1`, id))
}

func (s *PostgresStore) DeleteObservation(ctx context.Context, id int, authorize func(models.Observation) error) (models.Observation, error) {
	var obs models.Observation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		obs, err = scanObservation(tx.QueryRow(ctx, observationSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id))
		if err != nil {
			return err
		}
		if err := authorize(obs); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM observations WHERE id = $1`, id)
		return classify(err)
	})
	if err != nil {
		return models.Observation{}, err
	}
	return obs, nil
}

type cond struct {
	column string
	value  int
}

// where builds a WHERE clause from the conditions with non-zero values.
func where(conds ...cond) (string, []any) {
	var clauses []string
	var args []any
	for _, c := range conds {
		if c.value == 0 {
			continue
		}
		args = append(args, c.value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", c.column, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) ListObservations(ctx context.Context, f models.ObservationFilter) ([]models.Observation, error) {
	clause, args := where(cond{"o.user_id", f.UserID}, cond{"o.image_id", f.ImageID}, cond{"o.species_id", f.SpeciesID})
	query := observationSelect + clause + ` ORDER BY o.timestamp DESC, u.username, o.id DESC`
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Observation{}
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, classify(rows.Err())
}

func (s *PostgresStore) CountObservations(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n)
	return n, classify(err)
}

func (s *PostgresStore) CountImageObservations(ctx context.Context, imageID int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM observations WHERE image_id = $1`, imageID).Scan(&n)
	return n, classify(err)
}

func (s *PostgresStore) ObservationTotalsByUser(ctx context.Context) ([]models.UserTotal, error) {
	query := `SELECT u.username, COUNT(o.id)
		FROM users u
		LEFT JOIN observations o ON o.user_id = u.id
		GROUP BY u.id, u.username
		ORDER BY COUNT(o.id) DESC, u.username`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	totals := []models.UserTotal{}
	for rows.Next() {
		var t models.UserTotal
		if err := rows.Scan(&t.Username, &t.Count); err != nil {
			return nil, classify(err)
		}
		totals = append(totals, t)
	}
	return totals, classify(rows.Err())
}

func (s *PostgresStore) SpeciesCountsForUser(ctx context.Context, userID int) (map[int]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT species_id, COUNT(*) FROM observations WHERE user_id = $1 GROUP BY species_id`, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var speciesID, n int
		if err := rows.Scan(&speciesID, &n); err != nil {
			return nil, classify(err)
		}
		counts[speciesID] = n
	}
	return counts, classify(rows.Err())
}

const talkSelect = `SELECT t.id, t.image_id, t.user_id, u.username, t.notes, t.timestamp
	FROM talk t
	JOIN users u ON u.id = t.user_id`

func scanTalk(row pgx.Row) (models.Talk, error) {
	var t models.Talk
	err := row.Scan(&t.ID, &t.ImageID, &t.UserID, &t.Username, &t.Notes, &t.Timestamp)
	return t, classify(err)
}

func (s *PostgresStore) InsertTalk(ctx context.Context, t *models.Talk) error {
	query := `INSERT INTO talk (image_id, user_id, notes, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`
	return classify(s.pool.QueryRow(ctx, query, t.ImageID, t.UserID, t.Notes, t.Timestamp).Scan(&t.ID))
}

func (s *PostgresStore) DeleteTalk(ctx context.Context, id int, authorize func(models.Talk) error) (models.Talk, error) {
	var talk models.Talk
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		talk, err = scanTalk(tx.QueryRow(ctx, talkSelect+` WHERE t.id = $1 FOR UPDATE OF t`, id))
		if err != nil {
			return err
		}
		if err := authorize(talk); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM talk WHERE id = $1`, id)
		return classify(err)
	})
	if err != nil {
		return models.Talk{}, err
	}
	return talk, nil
}

func (s *PostgresStore) ListTalk(ctx context.Context, f models.TalkFilter) ([]models.Talk, error) {
	clause, args := where(cond{"t.user_id", f.UserID}, cond{"t.image_id", f.ImageID})
	rows, err := s.pool.Query(ctx, talkSelect+clause+` ORDER BY t.timestamp DESC, u.username, t.id DESC`, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := []models.Talk{}
	for rows.Next() {
		t, err := scanTalk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}
