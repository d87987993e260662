package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/chronolap/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// SQLite works best with a single connection; this also serializes
	// all writes at the storage layer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS races (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT UNIQUE,
			total_laps INTEGER NOT NULL,
			tap_cooldown_seconds INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			started_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			race_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			sort_order INTEGER NOT NULL,
			FOREIGN KEY (race_id) REFERENCES races(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			race_id TEXT NOT NULL,
			bib INTEGER NOT NULL,
			name TEXT NOT NULL,
			category_id TEXT,
			team TEXT,
			birth_date INTEGER,
			UNIQUE (race_id, bib),
			FOREIGN KEY (race_id) REFERENCES races(id) ON DELETE CASCADE,
			FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participant_issue (
			participant_id TEXT PRIMARY KEY,
			FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS tap_events (
			id TEXT PRIMARY KEY,
			race_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			bib INTEGER NOT NULL,
			name TEXT NOT NULL,
			category_id TEXT,
			category_name TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT 'manual',
			FOREIGN KEY (race_id) REFERENCES races(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_race ON categories(race_id)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_race ON participants(race_id)`,
		`CREATE INDEX IF NOT EXISTS idx_taps_race ON tap_events(race_id)`,
		`CREATE INDEX IF NOT EXISTS idx_taps_race_bib ON tap_events(race_id, bib)`,
		`CREATE INDEX IF NOT EXISTS idx_taps_race_category ON tap_events(race_id, category_id)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// ==================== Race Methods ====================

// CreateRace inserts a new race
func (r *Repository) CreateRace(ctx context.Context, race models.Race) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO races (id, name, slug, total_laps, tap_cooldown_seconds, created_at, updated_at, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, race.ID, race.Name, race.Slug, race.TotalLaps, race.TapCooldownSeconds,
		race.CreatedAt, race.UpdatedAt, race.StartedAt)
	return err
}

// GetRace returns a race with its categories and participants.
// Bib-issuance flags are left for the caller to resolve.
func (r *Repository) GetRace(ctx context.Context, raceID string) (*models.Race, error) {
	var race models.Race
	var slug sql.NullString
	var startedAt sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, total_laps, tap_cooldown_seconds, created_at, updated_at, started_at
		FROM races WHERE id = ?
	`, raceID).Scan(&race.ID, &race.Name, &slug, &race.TotalLaps, &race.TapCooldownSeconds,
		&race.CreatedAt, &race.UpdatedAt, &startedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if slug.Valid {
		race.Slug = &slug.String
	}
	if startedAt.Valid {
		race.StartedAt = &startedAt.Int64
	}

	race.Categories, err = r.ListCategories(ctx, raceID)
	if err != nil {
		return nil, err
	}
	race.Participants, err = r.ListParticipants(ctx, raceID)
	if err != nil {
		return nil, err
	}

	return &race, nil
}

// RaceIDBySlug resolves a race id from its slug
func (r *Repository) RaceIDBySlug(ctx context.Context, slug string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM races WHERE slug = ?`, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

// ListRaceIDs returns all race ids, newest first
func (r *Repository) ListRaceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM races ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateRace writes race metadata
func (r *Repository) UpdateRace(ctx context.Context, race models.Race) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE races SET name = ?, slug = ?, total_laps = ?, tap_cooldown_seconds = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`, race.Name, race.Slug, race.TotalLaps, race.TapCooldownSeconds, race.StartedAt, race.UpdatedAt, race.ID)
	return err
}

// TouchRace bumps a race's updated_at timestamp
func (r *Repository) TouchRace(ctx context.Context, raceID string, updatedAt int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE races SET updated_at = ? WHERE id = ?`, updatedAt, raceID)
	return err
}

// DeleteRace removes a race; categories, participants and tap events
// cascade via foreign keys
func (r *Repository) DeleteRace(ctx context.Context, raceID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM races WHERE id = ?`, raceID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugExists reports whether a slug is taken by a race other than ignoreRaceID
func (r *Repository) SlugExists(ctx context.Context, slug, ignoreRaceID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM races WHERE slug = ? AND id != ?
	`, slug, ignoreRaceID).Scan(&count)
	return count > 0, err
}

// ==================== Category Methods ====================

// ListCategories returns a race's categories ordered by display precedence
func (r *Repository) ListCategories(ctx context.Context, raceID string) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, sort_order
		FROM categories WHERE race_id = ?
		ORDER BY sort_order, name
	`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var cat models.Category
		var description sql.NullString
		if err := rows.Scan(&cat.ID, &cat.Name, &description, &cat.Order); err != nil {
			return nil, err
		}
		if description.Valid {
			cat.Description = description.String
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}

// GetCategory returns a category scoped to a race
func (r *Repository) GetCategory(ctx context.Context, raceID, categoryID string) (*models.Category, error) {
	var cat models.Category
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, sort_order
		FROM categories WHERE id = ? AND race_id = ?
	`, categoryID, raceID).Scan(&cat.ID, &cat.Name, &description, &cat.Order)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if description.Valid {
		cat.Description = description.String
	}
	return &cat, nil
}

// MaxCategoryOrder returns the highest sort order in a race, -1 when empty
func (r *Repository) MaxCategoryOrder(ctx context.Context, raceID string) (int, error) {
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(sort_order) FROM categories WHERE race_id = ?
	`, raceID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// CreateCategory inserts a new category
func (r *Repository) CreateCategory(ctx context.Context, raceID string, cat models.Category) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, race_id, name, description, sort_order)
		VALUES (?, ?, ?, ?, ?)
	`, cat.ID, raceID, cat.Name, nullString(cat.Description), cat.Order)
	return err
}

// UpdateCategory writes a category and cascades the (possibly renamed)
// category name onto the race's tap events in one transaction
func (r *Repository) UpdateCategory(ctx context.Context, raceID string, cat models.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE categories SET name = ?, description = ?, sort_order = ?
		WHERE id = ? AND race_id = ?
	`, cat.Name, nullString(cat.Description), cat.Order, cat.ID, raceID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tap_events SET category_name = ?
		WHERE race_id = ? AND category_id = ?
	`, cat.Name, raceID, cat.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteCategory removes a category, detaching its tap events and
// participants in the same transaction
func (r *Repository) DeleteCategory(ctx context.Context, raceID, categoryID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tap_events SET category_id = NULL, category_name = ?
		WHERE race_id = ? AND category_id = ?
	`, models.UncategorizedName, raceID, categoryID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE participants SET category_id = NULL
		WHERE race_id = ? AND category_id = ?
	`, raceID, categoryID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM categories WHERE id = ? AND race_id = ?
	`, categoryID, raceID); err != nil {
		return err
	}

	return tx.Commit()
}

// ==================== Participant Methods ====================

func scanParticipant(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Participant, error) {
	var p models.Participant
	var categoryID, team sql.NullString
	var birthDate sql.NullInt64

	err := scanner.Scan(&p.ID, &p.Bib, &p.Name, &categoryID, &team, &birthDate)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = categoryID.String
	}
	if team.Valid {
		p.Team = team.String
	}
	if birthDate.Valid {
		p.BirthDate = &birthDate.Int64
	}
	return &p, nil
}

// ListParticipants returns a race's roster ordered by bib
func (r *Repository) ListParticipants(ctx context.Context, raceID string) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, bib, name, category_id, team, birth_date
		FROM participants WHERE race_id = ?
		ORDER BY bib
	`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// GetParticipant returns a participant scoped to a race
func (r *Repository) GetParticipant(ctx context.Context, raceID, participantID string) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, bib, name, category_id, team, birth_date
		FROM participants WHERE id = ? AND race_id = ?
	`, participantID, raceID)

	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetParticipantByBib resolves a participant by bib number within a race
func (r *Repository) GetParticipantByBib(ctx context.Context, raceID string, bib int) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, bib, name, category_id, team, birth_date
		FROM participants WHERE race_id = ? AND bib = ?
	`, raceID, bib)

	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BibExists reports whether a bib is taken within a race by a participant
// other than ignoreID
func (r *Repository) BibExists(ctx context.Context, raceID string, bib int, ignoreID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM participants WHERE race_id = ? AND bib = ? AND id != ?
	`, raceID, bib, ignoreID).Scan(&count)
	return count > 0, err
}

// CreateParticipant inserts a new participant
func (r *Repository) CreateParticipant(ctx context.Context, raceID string, p models.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (id, race_id, bib, name, category_id, team, birth_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, raceID, p.Bib, p.Name, nullString(p.CategoryID), nullString(p.Team), p.BirthDate)
	return err
}

// UpdateParticipant writes a participant and cascades the denormalized
// bib/name/category fields onto its tap events in one transaction
func (r *Repository) UpdateParticipant(ctx context.Context, raceID string, p models.Participant, categoryName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE participants SET bib = ?, name = ?, category_id = ?, team = ?, birth_date = ?
		WHERE id = ? AND race_id = ?
	`, p.Bib, p.Name, nullString(p.CategoryID), nullString(p.Team), p.BirthDate, p.ID, raceID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tap_events SET bib = ?, name = ?, category_id = ?, category_name = ?
		WHERE race_id = ? AND participant_id = ?
	`, p.Bib, p.Name, nullString(p.CategoryID), categoryName, raceID, p.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteParticipants removes participants and their tap events in one
// transaction, returning how many roster entries were deleted
func (r *Repository) DeleteParticipants(ctx context.Context, raceID string, participantIDs []string) (int, error) {
	if len(participantIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.Repeat(",?", len(participantIDs))[1:]
	args := make([]interface{}, 0, len(participantIDs)+1)
	args = append(args, raceID)
	for _, id := range participantIDs {
		args = append(args, id)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tap_events WHERE race_id = ? AND participant_id IN (`+placeholders+`)`,
		args...); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM participants WHERE race_id = ? AND id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(affected), nil
}

// IssuedParticipantIDs returns which of the given participants have an
// issued bib
func (r *Repository) IssuedParticipantIDs(ctx context.Context, participantIDs []string) (map[string]bool, error) {
	issued := make(map[string]bool)
	if len(participantIDs) == 0 {
		return issued, nil
	}

	placeholders := strings.Repeat(",?", len(participantIDs))[1:]
	args := make([]interface{}, len(participantIDs))
	for i, id := range participantIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT participant_id FROM participant_issue WHERE participant_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		issued[id] = true
	}
	return issued, rows.Err()
}

// IsParticipantIssued reports whether a participant's bib has been issued
func (r *Repository) IsParticipantIssued(ctx context.Context, participantID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participant_issue WHERE participant_id = ?`,
		participantID).Scan(&count)
	return count > 0, err
}

// SetParticipantIssued toggles a participant's bib-issuance flag.
// Revoking also removes the participant's tap events: a rider without a
// bib cannot have laps on record.
func (r *Repository) SetParticipantIssued(ctx context.Context, raceID, participantID string, issued bool, now int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if issued {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO participant_issue (participant_id) VALUES (?)`,
			participantID); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tap_events WHERE race_id = ? AND participant_id = ?`,
			raceID, participantID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM participant_issue WHERE participant_id = ?`,
			participantID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE races SET updated_at = ? WHERE id = ?`, now, raceID); err != nil {
		return err
	}

	return tx.Commit()
}

// ImportEntry is one validated roster row for bulk import
type ImportEntry struct {
	Bib          int
	Name         string
	CategoryName string
	Team         string
	BirthDate    *int64
}

// ImportOutcome reports what a roster import changed
type ImportOutcome struct {
	Created           []models.Participant
	Updated           []models.Participant
	CategoriesCreated []models.Category
}

// ImportParticipants upserts roster entries by bib, creating missing
// categories on the fly. The whole import is one transaction.
func (r *Repository) ImportParticipants(ctx context.Context, raceID string, entries []ImportEntry, now int64) (*ImportOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	categoryByKey := make(map[string]models.Category)
	maxOrder := -1

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, description, sort_order
		FROM categories WHERE race_id = ? ORDER BY sort_order, name
	`, raceID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var cat models.Category
		var description sql.NullString
		if err := rows.Scan(&cat.ID, &cat.Name, &description, &cat.Order); err != nil {
			rows.Close()
			return nil, err
		}
		if description.Valid {
			cat.Description = description.String
		}
		categoryByKey[categoryKey(cat.Name)] = cat
		if cat.Order > maxOrder {
			maxOrder = cat.Order
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	outcome := &ImportOutcome{}

	for _, entry := range entries {
		if entry.CategoryName == "" {
			continue
		}
		key := categoryKey(entry.CategoryName)
		if _, ok := categoryByKey[key]; ok {
			continue
		}
		maxOrder++
		cat := models.Category{
			ID:    uuid.NewString(),
			Name:  entry.CategoryName,
			Order: maxOrder,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, race_id, name, description, sort_order)
			VALUES (?, ?, ?, NULL, ?)
		`, cat.ID, raceID, cat.Name, cat.Order); err != nil {
			return nil, err
		}
		categoryByKey[key] = cat
		outcome.CategoriesCreated = append(outcome.CategoriesCreated, cat)
	}

	existingByBib := make(map[int]models.Participant)
	rows, err = tx.QueryContext(ctx, `
		SELECT id, bib, name, category_id, team, birth_date
		FROM participants WHERE race_id = ?
	`, raceID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		existingByBib[p.Bib] = *p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		var categoryID, categoryName string
		if entry.CategoryName != "" {
			if cat, ok := categoryByKey[categoryKey(entry.CategoryName)]; ok {
				categoryID = cat.ID
				categoryName = cat.Name
			}
		}
		if categoryName == "" {
			categoryName = models.UncategorizedName
		}

		if existing, ok := existingByBib[entry.Bib]; ok {
			updated := existing
			updated.Name = entry.Name
			updated.CategoryID = categoryID
			updated.Team = entry.Team
			updated.BirthDate = entry.BirthDate

			if _, err := tx.ExecContext(ctx, `
				UPDATE participants SET name = ?, category_id = ?, team = ?, birth_date = ?
				WHERE id = ? AND race_id = ?
			`, updated.Name, nullString(updated.CategoryID), nullString(updated.Team),
				updated.BirthDate, updated.ID, raceID); err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tap_events SET bib = ?, name = ?, category_id = ?, category_name = ?
				WHERE race_id = ? AND participant_id = ?
			`, updated.Bib, updated.Name, nullString(updated.CategoryID), categoryName,
				raceID, updated.ID); err != nil {
				return nil, err
			}
			outcome.Updated = append(outcome.Updated, updated)
		} else {
			created := models.Participant{
				ID:         uuid.NewString(),
				Bib:        entry.Bib,
				Name:       entry.Name,
				CategoryID: categoryID,
				Team:       entry.Team,
				BirthDate:  entry.BirthDate,
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO participants (id, race_id, bib, name, category_id, team, birth_date)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, created.ID, raceID, created.Bib, created.Name, nullString(created.CategoryID),
				nullString(created.Team), created.BirthDate); err != nil {
				return nil, err
			}
			existingByBib[created.Bib] = created
			outcome.Created = append(outcome.Created, created)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE races SET updated_at = ? WHERE id = ?`, now, raceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return outcome, nil
}

// ==================== Tap Methods ====================

// InsertTap appends a tap event to the ledger
func (r *Repository) InsertTap(ctx context.Context, event models.TapEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tap_events (id, race_id, participant_id, bib, name, category_id, category_name, timestamp, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.RaceID, event.ParticipantID, event.Bib, event.Name,
		nullString(event.CategoryID), event.Category, event.Timestamp, string(event.Source))
	return err
}

func scanTap(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.TapEvent, error) {
	var event models.TapEvent
	var categoryID sql.NullString
	var source string

	err := scanner.Scan(&event.ID, &event.RaceID, &event.ParticipantID, &event.Bib,
		&event.Name, &categoryID, &event.Category, &event.Timestamp, &source)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		event.CategoryID = categoryID.String
	}
	event.Source = models.TapSource(source)
	return &event, nil
}

// GetTap returns a tap event by id
func (r *Repository) GetTap(ctx context.Context, eventID string) (*models.TapEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, race_id, participant_id, bib, name, category_id, category_name, timestamp, source
		FROM tap_events WHERE id = ?
	`, eventID)

	event, err := scanTap(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// DeleteTap removes a tap event, requiring it to belong to the given race
func (r *Repository) DeleteTap(ctx context.Context, raceID, eventID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tap_events WHERE id = ? AND race_id = ?`, eventID, raceID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTaps returns a race's tap history, newest first
func (r *Repository) ListTaps(ctx context.Context, raceID string) ([]models.TapEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, race_id, participant_id, bib, name, category_id, category_name, timestamp, source
		FROM tap_events WHERE race_id = ?
		ORDER BY timestamp DESC, id DESC
	`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TapEvent
	for rows.Next() {
		event, err := scanTap(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// LatestTapForBib returns the most recent tap timestamp for a bib within
// a race, or 0 when the bib has no taps
func (r *Repository) LatestTapForBib(ctx context.Context, raceID string, bib int) (int64, error) {
	var latest sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM tap_events WHERE race_id = ? AND bib = ?
	`, raceID, bib).Scan(&latest)
	if err != nil {
		return 0, err
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Int64, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
