// Package sqlite provides the single-node SQLite entity store used for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/persistence"
	"example.com/reactivities/internal/persistence/sqlite/migrations"
)

// Store persists activities, attendees, users and values in SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single connection: transactions are serialised.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser inserts a user. Registration lives elsewhere; this backs fixtures and dev tooling.
func (s *Store) CreateUser(ctx context.Context, user domain.AppUser) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, display_name, bio, image) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.DisplayName, user.Bio, user.Image,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateActivity inserts the activity and its host attendee row in one transaction.
func (s *Store) CreateActivity(ctx context.Context, activity domain.Activity, host domain.Attendee) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create activity: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO activities (id, title, description, category, date, city, venue, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		activity.ID, activity.Title, activity.Description, string(activity.Category), toMillis(activity.Date),
		activity.City, activity.Venue, activity.Version, toMillis(activity.CreatedAt), toMillis(activity.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateActivity
		}
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_activities (activity_id, user_id, is_host, date_joined) VALUES (?, ?, ?, ?)`,
		activity.ID, host.UserID, true, toMillis(host.DateJoined),
	); err != nil {
		return 0, fmt.Errorf("insert host: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create activity: %w", err)
	}
	return rows, nil
}

// GetActivity loads one activity with its attendees, or nil when it does not exist.
func (s *Store) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+persistence.ActivityColumns+` FROM activities a WHERE a.id = ?`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}

	attendees, err := s.attendees(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	activity.Attendees = attendees[id]
	return &activity, nil
}

// UpdateActivity overwrites the mutable columns, optionally guarded by expectedVersion.
func (s *Store) UpdateActivity(ctx context.Context, activity domain.Activity, expectedVersion int) (int64, error) {
	query := `UPDATE activities
	             SET title = ?, description = ?, category = ?, date = ?, city = ?, venue = ?, version = ?, updated_at = ?
	           WHERE id = ?`
	args := []any{
		activity.Title, activity.Description, string(activity.Category), toMillis(activity.Date),
		activity.City, activity.Venue, activity.Version, toMillis(activity.UpdatedAt), activity.ID,
	}
	if expectedVersion > 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update activity: %w", err)
	}
	return res.RowsAffected()
}

// DeleteActivity removes the activity; attendee rows cascade.
func (s *Store) DeleteActivity(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete activity: %w", err)
	}
	return res.RowsAffected()
}

// ListActivities returns one page ordered by date plus the total filtered count.
func (s *Store) ListActivities(ctx context.Context, userID string, query domain.ListQuery) ([]domain.Activity, int, error) {
	stmts, err := persistence.BuildList(persistence.SQLite, userID, query)
	if err != nil {
		return nil, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin list: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, stmts.CountSQL, stmts.CountArgs...).Scan(&count); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}

	rows, err := tx.QueryContext(ctx, stmts.PageSQL, stmts.PageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	var (
		results []domain.Activity
		ids     []string
	)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		results = append(results, activity)
		ids = append(ids, activity.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, err
	}
	rows.Close()

	attendees, err := queryAttendees(ctx, tx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range results {
		results[i].Attendees = attendees[results[i].ID]
	}
	return results, count, tx.Commit()
}

// AddAttendee inserts the attendance row; an existing row is left alone and reports zero rows.
func (s *Store) AddAttendee(ctx context.Context, activityID string, attendee domain.Attendee) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_activities (activity_id, user_id, is_host, date_joined) VALUES (?, ?, ?, ?)
		 ON CONFLICT (activity_id, user_id) DO NOTHING`,
		activityID, attendee.UserID, attendee.IsHost, toMillis(attendee.DateJoined),
	)
	if err != nil {
		return 0, fmt.Errorf("add attendee: %w", err)
	}
	return res.RowsAffected()
}

// RemoveAttendee deletes a non-host attendance row.
func (s *Store) RemoveAttendee(ctx context.Context, activityID, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_activities WHERE activity_id = ? AND user_id = ? AND is_host = 0`,
		activityID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("remove attendee: %w", err)
	}
	return res.RowsAffected()
}

// GetUserByUsername returns the user, or nil when unknown.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.AppUser, error) {
	var user domain.AppUser
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, bio, image FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.Bio, &user.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UpdateUser writes the profile fields of user.
func (s *Store) UpdateUser(ctx context.Context, user domain.AppUser) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, bio = ?, image = ? WHERE id = ?`,
		user.DisplayName, user.Bio, user.Image, user.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("update user: %w", err)
	}
	return res.RowsAffected()
}

// ListValues returns the demo values ordered by id.
func (s *Store) ListValues(ctx context.Context) ([]domain.Value, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM demo_values ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}
	defer rows.Close()

	var values []domain.Value
	for rows.Next() {
		var v domain.Value
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetValue returns one demo value, or nil when unknown.
func (s *Store) GetValue(ctx context.Context, id int) (*domain.Value, error) {
	var v domain.Value
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM demo_values WHERE id = ?`, id).Scan(&v.ID, &v.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get value: %w", err)
	}
	return &v, nil
}

func (s *Store) attendees(ctx context.Context, ids []string) (map[string][]domain.Attendee, error) {
	return queryAttendees(ctx, s.db, ids)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryAttendees(ctx context.Context, q querier, ids []string) (map[string][]domain.Attendee, error) {
	out := make(map[string][]domain.Attendee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ua.activity_id, u.id, u.username, u.display_name, u.image, ua.is_host, ua.date_joined
	            FROM user_activities ua
	            JOIN users u ON u.id = ua.user_id
	           WHERE ua.activity_id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			activityID string
			a          domain.Attendee
			joined     int64
		)
		if err := rows.Scan(&activityID, &a.UserID, &a.Username, &a.DisplayName, &a.Image, &a.IsHost, &joined); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		a.DateJoined = fromMillis(joined)
		out[activityID] = append(out[activityID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for id := range out {
		persistence.SortAttendees(out[id])
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a                         domain.Activity
		category                  string
		date, createdAt, updateAt int64
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &category, &date, &a.City, &a.Venue, &a.Version, &createdAt, &updateAt); err != nil {
		return domain.Activity{}, err
	}
	a.Category = domain.Category(category)
	a.Date = fromMillis(date)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updateAt)
	return a, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ domain.Repository = (*Store)(nil)
