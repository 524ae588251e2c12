package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/events"
	"example.com/reactivities/internal/observability"
	"example.com/reactivities/internal/persistence"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for activities and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts a user row. Registration lives elsewhere; this backs fixtures and dev tooling.
func (r *Repository) CreateUser(ctx context.Context, user domain.AppUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, display_name, bio, image) VALUES ($1,$2,$3,$4,$5)`,
		user.ID, user.Username, user.DisplayName, user.Bio, user.Image,
	)
	return err
}

// CreateActivity persists the activity, its host row and the matching outbox events in one transaction.
func (r *Repository) CreateActivity(ctx context.Context, activity domain.Activity, host domain.Attendee) (rows int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO activities (id, title, description, category, date, city, venue, version, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		activity.ID,
		activity.Title,
		activity.Description,
		string(activity.Category),
		activity.Date,
		activity.City,
		activity.Venue,
		activity.Version,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = domain.ErrDuplicateActivity
		}
		return 0, err
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO user_activities (activity_id, user_id, is_host, date_joined) VALUES ($1,$2,TRUE,$3)`,
		activity.ID, host.UserID, host.DateJoined,
	); err != nil {
		return 0, err
	}

	if err = insertOutbox(ctx, tx, activity.ID, events.TypeActivityCreated, activity.ID+":"+events.TypeActivityCreated, events.ActivityCreated{
		ActivityID:   activity.ID,
		Title:        activity.Title,
		Category:     string(activity.Category),
		Date:         activity.Date,
		City:         activity.City,
		Venue:        activity.Venue,
		HostUserID:   host.UserID,
		HostUsername: host.Username,
		Version:      activity.Version,
		OccurredAt:   activity.CreatedAt,
	}); err != nil {
		return 0, err
	}

	if err = insertOutbox(ctx, tx, activity.ID, events.TypeAttendeeJoined, "", events.AttendeeJoined{
		ActivityID: activity.ID,
		UserID:     host.UserID,
		Username:   host.Username,
		IsHost:     true,
		OccurredAt: host.DateJoined,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return tag.RowsAffected(), nil
}

// GetActivity retrieves an activity with its attendees, or nil when it does not exist.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+persistence.ActivityColumns+` FROM activities a WHERE a.id = $1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	attendees, err := queryAttendees(ctx, r.pool, []string{id})
	if err != nil {
		return nil, err
	}
	activity.Attendees = attendees[id]
	return &activity, nil
}

// UpdateActivity writes the merged activity and records activity.updated.
func (r *Repository) UpdateActivity(ctx context.Context, activity domain.Activity, expectedVersion int) (rows int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	query := `UPDATE activities
                 SET title=$1, description=$2, category=$3, date=$4, city=$5, venue=$6, version=$7, updated_at=$8
               WHERE id=$9`
	args := []any{
		activity.Title, activity.Description, string(activity.Category), activity.Date,
		activity.City, activity.Venue, activity.Version, activity.UpdatedAt, activity.ID,
	}
	if expectedVersion > 0 {
		query += ` AND version=$10`
		args = append(args, expectedVersion)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return 0, nil
	}

	dedupe := fmt.Sprintf("%s:%s:%d", activity.ID, events.TypeActivityUpdated, activity.Version)
	if err = insertOutbox(ctx, tx, activity.ID, events.TypeActivityUpdated, dedupe, events.ActivityUpdated{
		ActivityID:  activity.ID,
		Title:       activity.Title,
		Description: activity.Description,
		Category:    string(activity.Category),
		Date:        activity.Date,
		City:        activity.City,
		Venue:       activity.Venue,
		Version:     activity.Version,
		OccurredAt:  activity.UpdatedAt,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return tag.RowsAffected(), nil
}

// DeleteActivity removes the activity (attendee rows cascade) and records activity.deleted.
func (r *Repository) DeleteActivity(ctx context.Context, id string) (rows int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return 0, nil
	}

	now := time.Now().UTC()
	if err = insertOutbox(ctx, tx, id, events.TypeActivityDeleted, id+":"+events.TypeActivityDeleted, events.ActivityDeleted{
		ActivityID: id,
		OccurredAt: now,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	observability.RecordActivityPersisted(now)
	return tag.RowsAffected(), nil
}

// ListActivities returns one page ordered by date and the size of the filtered set,
// both read from the same snapshot.
func (r *Repository) ListActivities(ctx context.Context, userID string, query domain.ListQuery) ([]domain.Activity, int, error) {
	stmts, err := persistence.BuildList(persistence.Postgres, userID, query)
	if err != nil {
		return nil, 0, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, stmts.CountSQL, stmts.CountArgs...).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := tx.Query(ctx, stmts.PageSQL, stmts.PageArgs...)
	if err != nil {
		return nil, 0, err
	}
	var (
		results []domain.Activity
		ids     []string
	)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		results = append(results, activity)
		ids = append(ids, activity.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	attendees, err := queryAttendees(ctx, tx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range results {
		results[i].Attendees = attendees[results[i].ID]
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return results, count, nil
}

// AddAttendee inserts the attendance row unless present, recording attendee.joined when it does.
func (r *Repository) AddAttendee(ctx context.Context, activityID string, attendee domain.Attendee) (rows int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO user_activities (activity_id, user_id, is_host, date_joined) VALUES ($1,$2,$3,$4)
         ON CONFLICT (activity_id, user_id) DO NOTHING`,
		activityID, attendee.UserID, attendee.IsHost, attendee.DateJoined,
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return 0, nil
	}

	if err = insertOutbox(ctx, tx, activityID, events.TypeAttendeeJoined, "", events.AttendeeJoined{
		ActivityID: activityID,
		UserID:     attendee.UserID,
		Username:   attendee.Username,
		IsHost:     attendee.IsHost,
		OccurredAt: attendee.DateJoined,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RemoveAttendee deletes a non-host attendance row and records attendee.left.
func (r *Repository) RemoveAttendee(ctx context.Context, activityID, userID string) (rows int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`DELETE FROM user_activities WHERE activity_id=$1 AND user_id=$2 AND NOT is_host`,
		activityID, userID,
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		tx.Rollback(ctx)
		return 0, nil
	}

	if err = insertOutbox(ctx, tx, activityID, events.TypeAttendeeLeft, "", events.AttendeeLeft{
		ActivityID: activityID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetUserByUsername returns the user, or nil when unknown.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.AppUser, error) {
	var user domain.AppUser
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, display_name, bio, image FROM users WHERE username=$1`, username,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.Bio, &user.Image)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser writes the profile columns.
func (r *Repository) UpdateUser(ctx context.Context, user domain.AppUser) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET display_name=$1, bio=$2, image=$3 WHERE id=$4`,
		user.DisplayName, user.Bio, user.Image, user.ID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListValues returns the demo values ordered by id.
func (r *Repository) ListValues(ctx context.Context) ([]domain.Value, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM demo_values ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Value, error) {
		var v domain.Value
		err := row.Scan(&v.ID, &v.Name)
		return v, err
	})
}

// GetValue returns one demo value, or nil when unknown.
func (r *Repository) GetValue(ctx context.Context, id int) (*domain.Value, error) {
	var v domain.Value
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM demo_values WHERE id=$1`, id).Scan(&v.ID, &v.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryAttendees(ctx context.Context, q querier, ids []string) (map[string][]domain.Attendee, error) {
	out := make(map[string][]domain.Attendee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.Query(ctx,
		`SELECT ua.activity_id, u.id, u.username, u.display_name, u.image, ua.is_host, ua.date_joined
           FROM user_activities ua
           JOIN users u ON u.id = ua.user_id
          WHERE ua.activity_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var activityID string
		var a domain.Attendee
		if err := rows.Scan(&activityID, &a.UserID, &a.Username, &a.DisplayName, &a.Image, &a.IsHost, &a.DateJoined); err != nil {
			return nil, err
		}
		a.DateJoined = a.DateJoined.UTC()
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

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var a domain.Activity
	var category string
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &category, &a.Date, &a.City, &a.Venue, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Category = domain.Category(category)
	a.Date = a.Date.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activityID, eventType, dedupeKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"activity",
		activityID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		activityID,
		body,
		nullIfEmpty(dedupeKey),
	)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event. Every event is keyed by activity ID
// so a consumer sees one activity's history in order.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

// Topics written by the outbox.
const (
	ActivityTopic   = "activity_events"
	AttendanceTopic = "attendance_events"
)

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityCreated: {Topic: ActivityTopic, SchemaSubject: "activity_created-value"},
	events.TypeActivityUpdated: {Topic: ActivityTopic, SchemaSubject: "activity_updated-value"},
	events.TypeActivityDeleted: {Topic: ActivityTopic, SchemaSubject: "activity_deleted-value"},
	events.TypeAttendeeJoined:  {Topic: AttendanceTopic, SchemaSubject: "attendee_joined-value"},
	events.TypeAttendeeLeft:    {Topic: AttendanceTopic, SchemaSubject: "attendee_left-value"},
}

var _ domain.Repository = (*Repository)(nil)
