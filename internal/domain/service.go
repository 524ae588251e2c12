// Package domain defines the command handlers for activities, attendance and profiles.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/reactivities/internal/errorx"
	"example.com/reactivities/internal/observability"
)

const (
	// DefaultPageSize is the list page size used when none is configured.
	DefaultPageSize = 3
	// MaxPageSize bounds the limit a single list request may ask for.
	MaxPageSize = 100
)

// ErrDuplicateActivity is returned by repositories when an activity ID is already taken.
var ErrDuplicateActivity = errors.New("activity already exists")

// ActivityRepository captures persistence of activities and their attendee rows.
// Lookups return (nil, nil) when the row does not exist. Writes report affected rows.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity, host Attendee) (int64, error)
	GetActivity(ctx context.Context, id string) (*Activity, error)
	// UpdateActivity writes every mutable column. A positive expectedVersion
	// restricts the write to rows still at that version.
	UpdateActivity(ctx context.Context, activity Activity, expectedVersion int) (int64, error)
	DeleteActivity(ctx context.Context, id string) (int64, error)
	// ListActivities returns one page plus the size of the whole filtered set.
	ListActivities(ctx context.Context, userID string, query ListQuery) ([]Activity, int, error)
	// AddAttendee inserts the row unless it already exists, in which case it reports zero rows.
	AddAttendee(ctx context.Context, activityID string, attendee Attendee) (int64, error)
	RemoveAttendee(ctx context.Context, activityID, userID string) (int64, error)
}

// UserRepository reads and edits registered users.
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*AppUser, error)
	UpdateUser(ctx context.Context, user AppUser) (int64, error)
}

// ValueRepository reads the demo values table.
type ValueRepository interface {
	ListValues(ctx context.Context) ([]Value, error)
	GetValue(ctx context.Context, id int) (*Value, error)
}

// Repository is the full entity store.
type Repository interface {
	ActivityRepository
	UserRepository
	ValueRepository
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize overrides the default list page size.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 && size <= MaxPageSize {
			s.pageSize = size
		}
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo     Repository
	pageSize int
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		pageSize: DefaultPageSize,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageSize reports the configured list page size.
func (s *Service) PageSize() int {
	return s.pageSize
}

// CreateActivity inserts the activity and makes the acting user its host in one transaction.
func (s *Service) CreateActivity(ctx context.Context, actor string, cmd CreateActivityCommand) (err error) {
	defer observability.ObserveCommand("create_activity", time.Now(), &err)

	if errs := cmd.Validate(); errs != nil {
		return errorx.Validation(errs)
	}
	user, err := s.resolveUser(ctx, actor)
	if err != nil {
		return err
	}

	now := s.now()
	activity := Activity{
		ID:          cmd.ID,
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    cmd.Category,
		Date:        cmd.Date.UTC(),
		City:        cmd.City,
		Venue:       cmd.Venue,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	host := Attendee{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Image:       user.Image,
		IsHost:      true,
		DateJoined:  now,
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.repo.CreateActivity(ctx, activity, host)
	if errors.Is(err, ErrDuplicateActivity) {
		return errorx.Conflict("activity " + cmd.ID + " already exists")
	}
	return saved(rows, err, "create activity")
}

// EditActivity merges the supplied fields onto the stored activity.
func (s *Service) EditActivity(ctx context.Context, cmd EditActivityCommand) (err error) {
	defer observability.ObserveCommand("edit_activity", time.Now(), &err)

	if errs := cmd.Validate(); errs != nil {
		return errorx.Validation(errs)
	}
	existing, err := s.loadActivity(ctx, cmd.ID)
	if err != nil {
		return err
	}

	expected := 0
	if cmd.ExpectedVersion != nil {
		expected = *cmd.ExpectedVersion
		if existing.Version != expected {
			return errorx.Conflict("activity was modified by another request")
		}
	}

	updated := *existing
	cmd.apply(&updated)
	updated.Version = existing.Version + 1
	updated.UpdatedAt = s.now()

	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.repo.UpdateActivity(ctx, updated, expected)
	if err == nil && rows == 0 && expected > 0 {
		return errorx.Conflict("activity was modified by another request")
	}
	return saved(rows, err, "update activity")
}

// DeleteActivity removes the activity and its attendee rows.
func (s *Service) DeleteActivity(ctx context.Context, id string) (err error) {
	defer observability.ObserveCommand("delete_activity", time.Now(), &err)

	if _, err := s.loadActivity(ctx, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.repo.DeleteActivity(ctx, id)
	return saved(rows, err, "delete activity")
}

// GetActivity returns the activity with its attendees.
func (s *Service) GetActivity(ctx context.Context, id string) (*Activity, error) {
	return s.loadActivity(ctx, id)
}

// ListActivities returns one page of activities visible to actor.
func (s *Service) ListActivities(ctx context.Context, actor string, query ListQuery) (_ Envelope, err error) {
	defer observability.ObserveCommand("list_activities", time.Now(), &err)

	if query.Limit <= 0 {
		query.Limit = s.pageSize
	}
	if query.Limit > MaxPageSize {
		return Envelope{}, errorx.Validation(map[string]string{"limit": fmt.Sprintf("limit must not exceed %d", MaxPageSize)})
	}
	if query.Offset < 0 {
		return Envelope{}, errorx.Validation(map[string]string{"offset": "offset must not be negative"})
	}
	if err := query.Predicate.validate(); err != nil {
		return Envelope{}, err
	}

	var userID string
	if query.Predicate.Kind == PredicateIsGoing || query.Predicate.Kind == PredicateIsHost {
		user, err := s.resolveUser(ctx, actor)
		if err != nil {
			return Envelope{}, err
		}
		userID = user.ID
	}

	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	activities, count, err := s.repo.ListActivities(ctx, userID, query)
	if err != nil {
		return Envelope{}, errorx.Internal(errorx.Wrap(err, "list activities"))
	}
	return Envelope{Activities: activities, ActivityCount: count}, nil
}

// Attend adds actor to the activity's attendees. Attending twice is a no-op.
func (s *Service) Attend(ctx context.Context, actor, activityID string) (err error) {
	defer observability.ObserveCommand("attend", time.Now(), &err)

	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, actor)
	if err != nil {
		return err
	}
	if _, ok := activity.Attendee(user.ID); ok {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = s.repo.AddAttendee(ctx, activityID, Attendee{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Image:       user.Image,
		DateJoined:  s.now(),
	})
	if err != nil {
		return errorx.Internal(errorx.Wrap(err, "add attendee"))
	}
	// Zero rows means a concurrent attend won the insert; the outcome is the same.
	return nil
}

// Unattend removes actor from the activity. The host cannot leave their own activity.
func (s *Service) Unattend(ctx context.Context, actor, activityID string) (err error) {
	defer observability.ObserveCommand("unattend", time.Now(), &err)

	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		return err
	}
	user, err := s.resolveUser(ctx, actor)
	if err != nil {
		return err
	}
	attendee, ok := activity.Attendee(user.ID)
	if !ok {
		return nil
	}
	if attendee.IsHost {
		return errorx.BadRequest("host cannot unattend their own activity")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.repo.RemoveAttendee(ctx, activityID, user.ID); err != nil {
		return errorx.Internal(errorx.Wrap(err, "remove attendee"))
	}
	return nil
}

// GetProfile returns the public profile for username.
func (s *Service) GetProfile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.lookupUser(ctx, username, "profile")
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// UpdateProfile edits the acting user's display name and bio.
func (s *Service) UpdateProfile(ctx context.Context, actor string, cmd UpdateProfileCommand) (err error) {
	defer observability.ObserveCommand("update_profile", time.Now(), &err)

	if errs := cmd.Validate(); errs != nil {
		return errorx.Validation(errs)
	}
	user, err := s.resolveUser(ctx, actor)
	if err != nil {
		return err
	}
	user.DisplayName = cmd.DisplayName
	user.Bio = cmd.Bio

	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := s.repo.UpdateUser(ctx, *user)
	return saved(rows, err, "update profile")
}

// ListValues returns every demo value ordered by id.
func (s *Service) ListValues(ctx context.Context) ([]Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := s.repo.ListValues(ctx)
	if err != nil {
		return nil, errorx.Internal(errorx.Wrap(err, "list values"))
	}
	return values, nil
}

// GetValue returns one demo value.
func (s *Service) GetValue(ctx context.Context, id int) (*Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := s.repo.GetValue(ctx, id)
	if err != nil {
		return nil, errorx.Internal(errorx.Wrap(err, "get value"))
	}
	if value == nil {
		return nil, errorx.NotFound("value")
	}
	return value, nil
}

func (s *Service) loadActivity(ctx context.Context, id string) (*Activity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	activity, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return nil, errorx.Internal(errorx.Wrap(err, "load activity"))
	}
	if activity == nil {
		return nil, errorx.NotFound("activity")
	}
	return activity, nil
}

func (s *Service) resolveUser(ctx context.Context, username string) (*AppUser, error) {
	if username == "" {
		return nil, errorx.Unauthorized("no acting user")
	}
	return s.lookupUser(ctx, username, "user")
}

func (s *Service) lookupUser(ctx context.Context, username, field string) (*AppUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errorx.Internal(errorx.Wrap(err, "load user"))
	}
	if user == nil {
		return nil, errorx.NotFound(field)
	}
	return user, nil
}

// saved maps a write result onto the error taxonomy.
func saved(rows int64, err error, op string) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return errorx.Internal(errorx.Wrap(err, op))
	}
	if rows == 0 {
		return errorx.Internal(errorx.Wrap(errorx.ErrProblemSaving, op))
	}
	return nil
}
