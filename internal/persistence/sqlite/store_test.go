package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/reactivities/internal/domain"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "reactivities.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seededUser(t *testing.T, store *Store, username string) domain.AppUser {
	t.Helper()
	user, err := store.GetUserByUsername(context.Background(), username)
	require.NoError(t, err)
	require.NotNil(t, user)
	return *user
}

func newActivity(date time.Time) domain.Activity {
	now := time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
	return domain.Activity{
		ID:          uuid.NewString(),
		Title:       "Run",
		Description: "Morning loop",
		Category:    domain.CategoryTravel,
		Date:        date,
		City:        "London",
		Venue:       "Hyde Park",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), " ")
	require.Error(t, err)
}

func TestOpenIsIdempotentAndSeedsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	values, err := second.ListValues(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Value{{ID: 1, Name: "Value101"}, {ID: 2, Name: "Value102"}, {ID: 3, Name: "Value103"}}, values)
}

func TestCreateAndGetActivityWithHost(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	bob := seededUser(t, store, "bob")

	activity := newActivity(time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC))
	rows, err := store.CreateActivity(ctx, activity, domain.Attendee{UserID: bob.ID, IsHost: true, DateJoined: activity.CreatedAt})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	stored, err := store.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, activity.Title, stored.Title)
	require.True(t, activity.Date.Equal(stored.Date))
	require.Len(t, stored.Attendees, 1)
	require.Equal(t, "bob", stored.Attendees[0].Username)
	require.True(t, stored.Attendees[0].IsHost)
}

func TestCreateActivityRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	bob := seededUser(t, store, "bob")

	activity := newActivity(time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC))
	host := domain.Attendee{UserID: bob.ID, IsHost: true, DateJoined: activity.CreatedAt}
	_, err := store.CreateActivity(ctx, activity, host)
	require.NoError(t, err)

	_, err = store.CreateActivity(ctx, activity, host)
	require.ErrorIs(t, err, domain.ErrDuplicateActivity)
}

func TestGetActivityMissingReturnsNil(t *testing.T) {
	stored, err := openTempStore(t).GetActivity(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestUpdateActivityHonoursExpectedVersion(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	bob := seededUser(t, store, "bob")

	activity := newActivity(time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC))
	_, err := store.CreateActivity(ctx, activity, domain.Attendee{UserID: bob.ID, IsHost: true, DateJoined: activity.CreatedAt})
	require.NoError(t, err)

	activity.Title = "Swim"
	activity.Version = 2
	rows, err := store.UpdateActivity(ctx, activity, 5)
	require.NoError(t, err)
	require.Zero(t, rows)

	rows, err = store.UpdateActivity(ctx, activity, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	stored, err := store.GetActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, "Swim", stored.Title)
	require.Equal(t, 2, stored.Version)
}

func TestAttendeeRowsAreUniqueAndCascadeOnDelete(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	bob := seededUser(t, store, "bob")
	jane := seededUser(t, store, "jane")

	activity := newActivity(time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC))
	_, err := store.CreateActivity(ctx, activity, domain.Attendee{UserID: bob.ID, IsHost: true, DateJoined: activity.CreatedAt})
	require.NoError(t, err)

	guest := domain.Attendee{UserID: jane.ID, DateJoined: activity.CreatedAt.Add(time.Minute)}
	rows, err := store.AddAttendee(ctx, activity.ID, guest)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	rows, err = store.AddAttendee(ctx, activity.ID, guest)
	require.NoError(t, err)
	require.Zero(t, rows)

	rows, err = store.RemoveAttendee(ctx, activity.ID, bob.ID)
	require.NoError(t, err)
	require.Zero(t, rows, "host row must survive")

	rows, err = store.DeleteActivity(ctx, activity.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	var remaining int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_activities`).Scan(&remaining))
	require.Zero(t, remaining)
}

func TestUpdateUserAndValues(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)
	tom := seededUser(t, store, "tom")

	tom.DisplayName = "Thomas"
	tom.Bio = "Likes films"
	rows, err := store.UpdateUser(ctx, tom)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)
	require.Equal(t, "Thomas", seededUser(t, store, "tom").DisplayName)

	value, err := store.GetValue(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "Value102", value.Name)

	missing, err := store.GetValue(ctx, 99)
	require.NoError(t, err)
	require.Nil(t, missing)
}
