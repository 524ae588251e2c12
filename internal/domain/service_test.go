package domain_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/errorx"
	"example.com/reactivities/internal/persistence/sqlite"
)

var fixedNow = time.Date(2026, time.February, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*domain.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "domain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return domain.NewService(store, domain.WithPageSize(3), domain.WithClock(func() time.Time { return fixedNow })), store
}

func createCommand(title string, date time.Time) domain.CreateActivityCommand {
	return domain.CreateActivityCommand{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "Weekly meetup",
		Category:    domain.CategoryCulture,
		Date:        date,
		City:        "X",
		Venue:       "Y",
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateThenListShowsCreatorAsSoleHost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC))
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	env, err := svc.ListActivities(ctx, "bob", domain.ListQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, env.ActivityCount)
	require.Len(t, env.Activities, 1)

	got := env.Activities[0]
	require.Equal(t, cmd.ID, got.ID)
	require.Equal(t, "Run", got.Title)
	require.Equal(t, 1, got.Version)
	require.Len(t, got.Attendees, 1)
	require.Equal(t, "bob", got.Attendees[0].Username)
	require.True(t, got.Attendees[0].IsHost)
	require.True(t, fixedNow.Equal(got.Attendees[0].DateJoined))
}

func TestCreateRejectsInvalidCommand(t *testing.T) {
	svc, _ := newService(t)

	cmd := createCommand(" ", time.Time{})
	cmd.ID = "not-a-uuid"
	cmd.Category = "sports"
	err := svc.CreateActivity(context.Background(), "bob", cmd)

	e, ok := errorx.As(err)
	require.True(t, ok)
	require.Equal(t, errorx.KindValidation, e.Kind)
	require.Equal(t, "title must not be empty", e.Fields["title"])
	require.Equal(t, "date must not be empty", e.Fields["date"])
	require.Contains(t, e.Fields, "id")
	require.Contains(t, e.Fields, "category")
}

func TestCreateRejectsDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC))
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	err := svc.CreateActivity(ctx, "jane", cmd)
	require.True(t, errorx.Is(err, errorx.KindConflict))

	activity, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Len(t, activity.Attendees, 1)
	require.Equal(t, "bob", activity.Attendees[0].Username)
}

func TestCreateRequiresKnownUser(t *testing.T) {
	svc, _ := newService(t)

	err := svc.CreateActivity(context.Background(), "ghost", createCommand("Run", fixedNow))
	e, ok := errorx.As(err)
	require.True(t, ok)
	require.Equal(t, errorx.KindNotFound, e.Kind)
	require.Equal(t, "user", e.Field)
}

func TestCreateAbortsWhenCancelled(t *testing.T) {
	svc, store := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := createCommand("Run", fixedNow)
	err := svc.CreateActivity(ctx, "bob", cmd)
	require.ErrorIs(t, err, context.Canceled)

	stored, err := store.GetActivity(context.Background(), cmd.ID)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestEditMergesOnlySuppliedFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC))
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	newDate := time.Date(2026, time.April, 4, 8, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EditActivity(ctx, domain.EditActivityCommand{
		ID:    cmd.ID,
		Title: ptr("Long run"),
		Date:  &newDate,
	}))

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Equal(t, "Long run", got.Title)
	require.True(t, newDate.Equal(got.Date))
	require.Equal(t, cmd.Description, got.Description)
	require.Equal(t, cmd.Category, got.Category)
	require.Equal(t, cmd.City, got.City)
	require.Equal(t, cmd.Venue, got.Venue)
	require.Equal(t, 2, got.Version)
}

func TestEditUnknownActivityIsNotFound(t *testing.T) {
	svc, _ := newService(t)

	err := svc.EditActivity(context.Background(), domain.EditActivityCommand{ID: uuid.NewString(), Title: ptr("x"), Date: ptr(fixedNow)})
	e, ok := errorx.As(err)
	require.True(t, ok)
	require.Equal(t, errorx.KindNotFound, e.Kind)
	require.Equal(t, "activity", e.Field)
}

func TestEditRejectsSuppliedButEmptyDate(t *testing.T) {
	svc, _ := newService(t)

	var zero time.Time
	err := svc.EditActivity(context.Background(), domain.EditActivityCommand{ID: uuid.NewString(), Date: &zero})
	e, ok := errorx.As(err)
	require.True(t, ok)
	require.Equal(t, errorx.KindValidation, e.Kind)
	require.Contains(t, e.Fields, "date")
}

func TestEditRequiresDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	err := svc.EditActivity(ctx, domain.EditActivityCommand{ID: cmd.ID, Title: ptr("Walk")})
	e, ok := errorx.As(err)
	require.True(t, ok)
	require.Equal(t, errorx.KindValidation, e.Kind)
	require.Equal(t, "date must not be empty", e.Fields["date"])

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Equal(t, "Run", got.Title)
	require.Equal(t, 1, got.Version)
}

func TestEditWithStaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))
	require.NoError(t, svc.EditActivity(ctx, domain.EditActivityCommand{ID: cmd.ID, Venue: ptr("Park"), Date: ptr(fixedNow), ExpectedVersion: ptr(1)}))

	err := svc.EditActivity(ctx, domain.EditActivityCommand{ID: cmd.ID, Venue: ptr("Gym"), Date: ptr(fixedNow), ExpectedVersion: ptr(1)})
	require.True(t, errorx.Is(err, errorx.KindConflict))

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Equal(t, "Park", got.Venue)
}

func TestDeleteRemovesActivity(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))
	require.NoError(t, svc.DeleteActivity(ctx, cmd.ID))

	_, err := svc.GetActivity(ctx, cmd.ID)
	require.True(t, errorx.Is(err, errorx.KindNotFound))
	require.True(t, errorx.Is(svc.DeleteActivity(ctx, cmd.ID), errorx.KindNotFound))
}

func TestAttendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	require.NoError(t, svc.Attend(ctx, "jane", cmd.ID))
	require.NoError(t, svc.Attend(ctx, "jane", cmd.ID))

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendees, 2)
	require.Equal(t, "bob", got.Attendees[0].Username)
	require.Equal(t, "jane", got.Attendees[1].Username)
	require.False(t, got.Attendees[1].IsHost)
}

func TestAttendUnknownActivityIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	require.True(t, errorx.Is(svc.Attend(context.Background(), "jane", uuid.NewString()), errorx.KindNotFound))
}

func TestUnattendRemovesOnlyCallerRow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))
	require.NoError(t, svc.Attend(ctx, "jane", cmd.ID))
	require.NoError(t, svc.Attend(ctx, "tom", cmd.ID))

	require.NoError(t, svc.Unattend(ctx, "jane", cmd.ID))

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	usernames := make([]string, 0, len(got.Attendees))
	for _, a := range got.Attendees {
		usernames = append(usernames, a.Username)
	}
	require.ElementsMatch(t, []string{"bob", "tom"}, usernames)

	// not attending any more: a second unattend is a no-op
	require.NoError(t, svc.Unattend(ctx, "jane", cmd.ID))

	// and re-attending creates a fresh row
	require.NoError(t, svc.Attend(ctx, "jane", cmd.ID))
	got, err = svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendees, 3)
}

func TestHostCannotUnattend(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cmd := createCommand("Run", fixedNow)
	require.NoError(t, svc.CreateActivity(ctx, "bob", cmd))

	err := svc.Unattend(ctx, "bob", cmd.ID)
	require.True(t, errorx.Is(err, errorx.KindBadRequest))

	got, err := svc.GetActivity(ctx, cmd.ID)
	require.NoError(t, err)
	host, ok := got.Host()
	require.True(t, ok)
	require.Equal(t, "bob", host.Username)
}

func TestListPaginatesSevenRowsIntoThreePages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	start := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	for i := 6; i >= 0; i-- {
		require.NoError(t, svc.CreateActivity(ctx, "bob", createCommand("A", start.AddDate(0, 0, i))))
	}

	var sizes []int
	var dates []time.Time
	for page := 0; page < 3; page++ {
		env, err := svc.ListActivities(ctx, "bob", domain.ListQuery{Offset: page * svc.PageSize()})
		require.NoError(t, err)
		require.Equal(t, 7, env.ActivityCount)
		sizes = append(sizes, len(env.Activities))
		for _, a := range env.Activities {
			dates = append(dates, a.Date)
		}
	}

	require.Equal(t, 3, domain.TotalPages(7, svc.PageSize()))
	require.Equal(t, []int{3, 3, 1}, sizes)
	for i := 1; i < len(dates); i++ {
		require.True(t, dates[i-1].Before(dates[i]), "activities must be ordered by date")
	}
}

func TestListBeyondLastPageIsEmptyWithTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	start := time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		require.NoError(t, svc.CreateActivity(ctx, "bob", createCommand("A", start.AddDate(0, 0, i))))
	}

	env, err := svc.ListActivities(ctx, "bob", domain.ListQuery{Offset: 9})
	require.NoError(t, err)
	require.Empty(t, env.Activities)
	require.Equal(t, 7, env.ActivityCount)

	env, err = svc.ListActivities(ctx, "bob", domain.ListQuery{Limit: domain.MaxPageSize})
	require.NoError(t, err)
	require.Len(t, env.Activities, 7)
}

func TestListRejectsOversizedLimit(t *testing.T) {
	svc, _ := newService(t)

	for _, limit := range []int{domain.MaxPageSize + 1, 100_000_000, 1 << 62} {
		_, err := svc.ListActivities(context.Background(), "bob", domain.ListQuery{Limit: limit})
		e, ok := errorx.As(err)
		require.True(t, ok, "limit %d", limit)
		require.Equal(t, errorx.KindValidation, e.Kind)
		require.Contains(t, e.Fields, "limit")
	}
}

func TestListPredicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	early := createCommand("Early", time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC))
	late := createCommand("Late", time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC))
	other := createCommand("Other", time.Date(2026, time.July, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, svc.CreateActivity(ctx, "bob", early))
	require.NoError(t, svc.CreateActivity(ctx, "bob", late))
	require.NoError(t, svc.CreateActivity(ctx, "tom", other))
	require.NoError(t, svc.Attend(ctx, "jane", late.ID))

	titles := func(p domain.Predicate, actor string) []string {
		env, err := svc.ListActivities(ctx, actor, domain.ListQuery{Limit: 10, Predicate: p})
		require.NoError(t, err)
		out := make([]string, 0, len(env.Activities))
		for _, a := range env.Activities {
			out = append(out, a.Title)
		}
		require.Equal(t, len(out), env.ActivityCount)
		return out
	}

	require.Equal(t, []string{"Late", "Other"}, titles(domain.Predicate{Kind: domain.PredicateStartDate, StartDate: late.Date}, "jane"))
	require.Equal(t, []string{"Late"}, titles(domain.Predicate{Kind: domain.PredicateIsGoing}, "jane"))
	require.Equal(t, []string{"Early", "Late"}, titles(domain.Predicate{Kind: domain.PredicateIsHost}, "bob"))
	require.Empty(t, titles(domain.Predicate{Kind: domain.PredicateIsHost}, "jane"))
}

func TestListRejectsNegativeOffset(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ListActivities(context.Background(), "bob", domain.ListQuery{Offset: -1})
	require.True(t, errorx.Is(err, errorx.KindValidation))
}

func TestNewPredicateAllowsOneFilter(t *testing.T) {
	from := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	p, err := domain.NewPredicate(domain.PredicateFilters{StartDate: &from})
	require.NoError(t, err)
	require.Equal(t, domain.PredicateStartDate, p.Kind)

	p, err = domain.NewPredicate(domain.PredicateFilters{})
	require.NoError(t, err)
	require.Equal(t, domain.PredicateNone, p.Kind)

	_, err = domain.NewPredicate(domain.PredicateFilters{IsGoing: true, IsHost: true})
	require.True(t, errorx.Is(err, errorx.KindValidation))
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.NoError(t, svc.UpdateProfile(ctx, "jane", domain.UpdateProfileCommand{DisplayName: "Jane D", Bio: "Film nerd"}))

	profile, err := svc.GetProfile(ctx, "jane")
	require.NoError(t, err)
	require.Equal(t, domain.Profile{Username: "jane", DisplayName: "Jane D", Bio: "Film nerd"}, *profile)

	_, err = svc.GetProfile(ctx, "nobody")
	require.True(t, errorx.Is(err, errorx.KindNotFound))

	err = svc.UpdateProfile(ctx, "jane", domain.UpdateProfileCommand{})
	require.True(t, errorx.Is(err, errorx.KindValidation))
}

func TestValues(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	values, err := svc.ListValues(ctx)
	require.NoError(t, err)
	require.Len(t, values, 3)

	v, err := svc.GetValue(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, "Value103", v.Name)

	_, err = svc.GetValue(ctx, 42)
	require.True(t, errorx.Is(err, errorx.KindNotFound))
}
