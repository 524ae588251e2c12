// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"example.com/reactivities/internal/domain"
)

// ActivityColumns is the column list, in scan order, shared by every activity select.
const ActivityColumns = `a.id, a.title, a.description, a.category, a.date, a.city, a.venue, a.version, a.created_at, a.updated_at`

// Dialect adapts the generated SQL to a driver.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a timestamp to the column's storage representation.
	Time func(time.Time) any
}

// Postgres binds $n parameters and passes times through to pgx.
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Time:        func(t time.Time) any { return t.UTC() },
}

// SQLite binds ? parameters and stores times as unix milliseconds.
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	Time:        func(t time.Time) any { return t.UTC().UnixMilli() },
}

// ListStatements holds the count and page queries for one list request.
type ListStatements struct {
	CountSQL  string
	CountArgs []any
	PageSQL   string
	PageArgs  []any
}

// BuildList renders the filtered count query and the ordered page query.
// userID is only consulted for the isGoing and isHost predicates.
func BuildList(d Dialect, userID string, q domain.ListQuery) (ListStatements, error) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	switch q.Predicate.Kind {
	case domain.PredicateNone:
	case domain.PredicateStartDate:
		where = append(where, "a.date >= "+bind(d.Time(q.Predicate.StartDate)))
	case domain.PredicateIsGoing:
		where = append(where, "EXISTS (SELECT 1 FROM user_activities ua WHERE ua.activity_id = a.id AND ua.user_id = "+bind(userID)+")")
	case domain.PredicateIsHost:
		where = append(where, "EXISTS (SELECT 1 FROM user_activities ua WHERE ua.activity_id = a.id AND ua.user_id = "+bind(userID)+" AND ua.is_host = "+bind(true)+")")
	default:
		return ListStatements{}, fmt.Errorf("unsupported predicate %q", q.Predicate.Kind)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	stmts := ListStatements{
		CountSQL:  "SELECT COUNT(*) FROM activities a" + clause,
		CountArgs: append([]any(nil), args...),
	}
	limit := bind(q.Limit)
	offset := bind(q.Offset)
	stmts.PageSQL = "SELECT " + ActivityColumns + " FROM activities a" + clause +
		" ORDER BY a.date ASC, a.id ASC LIMIT " + limit + " OFFSET " + offset
	stmts.PageArgs = args
	return stmts, nil
}

// SortAttendees orders attendees host first, then by join time.
func SortAttendees(attendees []domain.Attendee) {
	sort.SliceStable(attendees, func(i, j int) bool {
		return attendeeLess(attendees[i], attendees[j])
	})
}

func attendeeLess(a, b domain.Attendee) bool {
	if a.IsHost != b.IsHost {
		return a.IsHost
	}
	if !a.DateJoined.Equal(b.DateJoined) {
		return a.DateJoined.Before(b.DateJoined)
	}
	return a.Username < b.Username
}
