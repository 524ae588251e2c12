package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/errorx"
)

// parseListQuery reads limit, offset and the predicate filters of a list request.
func parseListQuery(values url.Values) (domain.ListQuery, error) {
	var q domain.ListQuery
	errs := map[string]string{}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n <= 0:
			errs["limit"] = "limit must be a positive integer"
		case n > domain.MaxPageSize:
			errs["limit"] = fmt.Sprintf("limit must not exceed %d", domain.MaxPageSize)
		}
		q.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs["offset"] = "offset must be an integer"
		}
		q.Offset = n
	}

	var filters domain.PredicateFilters
	if raw := values.Get("startDate"); raw != "" {
		when, err := parseDate(raw)
		if err != nil {
			errs["startDate"] = "startDate must be an RFC 3339 timestamp or YYYY-MM-DD date"
		} else {
			filters.StartDate = &when
		}
	}
	filters.IsGoing = parseFlag(values, "isGoing", errs)
	filters.IsHost = parseFlag(values, "isHost", errs)

	if len(errs) > 0 {
		return domain.ListQuery{}, errorx.Validation(errs)
	}
	predicate, err := domain.NewPredicate(filters)
	if err != nil {
		return domain.ListQuery{}, err
	}
	q.Predicate = predicate
	return q, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

func parseFlag(values url.Values, name string, errs map[string]string) bool {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return false
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		errs[name] = name + " must be true or false"
	}
	return on
}
