package api

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/errorx"
)

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  domain.ListQuery
		field string
	}{
		{name: "empty", raw: "", want: domain.ListQuery{}},
		{name: "paging", raw: "limit=5&offset=10", want: domain.ListQuery{Limit: 5, Offset: 10}},
		{name: "going", raw: "isGoing=true", want: domain.ListQuery{Predicate: domain.Predicate{Kind: domain.PredicateIsGoing}}},
		{name: "host false is no filter", raw: "isHost=false", want: domain.ListQuery{}},
		{
			name: "start date",
			raw:  "startDate=2026-03-01T10:00:00%2B02:00",
			want: domain.ListQuery{Predicate: domain.Predicate{Kind: domain.PredicateStartDate, StartDate: time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)}},
		},
		{name: "bad limit", raw: "limit=zero", field: "limit"},
		{name: "zero limit", raw: "limit=0", field: "limit"},
		{name: "largest limit", raw: "limit=100", want: domain.ListQuery{Limit: 100}},
		{name: "limit over max", raw: "limit=101", field: "limit"},
		{name: "limit near int max", raw: "limit=4611686018427387904", field: "limit"},
		{name: "limit overflows", raw: "limit=99999999999999999999", field: "limit"},
		{name: "bad flag", raw: "isGoing=maybe", field: "isGoing"},
		{name: "bad date", raw: "startDate=tomorrow", field: "startDate"},
		{name: "two filters", raw: "isGoing=true&startDate=2026-03-01", field: "predicate"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.raw)
			require.NoError(t, err)

			got, err := parseListQuery(values)
			if tc.field != "" {
				e, ok := errorx.As(err)
				require.True(t, ok)
				require.Equal(t, errorx.KindValidation, e.Kind)
				require.Contains(t, e.Fields, tc.field)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
