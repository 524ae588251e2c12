package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTotalPages(t *testing.T) {
	cases := []struct {
		count, size, want int
	}{
		{7, 3, 3},
		{6, 3, 2},
		{0, 3, 0},
		{1, 3, 1},
		{5, 0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TotalPages(tc.count, tc.size), "count=%d size=%d", tc.count, tc.size)
	}
}

func TestCategoryValid(t *testing.T) {
	require.True(t, CategoryFilm.Valid())
	require.False(t, Category("sports").Valid())
}
