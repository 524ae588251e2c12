package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"example.com/reactivities/internal/errorx"
)

func TestObserveCommandLabelsOutcomeByKind(t *testing.T) {
	before := testutil.ToFloat64(commandCounter.WithLabelValues("probe", "not_found"))
	okBefore := testutil.ToFloat64(commandCounter.WithLabelValues("probe", "ok"))

	err := error(errorx.NotFound("activity"))
	ObserveCommand("probe", time.Now(), &err)
	var none error
	ObserveCommand("probe", time.Now(), &none)

	require.Equal(t, before+1, testutil.ToFloat64(commandCounter.WithLabelValues("probe", "not_found")))
	require.Equal(t, okBefore+1, testutil.ToFloat64(commandCounter.WithLabelValues("probe", "ok")))
}

func TestObserveCommandTreatsUnknownErrorsAsServerErrors(t *testing.T) {
	before := testutil.ToFloat64(commandCounter.WithLabelValues("probe-internal", "server_error"))

	err := errors.New("disk full")
	ObserveCommand("probe-internal", time.Now(), &err)

	require.Equal(t, before+1, testutil.ToFloat64(commandCounter.WithLabelValues("probe-internal", "server_error")))
}

func TestWatermarksIgnoreZeroTime(t *testing.T) {
	ts := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	RecordActivityPersisted(ts)
	RecordActivityPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(activityPersistGauge))

	RecordEventsPublished(ts)
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(eventPublishedGauge))
}
