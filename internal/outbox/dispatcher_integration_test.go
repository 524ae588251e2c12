//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/reactivities/internal/events"
)

func TestDispatcherPublishesAndMarksRows(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	activityID := uuid.NewString()
	seedOutbox(t, ctx, pool, activityID, events.TypeActivityCreated, "activity_events", "activity_created-value")
	seedOutbox(t, ctx, pool, activityID, events.TypeAttendeeJoined, "attendance_events", "attendee_joined-value")

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 42}, 10*time.Millisecond, 10)

	beforeDelivered := testutil.ToFloat64(deliveredCounter)
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "activity_events", producer.writes[0].topic)
	require.Equal(t, "attendance_events", producer.writes[1].topic)
	require.InDelta(t, beforeDelivered+2, testutil.ToFloat64(deliveredCounter), 0.0001)
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	require.Zero(t, pending)

	// A second pass finds nothing left to claim.
	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 2)
}

func TestDispatcherRoutesBatchToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	activityID := uuid.NewString()
	eventID := seedOutbox(t, ctx, pool, activityID, events.TypeActivityUpdated, "activity_events", "activity_updated-value")

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, &stubRegistry{id: 7}, 10*time.Millisecond, 5)

	beforeFailed := testutil.ToFloat64(failedCounter)
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events"))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues("activity_events")), 0.0001)

	var reason, aggregateID string
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT reason, aggregate_id FROM outbox_dlq WHERE event_id = $1`, eventID,
	).Scan(&reason, &aggregateID))
	require.Contains(t, reason, "kafka write failed")
	require.Equal(t, activityID, aggregateID)

	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.NotNil(t, publishedAt)
}

func TestDLQManagerRequeuesAndQuarantines(t *testing.T) {
	ctx := context.Background()
	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	fresh := uuid.NewString()
	exhausted := uuid.NewString()
	writer := NewDLQWriter(pool)
	require.NoError(t, writer.Write(ctx, Message{
		EventID: 1, AggregateType: "activity", AggregateID: fresh,
		EventType: events.TypeActivityDeleted, Topic: "activity_events",
		SchemaSubject: "activity_deleted-value", PartitionKey: fresh,
		Payload: json.RawMessage(`{"activity_id":"` + fresh + `"}`),
	}, "broker unavailable"))
	require.NoError(t, writer.Write(ctx, Message{
		EventID: 2, AggregateType: "activity", AggregateID: exhausted,
		EventType: events.TypeAttendeeLeft, Topic: "attendance_events",
		SchemaSubject: "attendee_left-value", PartitionKey: exhausted,
		Payload: json.RawMessage(`{}`),
	}, "broker unavailable"))
	_, err := pool.Exec(ctx, `UPDATE outbox_dlq SET retry_count = 3 WHERE aggregate_id = $1`, exhausted)
	require.NoError(t, err)

	manager := NewDLQManager(pool, 3, time.Second)
	requeued, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND published_at IS NULL`, fresh,
	).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount)

	var quarantined *time.Time
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT quarantined_at FROM outbox_dlq WHERE aggregate_id = $1`, exhausted,
	).Scan(&quarantined))
	require.NotNil(t, quarantined)

	// Quarantined rows are not picked up again.
	requeued, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Zero(t, requeued)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("reactivities"),
		postgrescontainer.WithUsername("reactivities"),
		postgrescontainer.WithPassword("reactivities"),
	)
	require.NoError(t, err)

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	return pool, func() {
		pool.Close()
		_ = pg.Terminate(ctx)
	}
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	return metric.GetHistogram().GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, activityID, eventType, topic, subject string) int64 {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"activity_id": activityID})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
         VALUES ('activity', $1, $2, $3, $4, $1, $5)
         RETURNING event_id`,
		activityID, eventType, topic, subject, payload,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(resolvePath(t, "../../db/postgres/migrations"), "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		contents, err := os.ReadFile(file)
		require.NoErrorf(t, err, "read migration %s", file)
		_, err = pool.Exec(ctx, string(contents))
		require.NoErrorf(t, err, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
