//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/outbox"
	"example.com/exercisetracker/internal/persistence/postgres"
)

func startPostgres(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("exercise_tracker"),
		postgrescontainer.WithUsername("tracker"),
		postgrescontainer.WithPassword("tracker"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(ctx, dsn, zap.NewNop()))

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0",
		testcontainers.WithEnv(map[string]string{"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true"}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func TestDispatcherPublishesUserCreated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)
	broker := startKafka(ctx, t)

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: "user_events", NumPartitions: 1, ReplicationFactor: 1}))
	_ = conn.Close()

	repo := postgres.NewRepository(pool)
	user, err := repo.CreateUser(ctx, "alice")
	require.NoError(t, err)

	producer := outbox.NewKafkaProducer([]string{broker})
	defer producer.Close()

	dispatchCtx, stop := context.WithCancel(ctx)
	dispatcher := outbox.NewDispatcher(pool, producer, zap.NewNop(), 200*time.Millisecond, 10)
	go dispatcher.Start(dispatchCtx)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       "user_events",
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	stop()
	dispatcher.Wait()

	assert.Equal(t, user.ID, string(msg.Key))
	var payload outbox.UserCreated
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, user.ID, payload.UserID)
	assert.Equal(t, "alice", payload.Username)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, outbox.EventUserCreated, headers["event_type"])
	assert.Equal(t, user.ID, headers["aggregate_id"])

	require.Eventually(t, func() bool {
		var pending int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending); err != nil {
			return false
		}
		return pending == 0
	}, 10*time.Second, 200*time.Millisecond)
}

func TestReplayRequeuesDeadLetters(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool := startPostgres(ctx, t)

	_, err := pool.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, reason)
         VALUES (1, 'user', 'u1', $1, 'user_events', 'u1', '{"user_id":"u1"}', 'broker down'),
                (2, 'user', 'u2', 'user.deleted', 'user_events', 'u2', '{}', 'unknown')`,
		outbox.EventUserCreated,
	)
	require.NoError(t, err)

	replayer := outbox.NewReplayer(pool)
	moved, err := replayer.Replay(ctx, 10)
	require.Error(t, err, "unknown event types are reported")
	assert.Equal(t, 1, moved)

	var queued int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE aggregate_id = 'u1' AND published_at IS NULL`).Scan(&queued))
	assert.Equal(t, 1, queued)

	pending, err := replayer.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	moved, err = replayer.Replay(ctx, 10)
	require.Error(t, err)
	assert.Zero(t, moved)
}
