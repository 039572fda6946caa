//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/domain"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("exercise_tracker"),
		postgrescontainer.WithUsername("tracker"),
		postgrescontainer.WithPassword("tracker"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	require.NoError(t, Migrate(ctx, connStr, zap.NewNop()))

	pool, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRepositoryUsersAndExercises(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)
	repo := NewRepository(pool)

	alice, err := repo.CreateUser(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, alice.ID)

	_, err = repo.CreateUser(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	bob, err := repo.CreateUser(ctx, "bob")
	require.NoError(t, err)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.Equal(t, bob.ID, users[1].ID)

	found, err := repo.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "alice", found.Username)

	missing, err := repo.GetUser(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	malformed, err := repo.GetUser(ctx, "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrMalformedID)
	assert.Nil(t, malformed)

	day := func(d int) time.Time { return time.Date(2023, time.January, d, 0, 0, 0, 0, time.UTC) }
	for d := 1; d <= 5; d++ {
		_, err := repo.CreateExercise(ctx, domain.Exercise{
			UserID:      alice.ID,
			Description: "run",
			DurationMin: 10 * d,
			Date:        day(d),
		})
		require.NoError(t, err)
	}

	ranged, err := repo.ListExercises(ctx, domain.LogFilter{UserID: alice.ID, From: day(2), Before: day(5)})
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, 20, ranged[0].DurationMin)
	assert.True(t, day(4).Equal(ranged[2].Date))

	limited, err := repo.ListExercises(ctx, domain.LogFilter{UserID: alice.ID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.ListExercises(ctx, domain.LogFilter{UserID: bob.ID})
	require.NoError(t, err)
	assert.Empty(t, none)

	var pending int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	assert.Equal(t, 7, pending, "two user events and five exercise events")
}

func TestCreateUserConcurrentDuplicateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(startPostgres(t))

	const attempts = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.CreateUser(ctx, "alice")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	wins, dupes := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrDuplicateUsername):
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, dupes)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
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
