// Package postgres provides Postgres-backed persistence for users, exercises and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/outbox"
)

const uniqueViolation = "23505"

// Repository implements domain.Repository on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUser inserts the user and its outbox event in a single transaction.
func (r *Repository) CreateUser(ctx context.Context, username string) (domain.User, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.User{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	user := domain.User{Username: username}
	const insertUser = `INSERT INTO users (username) VALUES ($1) RETURNING id::text, created_at`
	if err := tx.QueryRow(ctx, insertUser, username).Scan(&user.ID, &user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateUsername
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	if err := r.insertOutbox(ctx, tx, outbox.EventUserCreated, user.ID, user.ID, outbox.UserCreated{
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}); err != nil {
		return domain.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateUsername
		}
		return domain.User{}, fmt.Errorf("commit user: %w", err)
	}
	return user, nil
}

// ListUsers returns users in insertion order.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, username, created_at FROM users ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", domain.ErrMalformedID)
	}

	var user domain.User
	const query = `SELECT id::text, username, created_at FROM users WHERE id = $1`
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// CreateExercise inserts the exercise and its outbox event in a single transaction.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	userID, err := uuid.Parse(exercise.UserID)
	if err != nil {
		return domain.Exercise{}, fmt.Errorf("%w: malformed user id", domain.ErrInvalidInput)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Exercise{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertExercise = `INSERT INTO exercises (user_id, description, duration_min, performed_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id::text, created_at`

	err = tx.QueryRow(ctx, insertExercise,
		userID,
		exercise.Description,
		exercise.DurationMin,
		exercise.Date,
	).Scan(&exercise.ID, &exercise.CreatedAt)
	if err != nil {
		return domain.Exercise{}, fmt.Errorf("insert exercise: %w", err)
	}

	if err := r.insertOutbox(ctx, tx, outbox.EventExerciseLogged, exercise.ID, exercise.UserID, outbox.ExerciseLogged{
		ExerciseID:  exercise.ID,
		UserID:      exercise.UserID,
		Description: exercise.Description,
		DurationMin: exercise.DurationMin,
		Date:        exercise.Date,
	}); err != nil {
		return domain.Exercise{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Exercise{}, fmt.Errorf("commit exercise: %w", err)
	}
	return exercise, nil
}

// ListExercises returns a user's exercises in insertion order.
func (r *Repository) ListExercises(ctx context.Context, filter domain.LogFilter) ([]domain.Exercise, error) {
	userID, err := uuid.Parse(filter.UserID)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", domain.ErrMalformedID)
	}

	args := []interface{}{userID}
	query := `SELECT id::text, user_id::text, description, duration_min, performed_at, created_at
        FROM exercises WHERE user_id = $1`

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND performed_at >= $%d`, len(args))
	}
	if !filter.Before.IsZero() {
		args = append(args, filter.Before)
		query += fmt.Sprintf(` AND performed_at < $%d`, len(args))
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Exercise, 0)
	for rows.Next() {
		var ex domain.Exercise
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Description, &ex.DurationMin, &ex.Date, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		ex.Date = ex.Date.UTC()
		results = append(results, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	return results, nil
}

// Ping checks pool connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, partitionKey string, payload interface{}) error {
	meta, ok := outbox.Catalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		partitionKey,
		body,
		fmt.Sprintf("%s:%s", aggregateID, eventType),
	)
	if err != nil {
		return fmt.Errorf("insert outbox %s: %w", eventType, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
