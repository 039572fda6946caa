// Package memory provides a process-local store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/exercisetracker/internal/domain"
)

// Repository keeps users and exercises in memory in insertion order.
type Repository struct {
	mu         sync.RWMutex
	users      []domain.User
	byID       map[string]int
	byUsername map[string]struct{}
	exercises  []domain.Exercise
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byID:       make(map[string]int),
		byUsername: make(map[string]struct{}),
	}
}

// CreateUser implements domain.Repository.
func (r *Repository) CreateUser(ctx context.Context, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[username]; taken {
		return domain.User{}, domain.ErrDuplicateUsername
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	r.byID[user.ID] = len(r.users)
	r.byUsername[username] = struct{}{}
	r.users = append(r.users, user)
	return user, nil
}

// ListUsers implements domain.Repository.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

// GetUser implements domain.Repository.
func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: %w", domain.ErrMalformedID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	user := r.users[idx]
	return &user, nil
}

// CreateExercise implements domain.Repository.
func (r *Repository) CreateExercise(ctx context.Context, exercise domain.Exercise) (domain.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exercise.ID = uuid.NewString()
	exercise.CreatedAt = time.Now().UTC()
	r.exercises = append(r.exercises, exercise)
	return exercise, nil
}

// ListExercises implements domain.Repository.
func (r *Repository) ListExercises(ctx context.Context, filter domain.LogFilter) ([]domain.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.Exercise, 0)
	for _, exercise := range r.exercises {
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
		if exercise.UserID != filter.UserID {
			continue
		}
		if !filter.From.IsZero() && exercise.Date.Before(filter.From) {
			continue
		}
		if !filter.Before.IsZero() && !exercise.Date.Before(filter.Before) {
			continue
		}
		results = append(results, exercise)
	}
	return results, nil
}

// Ping implements domain.Repository.
func (r *Repository) Ping(ctx context.Context) error {
	return nil
}
