// Package domain defines the business logic for the exercise tracker.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/exercisetracker/internal/observability"
)

var (
	// ErrInvalidInput marks missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid data")
	// ErrDuplicateUsername is returned when the store rejects a username as already taken.
	ErrDuplicateUsername = errors.New("duplicate or invalid username")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMalformedID marks a user identifier the store cannot address.
	ErrMalformedID = errors.New("malformed identifier")
)

// DefaultLogLimit caps log queries that do not carry a usable limit.
const DefaultLogLimit = 500

// Repository captures persistence operations.
//
// GetUser returns (nil, nil) when no user matches and ErrMalformedID when id is not a UUID.
// CreateUser returns ErrDuplicateUsername when the username is taken.
type Repository interface {
	CreateUser(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateExercise(ctx context.Context, exercise Exercise) (Exercise, error)
	ListExercises(ctx context.Context, filter LogFilter) ([]Exercise, error)
	Ping(ctx context.Context) error
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithDefaultLogLimit overrides the cap applied when a log query has no valid limit.
func WithDefaultLogLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultLimit = limit
		}
	}
}

// WithClock overrides the time source used to stamp undated exercises.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates user and exercise workflows.
type Service struct {
	repo         Repository
	defaultLimit int
	now          func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		defaultLimit: DefaultLogLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserInput captures the payload for registering a user.
type CreateUserInput struct {
	Username string
}

// Validate ensures input correctness.
func (in CreateUserInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return nil
}

// CreateExerciseInput captures the payload for logging an exercise.
// A nil Date stamps the exercise with the current time.
type CreateExerciseInput struct {
	UserID      string
	Description string
	DurationMin int
	Date        *time.Time
}

// Validate ensures input correctness.
func (in CreateExerciseInput) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if _, err := uuid.Parse(in.UserID); err != nil {
		return fmt.Errorf("%w: malformed user id", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return nil
}

// LogQuery selects a user's exercises. From and To are calendar days, both inclusive.
type LogQuery struct {
	UserID string
	From   *time.Time
	To     *time.Time
	Limit  int
}

// CreateUser registers a new user.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	if err := input.Validate(); err != nil {
		return User{}, err
	}

	user, err := s.repo.CreateUser(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		return User{}, err
	}
	observability.RecordUserCreated()
	return user, nil
}

// ListUsers returns every user in insertion order.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// CreateExercise logs an exercise for an existing user and returns both.
func (s *Service) CreateExercise(ctx context.Context, input CreateExerciseInput) (User, Exercise, error) {
	if err := input.Validate(); err != nil {
		return User{}, Exercise{}, err
	}

	user, err := s.getUser(ctx, input.UserID)
	if err != nil {
		return User{}, Exercise{}, err
	}

	date := StartOfDay(s.now().UTC())
	if input.Date != nil {
		date = StartOfDay(*input.Date)
	}

	exercise, err := s.repo.CreateExercise(ctx, Exercise{
		UserID:      user.ID,
		Description: strings.TrimSpace(input.Description),
		DurationMin: input.DurationMin,
		Date:        date,
	})
	if err != nil {
		return User{}, Exercise{}, err
	}
	observability.RecordExerciseLogged(exercise.Date)
	return *user, exercise, nil
}

// ListLogs returns the user's exercises filtered by the query.
func (s *Service) ListLogs(ctx context.Context, query LogQuery) (Log, error) {
	user, err := s.getUser(ctx, query.UserID)
	if err != nil {
		return Log{}, err
	}

	filter := LogFilter{UserID: user.ID, Limit: query.Limit}
	if filter.Limit <= 0 {
		filter.Limit = s.defaultLimit
	}
	if query.From != nil {
		filter.From = StartOfDay(*query.From)
	}
	if query.To != nil {
		filter.Before = StartOfDay(*query.To).AddDate(0, 0, 1)
	}

	entries, err := s.repo.ListExercises(ctx, filter)
	if err != nil {
		return Log{}, err
	}
	if entries == nil {
		entries = []Exercise{}
	}
	return Log{User: *user, Entries: entries}, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) getUser(ctx context.Context, id string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
