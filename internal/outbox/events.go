package outbox

import "time"

// Event types recorded in the outbox table.
const (
	EventUserCreated    = "user.created"
	EventExerciseLogged = "exercise.logged"
)

// UserCreated is emitted when a username is registered.
type UserCreated struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ExerciseLogged is emitted when an exercise is stored for a user.
type ExerciseLogged struct {
	ExerciseID  string    `json:"exercise_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	DurationMin int       `json:"duration"`
	Date        time.Time `json:"date"`
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	AggregateType string
	Topic         string
}

// Catalog maps event types to their routing metadata.
var Catalog = map[string]EventMetadata{
	EventUserCreated: {
		AggregateType: "user",
		Topic:         "user_events",
	},
	EventExerciseLogged: {
		AggregateType: "exercise",
		Topic:         "exercise_events",
	},
}
