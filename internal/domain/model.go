package domain

import "time"

// User is a registered account that exercises are logged against.
type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Exercise is a single logged workout entry owned by a user.
type Exercise struct {
	ID          string
	UserID      string
	Description string
	DurationMin int
	Date        time.Time
	CreatedAt   time.Time
}

// LogFilter narrows the exercises returned for a user's log.
// Zero times leave that side of the range open.
type LogFilter struct {
	UserID string
	From   time.Time
	Before time.Time // exclusive upper bound
	Limit  int
}

// Log is a user's filtered exercise history.
type Log struct {
	User    User
	Entries []Exercise
}

// Count reports the number of entries returned, not the user's total.
func (l Log) Count() int {
	return len(l.Entries)
}
