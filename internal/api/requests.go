package api

import (
	"encoding/json"
	"fmt"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/exercisetracker/internal/domain"
)

const maxBodyBytes = 1 << 20

type formDecoder interface {
	fromForm(url.Values)
}

// decodeBody fills dst from a JSON or url-encoded form body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst formDecoder) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}
		dst.fromForm(r.PostForm)
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// CreateUserRequest is the payload for POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username"`
}

func (req *CreateUserRequest) fromForm(values url.Values) {
	req.Username = values.Get("username")
}

func (req CreateUserRequest) toInput() domain.CreateUserInput {
	return domain.CreateUserInput{Username: req.Username}
}

// CreateExerciseRequest is the payload for POST /api/users/{_id}/exercises.
type CreateExerciseRequest struct {
	Description string      `json:"description"`
	Duration    numberField `json:"duration"`
	Date        string      `json:"date"`
}

func (req *CreateExerciseRequest) fromForm(values url.Values) {
	req.Description = values.Get("description")
	if values.Has("duration") {
		req.Duration = numberField{raw: strings.TrimSpace(values.Get("duration")), set: true}
	}
	req.Date = values.Get("date")
}

// toInput checks presence and types and converts to the domain input.
func (req CreateExerciseRequest) toInput(userID string) (domain.CreateExerciseInput, error) {
	input := domain.CreateExerciseInput{
		UserID:      userID,
		Description: req.Description,
	}
	if strings.TrimSpace(req.Description) == "" {
		return input, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}

	minutes, err := req.Duration.minutes()
	if err != nil {
		return input, err
	}
	input.DurationMin = minutes

	if strings.TrimSpace(req.Date) != "" {
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			return input, err
		}
		input.Date = &date
	}
	return input, nil
}

// numberField accepts a JSON number or a numeric string.
type numberField struct {
	raw string
	set bool
}

// UnmarshalJSON records the raw value; conversion happens during validation.
func (n *numberField) UnmarshalJSON(data []byte) error {
	value := strings.TrimSpace(string(data))
	if value == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(value); err == nil {
		value = unquoted
	}
	n.raw = strings.TrimSpace(value)
	n.set = true
	return nil
}

func (n numberField) minutes() (int, error) {
	if !n.set || n.raw == "" {
		return 0, fmt.Errorf("%w: duration is required", domain.ErrInvalidInput)
	}
	f, err := strconv.ParseFloat(n.raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: duration must be a whole number of minutes", domain.ErrInvalidInput)
	}
	return int(f), nil
}
