package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExerciseLoggedMovesWatermark(t *testing.T) {
	before := testutil.ToFloat64(exercisesLoggedCounter)
	date := time.Date(2023, time.May, 10, 0, 0, 0, 0, time.UTC)

	RecordExerciseLogged(date)

	assert.Equal(t, before+1, testutil.ToFloat64(exercisesLoggedCounter))
	assert.Equal(t, float64(date.Unix()), testutil.ToFloat64(exerciseDateGauge))
}

func TestRecordExerciseLoggedZeroDateKeepsWatermark(t *testing.T) {
	RecordExerciseLogged(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	watermark := testutil.ToFloat64(exerciseDateGauge)

	RecordExerciseLogged(time.Time{})
	assert.Equal(t, watermark, testutil.ToFloat64(exerciseDateGauge))
}

func TestObserveHTTPRequest(t *testing.T) {
	counter := httpRequestsCounter.WithLabelValues("GET", "GET /api/users", "200")
	before := testutil.ToFloat64(counter)

	ObserveHTTPRequest("GET", "GET /api/users", "200", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
