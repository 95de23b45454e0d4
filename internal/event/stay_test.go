package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

var (
	checkin  = config.Clock{Hour: 16, Minute: 0}
	checkout = config.Clock{Hour: 11, Minute: 0}
)

func TestApplyStayTimesAllDay(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Dates as the parser produces them for VALUE=DATE entries.
	start := time.Date(2099, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2099, 5, 4, 0, 0, 0, 0, time.UTC)

	gotStart, gotEnd := ApplyStayTimes(start, end, true, checkin, checkout, tz)

	assert.Equal(t, time.Date(2099, 5, 1, 16, 0, 0, 0, tz), gotStart)
	assert.Equal(t, time.Date(2099, 5, 4, 11, 0, 0, 0, tz), gotEnd)
}

func TestApplyStayTimesAllDayIdempotent(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2099, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2099, 5, 4, 0, 0, 0, 0, time.UTC)

	s1, e1 := ApplyStayTimes(start, end, true, checkin, checkout, tz)
	s2, e2 := ApplyStayTimes(s1, e1, true, checkin, checkout, tz)

	assert.True(t, s1.Equal(s2))
	assert.True(t, e1.Equal(e2))
}

func TestApplyStayTimesTimedKeepsInstant(t *testing.T) {
	tz, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2099, 5, 1, 20, 0, 0, 0, time.UTC)
	end := time.Date(2099, 5, 4, 15, 0, 0, 0, time.UTC)

	gotStart, gotEnd := ApplyStayTimes(start, end, false, checkin, checkout, tz)

	assert.True(t, gotStart.Equal(start))
	assert.True(t, gotEnd.Equal(end))
	assert.Equal(t, tz, gotStart.Location())
	assert.Equal(t, 16, gotStart.Hour())
}

func TestClassify(t *testing.T) {
	blocked := []string{"Blocked"}
	notAvailable := []string{"Not available"}

	tests := []struct {
		summary string
		want    model.Category
	}{
		{"Reserved - Jane Doe", model.CategoryReserved},
		{"Reserved", model.CategoryReserved},
		{"Reservation GST-123", model.CategoryReserved},
		{"CLOSED - Booking.com guest", model.CategoryReserved},
		{"Tripadvisor (Flipkey): John Smith", model.CategoryReserved},
		{"Airbnb (Blocked)", model.CategoryBlocked},
		{"Not available", model.CategoryNotAvailable},
		{"Owner maintenance", model.CategoryOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.summary, blocked, notAvailable), "summary %q", tt.summary)
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	got := Classify("Property on hold", []string{"on hold"}, nil)
	assert.Equal(t, model.CategoryBlocked, got)
}
