package event

import (
	"strings"
	"time"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

// Classify buckets an event by its summary against the configured
// keyword sets. Blocked/not-available entries are platform hold
// markers, not reservations.
func Classify(summary string, blockedKeywords, notAvailableKeywords []string) model.Category {
	for _, kw := range blockedKeywords {
		if kw != "" && strings.Contains(summary, kw) {
			return model.CategoryBlocked
		}
	}
	for _, kw := range notAvailableKeywords {
		if kw != "" && strings.Contains(summary, kw) {
			return model.CategoryNotAvailable
		}
	}
	if strings.Contains(summary, "Reserved") ||
		strings.Contains(summary, "Reservation") ||
		strings.Contains(summary, "CLOSED") ||
		strings.Contains(summary, "Tripadvisor") {
		return model.CategoryReserved
	}
	return model.CategoryOther
}

// ApplyStayTimes produces the effective start/end instants for an event.
//
// All-day entries get the configured check-in and check-out times of day
// combined with the event's dates in tz. Timed entries keep their own
// times, converted into tz for presentation. The function is a pure
// derivation from the raw fields, so running it again on the same input
// yields the same result.
func ApplyStayTimes(start, end time.Time, allDay bool, checkin, checkout config.Clock, tz *time.Location) (time.Time, time.Time) {
	if !allDay {
		return start.In(tz), end.In(tz)
	}

	// A date-only value is a calendar date, not an instant; take the
	// date components as parsed rather than converting zones first.
	newStart := time.Date(start.Year(), start.Month(), start.Day(), checkin.Hour, checkin.Minute, 0, 0, tz)
	newEnd := time.Date(end.Year(), end.Month(), end.Day(), checkout.Hour, checkout.Minute, 0, 0, tz)
	return newStart, newEnd
}
