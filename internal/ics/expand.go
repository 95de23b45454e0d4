package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
)

// Safety cap so a runaway rule cannot flood a cycle.
const maxOccurrencesPerEvent = 1000

// ExpandWindow resolves recurrence for a list of RawEvent within the
// inclusive [rangeStart, rangeEnd] window. Non-recurring events pass
// through untouched; events carrying an RRULE are replaced by one
// RawEvent per occurrence, each with a per-occurrence UID suffix so
// downstream keys stay unique. Source order is preserved.
//
// Rental platforms never emit RRULE, so for their feeds this is a
// pass-through; custom property calendars get correct handling instead
// of a dropped event.
func ExpandWindow(events []RawEvent, rangeStart, rangeEnd time.Time) []RawEvent {
	out := make([]RawEvent, 0, len(events))

	for _, ev := range events {
		if ev.RawRRule == "" {
			out = append(out, ev)
			continue
		}
		out = append(out, expandRecurring(ev, rangeStart, rangeEnd)...)
	}

	return out
}

func expandRecurring(ev RawEvent, rangeStart, rangeEnd time.Time) []RawEvent {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("failed to parse RRULE, keeping base event", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return []RawEvent{ev}
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	loc := ev.Start.Location()
	occTimes := set.Between(rangeStart.In(loc), rangeEnd.In(loc), true)
	if len(occTimes) > maxOccurrencesPerEvent {
		appLog.Error("recurrence expansion truncated", nil, "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		occTimes = occTimes[:maxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]RawEvent, 0, len(occTimes))
	for _, occStart := range occTimes {
		occ := ev
		occ.RawRRule = ""
		if ev.AllDay {
			occ.Start = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
		} else {
			occ.Start = occStart
		}
		occ.End = occ.Start.Add(dur)
		occ.UID = ev.UID + "#" + occ.Start.Format("20060102")
		out = append(out, occ)
	}
	return out
}
