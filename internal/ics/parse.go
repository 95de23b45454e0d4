package ics

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
)

// RawEvent is the normalized representation of a VEVENT as produced by
// the parser. It carries the original text fields so every downstream
// derivation can be re-run from scratch each refresh cycle.
type RawEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
}

// Feed is one parsed calendar payload.
type Feed struct {
	// Timezone is the feed-level zone: X-WR-TIMEZONE when declared,
	// otherwise the fallback the caller passed in.
	Timezone *time.Location
	Events   []RawEvent
}

// ParseError reports structurally invalid ICS input. A partial parse is
// never returned alongside one.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ics parse: %s: %v", e.Reason, e.Cause)
	}
	return "ics parse: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Parse converts a raw ICS payload into an ordered list of RawEvent.
//
//   - Some platform calendars are filled with NUL bytes that break
//     parsing; they are stripped first.
//   - All-day events are detected by inspecting the DTSTART value form
//     (VALUE=DATE or a bare date).
//   - Smoobu emits separate "Check-in"/"Check-out" helper events that
//     duplicate the stay itself; they are dropped here.
//   - RRULE values are recorded but not expanded; see expand.go.
func Parse(body []byte, fallbackTZ *time.Location) (*Feed, error) {
	if len(body) == 0 {
		return nil, &ParseError{Reason: "empty ICS body"}
	}
	if fallbackTZ == nil {
		fallbackTZ = time.UTC
	}

	body = bytes.ReplaceAll(body, []byte{0x00}, nil)

	// The calendar library accepts a truncated payload; a feed cut off
	// mid-transfer must fail the cycle, not parse as empty.
	if !terminated(body) {
		return nil, &ParseError{Reason: "calendar block not terminated"}
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Reason: "invalid calendar", Cause: err}
	}

	feed := &Feed{Timezone: fallbackTZ}
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-TIMEZONE") && p.Value != "" {
			loc, lerr := time.LoadLocation(p.Value)
			if lerr != nil {
				appLog.Error("unknown X-WR-TIMEZONE, using fallback", lerr, "tz", p.Value)
				break
			}
			feed.Timezone = loc
			break
		}
	}

	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, feed.Timezone)
		if perr != nil {
			return nil, perr
		}
		if ev.Summary != "" &&
			(strings.Contains(ev.Summary, "Check-in") || strings.Contains(ev.Summary, "Check-out")) {
			appLog.Debug("dropping platform helper event", "summary", ev.Summary)
			continue
		}
		feed.Events = append(feed.Events, ev)
	}

	return feed, nil
}

// terminated reports whether the payload ends with END:VCALENDAR,
// ignoring trailing whitespace.
func terminated(body []byte) bool {
	const terminator = "END:VCALENDAR"
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < len(terminator) {
		return false
	}
	tail := trimmed[len(trimmed)-len(terminator):]
	return strings.EqualFold(string(tail), terminator)
}

func parseVEvent(ve *ical.VEvent, tz *time.Location) (RawEvent, *ParseError) {
	var out RawEvent

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, &ParseError{Reason: fmt.Sprintf("event %q missing DTSTART", out.Summary)}
	}

	start, allDay, err := parseICSTime(dtStart.Value, dtStart.ICalParameters, tz)
	if err != nil {
		return out, &ParseError{Reason: "bad DTSTART", Cause: err}
	}
	out.Start = start
	out.AllDay = allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, _, eerr := parseICSTime(dtEnd.Value, dtEnd.ICalParameters, tz)
		if eerr != nil {
			return out, &ParseError{Reason: "bad DTEND", Cause: eerr}
		}
		out.End = end
	} else if allDay {
		// Date-only events without DTEND cover a single day.
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	if uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId); uidProp != nil && uidProp.Value != "" {
		out.UID = uidProp.Value
	} else {
		// Some custom feeds omit UID; derive a stable one.
		out.UID = uuid.NewSHA1(uuid.NameSpaceURL,
			[]byte(out.Summary+out.Start.UTC().Format(time.RFC3339))).String()
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	return out, nil
}

// unescapeText reverses RFC 5545 TEXT escaping so multi-line
// descriptions come out with real newlines.
func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// parseICSTime parses an ICS DATE or DATE-TIME value using the property
// parameters for context. The returned bool reports the all-day (date
// only) form.
func parseICSTime(v string, params map[string][]string, fallback *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, fmt.Errorf("empty time value")
	}

	dateOnly := !strings.Contains(v, "T")
	if params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			dateOnly = true
		}
	}

	if dateOnly {
		t, err := time.ParseInLocation("20060102", v, fallback)
		return t, true, err
	}

	// UTC form, e.g. 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	loc := fallback
	if params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			if l, err := time.LoadLocation(tzs[0]); err == nil {
				loc = l
			}
		}
	}

	t, err := time.ParseInLocation("20060102T150405", v, loc)
	return t, false, err
}
