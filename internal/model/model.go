package model

import "time"

// Category classifies a calendar entry by what it represents on the
// booking platform side.
type Category string

const (
	CategoryReserved     Category = "reserved"
	CategoryBlocked      Category = "blocked"
	CategoryNotAvailable Category = "not_available"
	CategoryOther        Category = "other"
)

// CodeSource records which generator (or external override) produced the
// door code currently attached to an event.
type CodeSource string

const (
	CodeDateBased    CodeSource = "date_based"
	CodeStaticRandom CodeSource = "static_random"
	CodeLastFour     CodeSource = "last_four"
	// CodeExternal marks a code adopted back from the lock-slot manager.
	CodeExternal CodeSource = "external"
)

// GuestInfo holds the optional attributes extracted from an event
// description. Zero values mean "not present in the feed".
type GuestInfo struct {
	Email          string
	Phone          string
	LastFour       string
	NumGuests      int
	ReservationURL string
}

// Event is the canonical, fully-processed representation of one
// reservation or booking window. It is rebuilt from the raw ICS data on
// every refresh cycle; nothing mutates it in place across cycles.
type Event struct {
	UID      string
	SlotName string
	// Unresolved is set when the summary was a bare platform placeholder
	// (e.g. Airbnb's "Reserved") and no stable name could be recovered.
	// Unresolved events stay visible but are skipped by reconciliation.
	Unresolved bool

	Summary     string
	Description string
	Location    string

	AllDay bool
	Start  time.Time
	End    time.Time

	Category Category

	DoorCode   string
	CodeSource CodeSource
	// CodeReissued is set when this refresh cycle replaced a previously
	// assigned code. Reconciliation then pushes the new code out to the
	// slot instead of adopting the slot's old one.
	CodeReissued bool

	Guest GuestInfo
}

// ETA returns the time remaining until check-in, broken down the way the
// presentation layer expects it. ok is false once the stay has started.
func (e *Event) ETA(now time.Time) (days, hours, minutes int, ok bool) {
	td := e.Start.Sub(now)
	if td < 0 {
		return 0, 0, 0, false
	}
	return int(td.Hours()) / 24, int(td.Hours()), int(td.Minutes()), true
}

// Snapshot is the externally-visible refresh state for one subscription.
// It is replaced wholesale on every successful refresh so readers always
// observe a consistent view.
type Snapshot struct {
	// Generation increases by one per successful refresh and lets
	// collaborators detect stale reconciliation passes.
	Generation uint64
	FetchedAt  time.Time
	Events     []Event
}

// Next returns the first event that has not yet ended, or nil.
func (s *Snapshot) Next(now time.Time) *Event {
	if s == nil {
		return nil
	}
	for i := range s.Events {
		if s.Events[i].End.After(now) {
			return &s.Events[i]
		}
	}
	return nil
}
