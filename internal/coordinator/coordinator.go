// Package coordinator owns the refresh loop for one calendar
// subscription: it is the only component with scheduling authority and
// the only writer of the externally-visible event snapshot.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/event"
	"github.com/tykeal/homeassistant-rental-control/internal/ics"
	"github.com/tykeal/homeassistant-rental-control/internal/lockslot"
	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
	"github.com/tykeal/homeassistant-rental-control/internal/metrics"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

// carriedCode is one entry of the carry-forward table that keeps door
// codes stable across refresh cycles.
type carriedCode struct {
	Code   string
	Source model.CodeSource
	Start  time.Time
	End    time.Time
}

// Status reports the observable health of the refresh loop.
type Status struct {
	Generation  uint64    `json:"generation"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitempty"`
	// Stale is set while the most recent cycle failed; the snapshot
	// still holds the last known good data.
	Stale bool `json:"stale"`
}

// Coordinator runs the fetch→parse→derive→filter→code→reconcile
// pipeline for a single subscription on demand. Cycles are strictly
// sequential; an overdue trigger while one is in flight is coalesced.
type Coordinator struct {
	cfg      config.SubscriptionConfig
	tz       *time.Location
	checkin  config.Clock
	checkout config.Clock

	fetcher *ics.Fetcher
	recon   *lockslot.Reconciler
	met     *metrics.Metrics

	// now is swappable for tests.
	now func() time.Time

	busy atomic.Bool

	mu        sync.RWMutex
	snap      *model.Snapshot
	lastErr   error
	lastErrAt time.Time
	prevCodes map[string]carriedCode
}

// New builds a Coordinator. mgr may be nil when the subscription has no
// lock-slot configuration.
func New(cfg config.SubscriptionConfig, fetcher *ics.Fetcher, mgr lockslot.Manager, met *metrics.Metrics) (*Coordinator, error) {
	tz, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		cfg:       cfg,
		tz:        tz,
		checkin:   cfg.CheckinClock(),
		checkout:  cfg.CheckoutClock(),
		fetcher:   fetcher,
		met:       met,
		now:       time.Now,
		prevCodes: make(map[string]carriedCode),
	}
	if cfg.Lock != nil && mgr != nil {
		c.recon = lockslot.NewReconciler(mgr, cfg.Lock.StartSlot, cfg.MaxEvents, cfg.EventPrefix)
	}
	return c, nil
}

// Name returns the subscription name.
func (c *Coordinator) Name() string { return c.cfg.Name }

// CronSpec returns the schedule for this subscription. A refresh
// interval of 0 means the fastest permitted cadence.
func (c *Coordinator) CronSpec() string {
	if c.cfg.RefreshMinutes == 0 {
		return "@every 30s"
	}
	return fmt.Sprintf("@every %dm", c.cfg.RefreshMinutes)
}

// Snapshot returns the current consistent event snapshot, or nil before
// the first successful refresh.
func (c *Coordinator) Snapshot() *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Status reports loop health for the presentation layer.
func (c *Coordinator) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{}
	if c.snap != nil {
		st.Generation = c.snap.Generation
		st.LastSuccess = c.snap.FetchedAt
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
		st.LastErrorAt = c.lastErrAt
		st.Stale = c.snap == nil || c.lastErrAt.After(c.snap.FetchedAt)
	}
	return st
}

// Refresh runs one full cycle. If a cycle is already in flight the call
// is coalesced and returns nil immediately. On failure the previous
// snapshot is retained untouched and the error recorded.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		appLog.Debug("refresh already in flight, coalescing", "subscription", c.cfg.Name)
		return nil
	}
	defer c.busy.Store(false)

	started := c.now()
	err := c.refresh(ctx)
	c.met.ObserveRefresh(c.cfg.Name, c.now().Sub(started), err)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		c.lastErrAt = c.now()
	} else {
		c.lastErr = nil
	}
	c.mu.Unlock()

	if err != nil {
		appLog.Error("refresh cycle failed, retaining previous snapshot", err, "subscription", c.cfg.Name)
	}
	return err
}

func (c *Coordinator) refresh(ctx context.Context) error {
	body, err := c.fetcher.Fetch(ctx, c.cfg.URL, c.cfg.SSLVerify())
	if err != nil {
		return err
	}

	feed, err := ics.Parse(body, c.tz)
	if err != nil {
		return err
	}

	now := c.now().In(c.tz)
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.tz)
	windowEnd := windowStart.AddDate(0, 0, c.cfg.Days)

	raw := ics.ExpandWindow(feed.Events, windowStart, windowEnd)
	events := c.buildEvents(raw, windowStart, windowEnd)

	// Platform feeds occasionally return an empty body on a bad day.
	// Never replace a populated snapshot with nothing; treat it as a
	// failed cycle and keep showing the last good data.
	c.mu.RLock()
	prev := c.snap
	c.mu.RUnlock()
	if prev != nil && len(prev.Events) > 1 && len(events) == 0 {
		return fmt.Errorf("feed returned no events but %d were tracked; keeping previous state", len(prev.Events))
	}

	c.assignCodes(events, now)

	var conflicts int
	if c.recon != nil {
		ptrs := make([]*model.Event, len(events))
		for i := range events {
			ptrs[i] = &events[i]
		}
		res, rerr := c.recon.Reconcile(ctx, ptrs)
		conflicts = len(res.Conflicts)
		c.met.AddConflicts(c.cfg.Name, conflicts)
		// A slot manager failure mid-pass leaves events half-merged;
		// keep the previous snapshot rather than publish them.
		if rerr != nil {
			return rerr
		}
	}

	// Publish wholesale so readers always see a consistent snapshot.
	c.mu.Lock()
	gen := uint64(1)
	if c.snap != nil {
		gen = c.snap.Generation + 1
	}
	c.snap = &model.Snapshot{
		Generation: gen,
		FetchedAt:  c.now(),
		Events:     events,
	}
	c.prevCodes = carryTable(events)
	c.mu.Unlock()

	c.met.SetEventsTracked(c.cfg.Name, len(events))
	appLog.Info("refresh complete",
		"subscription", c.cfg.Name,
		"events", len(events),
		"generation", gen,
		"conflicts", conflicts,
	)

	return nil
}

// buildEvents turns raw records into canonical events: window filtering,
// classification, stay-time override, slot-name resolution and guest
// extraction. Output is sorted by start and capped to MaxEvents.
func (c *Coordinator) buildEvents(raw []ics.RawEvent, windowStart, windowEnd time.Time) []model.Event {
	events := make([]model.Event, 0, len(raw))

	for _, re := range raw {
		// Ignore events long gone or beyond the lookahead window.
		if re.End.Before(windowStart.AddDate(0, 0, -30)) {
			continue
		}
		if re.Start.After(windowEnd) {
			continue
		}

		cat := event.Classify(re.Summary, c.cfg.BlockedKeywords, c.cfg.NotAvailableKeywords)
		if (cat == model.CategoryBlocked || cat == model.CategoryNotAvailable) && c.cfg.DropNonReserved() {
			appLog.Debug("dropping non-reservation event", "subscription", c.cfg.Name, "summary", re.Summary)
			continue
		}

		start, end := event.ApplyStayTimes(re.Start, re.End, re.AllDay, c.checkin, c.checkout, c.tz)

		// Skip stays that already ended, including ones ending exactly
		// at midnight of the window-start day.
		if end.Before(windowStart) || end.Equal(windowStart) {
			continue
		}
		if !end.After(start) {
			appLog.Debug("skipping event with non-positive stay window", "summary", re.Summary)
			continue
		}

		name, ok := event.ResolveSlotName(re.Summary, re.Description, "")

		summary := re.Summary
		if c.cfg.EventPrefix != "" {
			summary = c.cfg.EventPrefix + " " + summary
		}

		events = append(events, model.Event{
			UID:         re.UID,
			SlotName:    name,
			Unresolved:  !ok && cat != model.CategoryBlocked && cat != model.CategoryNotAvailable,
			Summary:     summary,
			Description: re.Description,
			Location:    re.Location,
			AllDay:      re.AllDay,
			Start:       start,
			End:         end,
			Category:    cat,
			Guest:       event.ExtractGuestInfo(re.Description),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	if len(events) > c.cfg.MaxEvents {
		events = events[:c.cfg.MaxEvents]
	}
	return events
}

// assignCodes gives every event a door code. Codes from the previous
// cycle are carried forward by slot name (UID for unresolved events)
// unless the stay dates moved enough to justify a new code.
func (c *Coordinator) assignCodes(events []model.Event, now time.Time) {
	c.mu.RLock()
	prevCodes := c.prevCodes
	c.mu.RUnlock()

	shouldUpdate := c.cfg.Lock != nil && c.cfg.Lock.ShouldUpdateCode

	for i := range events {
		ev := &events[i]

		if prev, ok := prevCodes[carryKey(ev)]; ok && prev.Code != "" {
			regen := shouldUpdate &&
				event.ShouldRegenerateCode(prev.Start, prev.End, ev.Start, ev.End, now)
			if !regen {
				ev.DoorCode = prev.Code
				ev.CodeSource = prev.Source
				continue
			}
			ev.CodeReissued = true
		}

		ev.DoorCode, ev.CodeSource = event.GenerateCode(event.CodeInput{
			Method:      c.cfg.CodeGeneration,
			Length:      c.cfg.CodeLength,
			Description: ev.Description,
			LastFour:    ev.Guest.LastFour,
			Start:       ev.Start,
			End:         ev.End,
		})
	}
}

func carryKey(ev *model.Event) string {
	if ev.SlotName != "" {
		return ev.SlotName
	}
	return ev.UID
}

// carryTable rebuilds the immutable carry-forward map from the events
// as published, including any codes adopted from the external slots.
func carryTable(events []model.Event) map[string]carriedCode {
	table := make(map[string]carriedCode, len(events))
	for i := range events {
		ev := &events[i]
		if ev.DoorCode == "" {
			continue
		}
		table[carryKey(ev)] = carriedCode{
			Code:   ev.DoorCode,
			Source: ev.CodeSource,
			Start:  ev.Start,
			End:    ev.End,
		}
	}
	return table
}
