package lockslot

import (
	"context"
	"strings"
	"time"

	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

// Conflict reports a slot whose contents diverge from the calendar in a
// way the reconciler refuses to resolve by overwriting. Conflicts are
// non-fatal; the slot is left untouched. Index is -1 when the conflict
// is not tied to any slot (duplicate event names).
type Conflict struct {
	Index  int
	Name   string
	Reason string
}

// Result summarizes one reconciliation pass.
type Result struct {
	Written   []int
	Updated   []int
	Cleared   []int
	Conflicts []Conflict
}

// Reconciler maps the current event window onto a fixed range of
// external slots: event i in the sorted current/upcoming list goes to
// slot startSlot+i. It remembers which slot indices it has written so
// manually-managed slots are never clobbered.
type Reconciler struct {
	mgr       Manager
	startSlot int
	maxSlots  int
	prefix    string

	owned map[int]bool
}

// NewReconciler creates a Reconciler over slots
// [startSlot, startSlot+maxSlots).
func NewReconciler(mgr Manager, startSlot, maxSlots int, prefix string) *Reconciler {
	return &Reconciler{
		mgr:       mgr,
		startSlot: startSlot,
		maxSlots:  maxSlots,
		prefix:    prefix,
		owned:     make(map[int]bool),
	}
}

// Reconcile applies the slot state machine for every index in range.
// events must already be sorted and capped to the tracked window; the
// events themselves may be modified by the external-override merge (the
// slot manager is the source of truth for check-in/out time-of-day and
// door code once initially set).
func (r *Reconciler) Reconcile(ctx context.Context, events []*model.Event) (Result, error) {
	var res Result

	eligible, dupes := r.eligible(events)
	res.Conflicts = append(res.Conflicts, dupes...)

	for i := 0; i < r.maxSlots; i++ {
		idx := r.startSlot + i

		ext, err := r.mgr.ReadSlot(ctx, idx)
		if err != nil {
			return res, err
		}

		if i >= len(eligible) {
			// No event maps here: clear our own leftovers, never touch
			// a slot somebody else populated.
			if ext.Empty() {
				continue
			}
			if !r.owned[idx] {
				res.Conflicts = append(res.Conflicts, Conflict{
					Index:  idx,
					Name:   ext.Name,
					Reason: "occupied slot not managed by this subscription",
				})
				continue
			}
			if err := r.mgr.ClearSlot(ctx, idx); err != nil {
				return res, err
			}
			delete(r.owned, idx)
			res.Cleared = append(res.Cleared, idx)
			continue
		}

		ev := eligible[i]
		desired := Slot{
			Name:  r.displayName(ev.SlotName),
			Code:  ev.DoorCode,
			Start: ev.Start,
			End:   ev.End,
		}

		switch {
		case ext.Empty():
			if err := r.mgr.WriteSlot(ctx, idx, desired); err != nil {
				return res, err
			}
			r.owned[idx] = true
			res.Written = append(res.Written, idx)

		case r.slotMatchesEvent(ext, ev):
			// Same reservation. Adopt the externally-set code and
			// times of day, then push back any date-level drift.
			mergeExternal(ev, ext)
			desired.Code = ev.DoorCode
			desired.Start = ev.Start
			desired.End = ev.End
			if slotDiffers(ext, desired) {
				if err := r.mgr.WriteSlot(ctx, idx, desired); err != nil {
					return res, err
				}
				res.Updated = append(res.Updated, idx)
			}
			r.owned[idx] = true

		case r.owned[idx]:
			// A different reservation of ours previously sat here; the
			// window shifted. Safe to overwrite.
			if err := r.mgr.WriteSlot(ctx, idx, desired); err != nil {
				return res, err
			}
			res.Updated = append(res.Updated, idx)

		default:
			res.Conflicts = append(res.Conflicts, Conflict{
				Index:  idx,
				Name:   ext.Name,
				Reason: "slot contents do not correspond to any tracked event",
			})
		}
	}

	for _, c := range res.Conflicts {
		appLog.Info("reconciliation conflict", "slot", c.Index, "name", c.Name, "reason", c.Reason)
	}

	return res, nil
}

// eligible filters out events that cannot take part in reconciliation
// (unresolved names, non-reservations) and flags duplicate slot names.
// The first holder of a name wins; later duplicates are reported.
func (r *Reconciler) eligible(events []*model.Event) ([]*model.Event, []Conflict) {
	out := make([]*model.Event, 0, len(events))
	var conflicts []Conflict
	seen := make(map[string]bool)

	for _, ev := range events {
		if ev.SlotName == "" || ev.Unresolved {
			continue
		}
		if seen[ev.SlotName] {
			conflicts = append(conflicts, Conflict{
				Index:  -1,
				Name:   ev.SlotName,
				Reason: "duplicate slot name in event window",
			})
			continue
		}
		seen[ev.SlotName] = true
		out = append(out, ev)
	}
	if len(out) > r.maxSlots {
		out = out[:r.maxSlots]
	}
	return out, conflicts
}

func (r *Reconciler) displayName(slotName string) string {
	if r.prefix != "" {
		return r.prefix + " " + slotName
	}
	return slotName
}

// slotMatchesEvent compares the external slot name against the event's
// slot name, tolerating the configured display prefix.
func (r *Reconciler) slotMatchesEvent(ext Slot, ev *model.Event) bool {
	name := ext.Name
	if r.prefix != "" {
		name = strings.TrimPrefix(name, r.prefix+" ")
	}
	return name == ev.SlotName
}

// mergeExternal applies the documented precedence table: the external
// slot wins for door code and check-in/check-out time-of-day, the
// calendar wins for everything else (name, dates). A code reissued this
// cycle is the exception; the slot still holds the superseded code, so
// the internal one wins and gets written out.
func mergeExternal(ev *model.Event, ext Slot) {
	if ext.Code != "" && ext.Code != ev.DoorCode && !ev.CodeReissued {
		ev.DoorCode = ext.Code
		ev.CodeSource = model.CodeExternal
	}
	if !ext.Start.IsZero() {
		ev.Start = combineDateAndClock(ev.Start, ext.Start)
	}
	if !ext.End.IsZero() {
		ev.End = combineDateAndClock(ev.End, ext.End)
	}
}

// combineDateAndClock keeps date (and zone) from the calendar value and
// time-of-day from the external value.
func combineDateAndClock(internal, external time.Time) time.Time {
	loc := internal.Location()
	extLocal := external.In(loc)
	return time.Date(internal.Year(), internal.Month(), internal.Day(),
		extLocal.Hour(), extLocal.Minute(), extLocal.Second(), 0, loc)
}

func slotDiffers(a, b Slot) bool {
	return a.Name != b.Name || a.Code != b.Code ||
		!a.Start.Equal(b.Start) || !a.End.Equal(b.End)
}
