// Package event derives reservation metadata from raw calendar records:
// slot names, guest attributes, stay times, categories and door codes.
// Each derivation is a small independent matcher so the pieces can be
// tested in isolation.
package event

import (
	"regexp"
	"strings"
)

// Platform heuristics, compiled once. Rental platforms redact guest
// identity to different degrees; these recover a stable, human-readable
// name wherever the data permits.
var (
	reAirbnbCode  = regexp.MustCompile(`[A-Z][A-Z0-9]{9}`)
	reNameSuffix  = regexp.MustCompile(` - (.*)$`)
	reTripadvisor = regexp.MustCompile(`Tripadvisor.*: (.*)`)
	reClosed      = regexp.MustCompile(`\s*CLOSED - (.*)`)
	reReservation = regexp.MustCompile(`^Reservation (.*)`)
	reGuesty      = regexp.MustCompile(`-(.*)-.*-`)
)

// ResolveSlotName determines the uniqueness-bearing name for an event
// from its summary and description. prefix, when configured, is stripped
// from the summary before matching. ok is false when no name can be
// recovered (blocked/unavailable entries, or a bare "Reserved" summary
// with no confirmation code in the description).
func ResolveSlotName(summary, description, prefix string) (string, bool) {
	name := summary
	if prefix != "" {
		name = strings.TrimPrefix(name, prefix+" ")
	}

	// Blocked and unavailable entries carry no guest identity.
	if strings.Contains(name, "Not available") || strings.Contains(name, "Blocked") {
		return "", false
	}

	// Airbnb and VRBO
	if strings.Contains(name, "Reserved") {
		if name == "Reserved" {
			// Airbnb redacts the summary entirely; the description may
			// still hold the 10-character confirmation code.
			if m := reAirbnbCode.FindString(description); m != "" {
				return strings.TrimSpace(m), true
			}
			return "", false
		}
		if m := reNameSuffix.FindStringSubmatch(name); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}

	// Tripadvisor
	if strings.Contains(name, "Tripadvisor") {
		if m := reTripadvisor.FindStringSubmatch(name); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}

	// Booking.com
	if strings.Contains(name, "CLOSED") {
		if m := reClosed.FindStringSubmatch(name); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}

	// Guesty API
	if m := reReservation.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	// Guesty
	if m := reGuesty.FindStringSubmatch(name); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	// Degenerate case: use the summary as-is. Likely a custom calendar;
	// duplicate names are the operator's responsibility and show up as
	// reconciliation conflicts rather than undefined behavior.
	return strings.TrimSpace(name), true
}
