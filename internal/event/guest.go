package event

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

// Field matchers over the free-text description. Every extraction is
// best-effort: absence of a match is expected, not an error, and no
// field's extraction depends on another's.
var (
	reEmail    = regexp.MustCompile(`Email:\s+(\S+@\S+)`)
	reLastFour = regexp.MustCompile(`(?i)\(?Last 4 Digits\)?:\s+(\d{4})`)
	rePhone    = regexp.MustCompile(`Phone(?: Number)?:\s+(\+?[\d.\-() ]{9,})`)
	reGuests   = regexp.MustCompile(`(?m)Guests:\s+(\d+)$`)
	reAdults   = regexp.MustCompile(`(?m)Adults:\s+(\d+)$`)
	reChildren = regexp.MustCompile(`(?m)Children:\s+(\d+)$`)
	reURL      = regexp.MustCompile(`(?m)(https?://\S+)`)
	reNonDigit = regexp.MustCompile(`\D`)
)

// ExtractGuestInfo pulls the optional guest attributes out of an event
// description.
func ExtractGuestInfo(description string) model.GuestInfo {
	if description == "" {
		return model.GuestInfo{}
	}
	return model.GuestInfo{
		Email:          extractEmail(description),
		Phone:          extractPhone(description),
		LastFour:       extractLastFour(description),
		NumGuests:      extractNumGuests(description),
		ReservationURL: extractURL(description),
	}
}

func extractEmail(description string) string {
	if m := reEmail.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}

func extractPhone(description string) string {
	if m := rePhone.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractLastFour prefers an explicit "Last 4 Digits" field; Airbnb
// provides one, Guesty sometimes only a phone number, in which case the
// last four digits of the phone are used instead.
func extractLastFour(description string) string {
	if m := reLastFour.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	phone := reNonDigit.ReplaceAllString(extractPhone(description), "")
	if len(phone) >= 4 {
		return phone[len(phone)-4:]
	}
	return ""
}

// extractNumGuests reads a direct "Guests" count, falling back to the
// sum of "Adults" and "Children". Returns 0 when nothing matches.
func extractNumGuests(description string) int {
	if m := reGuests.FindStringSubmatch(description); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	guests := 0
	if m := reAdults.FindStringSubmatch(description); m != nil {
		n, _ := strconv.Atoi(m[1])
		guests += n
	}
	if m := reChildren.FindStringSubmatch(description); m != nil {
		n, _ := strconv.Atoi(m[1])
		guests += n
	}
	return guests
}

func extractURL(description string) string {
	if m := reURL.FindStringSubmatch(description); m != nil {
		return m[1]
	}
	return ""
}
