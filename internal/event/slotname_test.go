package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSlotName(t *testing.T) {
	tests := []struct {
		name        string
		summary     string
		description string
		prefix      string
		want        string
		wantOK      bool
	}{
		{
			name:    "airbnb and vrbo named",
			summary: "Reserved - Jane Doe",
			want:    "Jane Doe",
			wantOK:  true,
		},
		{
			name:        "airbnb redacted with confirmation code",
			summary:     "Reserved",
			description: "Reservation URL: https://www.airbnb.com/hosting/reservations/details/HMABCDEF12",
			want:        "HMABCDEF12",
			wantOK:      true,
		},
		{
			name:        "airbnb redacted without code",
			summary:     "Reserved",
			description: "no code present",
			wantOK:      false,
		},
		{
			name:    "tripadvisor",
			summary: "Tripadvisor (Flipkey): John Smith",
			want:    "John Smith",
			wantOK:  true,
		},
		{
			name:    "booking.com closed",
			summary: "CLOSED - Booking.com guest",
			want:    "Booking.com guest",
			wantOK:  true,
		},
		{
			name:    "guesty api",
			summary: "Reservation GST-12345",
			want:    "GST-12345",
			wantOK:  true,
		},
		{
			name:    "guesty dashed",
			summary: "-Jane Doe-GST123-",
			want:    "Jane Doe",
			wantOK:  true,
		},
		{
			name:    "not available carries no identity",
			summary: "Not available",
			wantOK:  false,
		},
		{
			name:    "blocked carries no identity",
			summary: "Airbnb (Blocked)",
			wantOK:  false,
		},
		{
			name:    "prefix stripped before matching",
			summary: "Cabin Reserved - Jane Doe",
			prefix:  "Cabin",
			want:    "Jane Doe",
			wantOK:  true,
		},
		{
			name:    "custom calendar uses summary verbatim",
			summary: "Smith family stay",
			want:    "Smith family stay",
			wantOK:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveSlotName(tt.summary, tt.description, tt.prefix)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
