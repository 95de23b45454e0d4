package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

const airbnbDescription = `Reservation URL: https://www.airbnb.com/hosting/reservations/details/HMABCDEF12
Phone Number (Last 4 Digits): 1234
Email: jane.doe@example.com
Guests: 3`

func TestExtractGuestInfoAirbnb(t *testing.T) {
	info := ExtractGuestInfo(airbnbDescription)

	assert.Equal(t, "jane.doe@example.com", info.Email)
	assert.Equal(t, "1234", info.LastFour)
	assert.Equal(t, 3, info.NumGuests)
	assert.Equal(t, "https://www.airbnb.com/hosting/reservations/details/HMABCDEF12", info.ReservationURL)
}

func TestExtractGuestInfoPhoneFallsBackToLastFour(t *testing.T) {
	info := ExtractGuestInfo("Phone Number: +1 (555) 867-5309\nGuests: 2")

	assert.Equal(t, "+1 (555) 867-5309", info.Phone)
	assert.Equal(t, "5309", info.LastFour)
}

func TestExtractGuestInfoExplicitLastFourWinsOverPhone(t *testing.T) {
	info := ExtractGuestInfo("Phone Number: +1 555-867-5309\nLast 4 Digits: 4321")

	assert.Equal(t, "4321", info.LastFour)
}

func TestExtractGuestInfoAdultsPlusChildren(t *testing.T) {
	info := ExtractGuestInfo("Adults: 2\nChildren: 1")
	assert.Equal(t, 3, info.NumGuests)

	info = ExtractGuestInfo("Adults: 2")
	assert.Equal(t, 2, info.NumGuests)
}

func TestExtractGuestInfoFieldOrderIrrelevant(t *testing.T) {
	a := ExtractGuestInfo("Email: g@example.com\nGuests: 4\nPhone: 555.867.5309")
	b := ExtractGuestInfo("Phone: 555.867.5309\nEmail: g@example.com\nGuests: 4")

	assert.Equal(t, a, b)
}

func TestExtractGuestInfoMissingFields(t *testing.T) {
	assert.Equal(t, model.GuestInfo{}, ExtractGuestInfo(""))

	info := ExtractGuestInfo("nothing useful in here")
	assert.Empty(t, info.Email)
	assert.Empty(t, info.Phone)
	assert.Empty(t, info.LastFour)
	assert.Zero(t, info.NumGuests)
	assert.Empty(t, info.ReservationURL)
}

func TestExtractGuestInfoGuestsMustBeLineAnchored(t *testing.T) {
	// "Guests:" buried in prose with trailing text must not match.
	info := ExtractGuestInfo("Guests: 3 people are arriving")
	assert.Zero(t, info.NumGuests)
}
