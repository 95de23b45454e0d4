package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/model"
)

func TestGenerateCodeDateBased(t *testing.T) {
	in := CodeInput{
		Method: config.CodeGenDateBased,
		Length: 4,
		Start:  time.Date(2099, 3, 5, 16, 0, 0, 0, time.UTC),
		End:    time.Date(2099, 3, 10, 11, 0, 0, 0, time.UTC),
	}

	code, source := GenerateCode(in)
	assert.Equal(t, "0510", code)
	assert.Equal(t, model.CodeDateBased, source)

	in.Length = 8
	code, _ = GenerateCode(in)
	assert.Equal(t, "05100303", code)

	// Same stay window always yields the same code.
	again, _ := GenerateCode(in)
	assert.Equal(t, code, again)

	// A shifted end date yields a different code.
	in.End = in.End.AddDate(0, 0, 1)
	shifted, _ := GenerateCode(in)
	assert.NotEqual(t, code, shifted)
}

func TestGenerateCodeStaticRandom(t *testing.T) {
	in := CodeInput{
		Method:      config.CodeGenStaticRandom,
		Length:      6,
		Description: "Reservation URL: https://example.com/r/1",
	}

	code, source := GenerateCode(in)
	assert.Equal(t, model.CodeStaticRandom, source)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}

	again, _ := GenerateCode(in)
	assert.Equal(t, code, again)

	in.Description = "Reservation URL: https://example.com/r/2"
	other, _ := GenerateCode(in)
	assert.NotEqual(t, code, other)
}

func TestGenerateCodeStaticRandomEmptyDescriptionFallsBack(t *testing.T) {
	in := CodeInput{
		Method: config.CodeGenStaticRandom,
		Length: 4,
		Start:  time.Date(2099, 3, 5, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2099, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	code, source := GenerateCode(in)
	assert.Equal(t, model.CodeDateBased, source)
	assert.Equal(t, "0510", code)
}

func TestGenerateCodeLastFour(t *testing.T) {
	in := CodeInput{
		Method:   config.CodeGenLastFour,
		Length:   4,
		LastFour: "5309",
		Start:    time.Date(2099, 3, 5, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2099, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	code, source := GenerateCode(in)
	assert.Equal(t, "5309", code)
	assert.Equal(t, model.CodeLastFour, source)

	// Without a phone-derived value the date fallback kicks in.
	in.LastFour = ""
	code, source = GenerateCode(in)
	assert.Equal(t, model.CodeDateBased, source)
	assert.Equal(t, "0510", code)

	// Longer configured lengths zero-pad the four digits.
	in.LastFour = "5309"
	in.Length = 6
	code, source = GenerateCode(in)
	assert.Equal(t, "005309", code)
	assert.Equal(t, model.CodeLastFour, source)
}

func TestShouldRegenerateCode(t *testing.T) {
	now := time.Date(2099, 3, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2099, 3, 5, 16, 0, 0, 0, time.UTC)
	end := time.Date(2099, 3, 10, 11, 0, 0, 0, time.UTC)

	// Unchanged dates keep the code.
	assert.False(t, ShouldRegenerateCode(start, end, start, end, now))

	// Time-of-day drift within the same date keeps the code.
	assert.False(t, ShouldRegenerateCode(start, end, start.Add(2*time.Hour), end, now))

	// A future start moved by a day regenerates.
	assert.True(t, ShouldRegenerateCode(start, end, start.AddDate(0, 0, 1), end, now))

	// A future end moved by a day regenerates.
	assert.True(t, ShouldRegenerateCode(start, end, start, end.AddDate(0, 0, 2), now))

	// A start moved into the past never regenerates; the guest may
	// already be using the code.
	late := time.Date(2099, 3, 7, 12, 0, 0, 0, time.UTC)
	assert.False(t, ShouldRegenerateCode(start, end, start.AddDate(0, 0, 1), end, late))
}
