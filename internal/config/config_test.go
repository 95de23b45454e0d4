package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubscription() SubscriptionConfig {
	return SubscriptionConfig{
		Name: "cabin",
		URL:  "https://example.com/feed.ics",
	}
}

func validConfig(subs ...SubscriptionConfig) *Config {
	cfg := DefaultConfig()
	cfg.Subscriptions = subs
	cfg.Normalize()
	return cfg
}

func TestNormalizeFillsSubscriptionDefaults(t *testing.T) {
	cfg := validConfig(validSubscription())
	sub := cfg.Subscriptions[0]

	assert.Equal(t, DefaultDays, sub.Days)
	assert.Equal(t, DefaultMaxEvents, sub.MaxEvents)
	assert.Equal(t, DefaultCheckin, sub.Checkin)
	assert.Equal(t, DefaultCheckout, sub.Checkout)
	assert.Equal(t, DefaultCodeLength, sub.CodeLength)
	assert.Equal(t, CodeGenDateBased, sub.CodeGeneration)
	assert.Equal(t, DefaultTimezone, sub.Timezone)
	assert.True(t, sub.SSLVerify())
	assert.True(t, sub.DropNonReserved())
	assert.Equal(t, []string{"Blocked"}, sub.BlockedKeywords)
	assert.Equal(t, []string{"Not available"}, sub.NotAvailableKeywords)
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	f := false
	sub := validSubscription()
	sub.Days = 30
	sub.Checkin = "15:00"
	sub.VerifySSL = &f
	sub.IgnoreNonReserved = &f

	cfg := validConfig(sub)
	got := cfg.Subscriptions[0]

	assert.Equal(t, 30, got.Days)
	assert.Equal(t, "15:00", got.Checkin)
	assert.False(t, got.SSLVerify())
	assert.False(t, got.DropNonReserved())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(validSubscription())
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsOddCodeLength(t *testing.T) {
	sub := validSubscription()
	sub.CodeLength = 5
	cfg := validConfig(sub)

	err := cfg.Validate()
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Field, "code_length")
}

func TestValidateRejectsCodeLengthOutOfRange(t *testing.T) {
	for _, length := range []int{2, 10} {
		sub := validSubscription()
		sub.CodeLength = length
		cfg := validConfig(sub)
		assert.Error(t, cfg.Validate(), "length %d", length)
	}
}

func TestValidateRejectsBadClock(t *testing.T) {
	sub := validSubscription()
	sub.Checkin = "25:00"
	cfg := validConfig(sub)

	err := cfg.Validate()
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Field, "checkin")
}

func TestValidateAllowsLastFourWithLongerCode(t *testing.T) {
	sub := validSubscription()
	sub.CodeGeneration = CodeGenLastFour
	sub.CodeLength = 6
	cfg := validConfig(sub)

	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := validConfig(validSubscription(), validSubscription())

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	sub := validSubscription()
	sub.Timezone = "Mars/Olympus_Mons"
	cfg := validConfig(sub)

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRefreshOutOfRange(t *testing.T) {
	sub := validSubscription()
	sub.RefreshMinutes = 2000
	cfg := validConfig(sub)

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLockStartSlot(t *testing.T) {
	sub := validSubscription()
	sub.Lock = &LockConfig{StartSlot: 0}
	cfg := validConfig(sub)

	assert.Error(t, cfg.Validate())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("16:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 16, Minute: 30}, c)

	for _, bad := range []string{"", "16", "16:60", "24:00", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := validConfig(validSubscription())
	cfg.Subscriptions[0].Lock = &LockConfig{StartSlot: 3, ShouldUpdateCode: true}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Subscriptions, 1)
	assert.Equal(t, "cabin", loaded.Subscriptions[0].Name)
	require.NotNil(t, loaded.Subscriptions[0].Lock)
	assert.Equal(t, 3, loaded.Subscriptions[0].Lock.StartSlot)
	assert.True(t, loaded.Subscriptions[0].Lock.ShouldUpdateCode)
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
