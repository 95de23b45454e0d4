package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Structural checks use validator tags; rules the tags
// cannot express (clock syntax, even code length) live in Validate.

// CodeGeneration selects the door-code derivation strategy.
type CodeGeneration string

const (
	CodeGenDateBased    CodeGeneration = "date_based"
	CodeGenStaticRandom CodeGeneration = "static_random"
	CodeGenLastFour     CodeGeneration = "last_four"
)

const (
	DefaultCheckin    = "16:00"
	DefaultCheckout   = "11:00"
	DefaultDays       = 365
	DefaultMaxEvents  = 5
	DefaultCodeLength = 4
	// DefaultRefreshMinutes spaces out calendar polls; 0 means the fastest
	// permitted cadence (~30s).
	DefaultRefreshMinutes = 2
	// DefaultTimezone is applied when a feed carries no X-WR-TIMEZONE and
	// the subscription does not override it. Some platforms emit local
	// times without declaring a zone; treat this default as a
	// compatibility knob, not a guess at platform intent.
	DefaultTimezone = "UTC"
)

// LockConfig enables lock-slot reconciliation for a subscription.
type LockConfig struct {
	// StartSlot is the first external slot index this subscription owns.
	StartSlot int `yaml:"start_slot" validate:"min=1"`
	// ShouldUpdateCode permits regenerating an assigned code when the
	// reservation dates shift by at least a day into the future.
	ShouldUpdateCode bool `yaml:"should_update_code"`
}

// SubscriptionConfig describes one calendar subscription. It is owned by
// the host configuration and read-only to the refresh pipeline.
type SubscriptionConfig struct {
	Name      string `yaml:"name" validate:"required"`
	URL       string `yaml:"url" validate:"required,url"`
	VerifySSL *bool  `yaml:"verify_ssl,omitempty"`

	RefreshMinutes int `yaml:"refresh_minutes" validate:"min=0,max=1440"`
	Days           int `yaml:"days" validate:"min=1,max=365"`
	MaxEvents      int `yaml:"max_events" validate:"min=1"`

	Checkin  string `yaml:"checkin"`
	Checkout string `yaml:"checkout"`

	CodeLength     int            `yaml:"code_length"`
	CodeGeneration CodeGeneration `yaml:"code_generation" validate:"oneof=date_based static_random last_four"`

	IgnoreNonReserved *bool  `yaml:"ignore_non_reserved,omitempty"`
	EventPrefix       string `yaml:"event_prefix"`

	// Timezone is the IANA zone used when the feed declares none.
	Timezone string `yaml:"timezone"`

	// Keyword sets for the event filter.
	BlockedKeywords      []string `yaml:"blocked_keywords"`
	NotAvailableKeywords []string `yaml:"not_available_keywords"`

	Lock *LockConfig `yaml:"lock,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// FetchTimeoutSeconds bounds a single calendar HTTP request.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" validate:"min=0,max=300"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" validate:"dive"`
}

// ValidationError reports a bad configuration value. These surface at
// load time, never during a background refresh cycle.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Clock is a parsed HH:MM wall-clock time.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8080",
		LogLevel:            "info",
		LogFormat:           "json",
		FetchTimeoutSeconds: 30,
		Subscriptions:       []SubscriptionConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 30
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		c.Subscriptions[i].normalize()
	}
}

func (s *SubscriptionConfig) normalize() {
	if s.Days <= 0 {
		s.Days = DefaultDays
	}
	if s.MaxEvents <= 0 {
		s.MaxEvents = DefaultMaxEvents
	}
	if s.Checkin == "" {
		s.Checkin = DefaultCheckin
	}
	if s.Checkout == "" {
		s.Checkout = DefaultCheckout
	}
	if s.CodeLength == 0 {
		s.CodeLength = DefaultCodeLength
	}
	if s.CodeGeneration == "" {
		s.CodeGeneration = CodeGenDateBased
	}
	if s.RefreshMinutes < 0 {
		s.RefreshMinutes = DefaultRefreshMinutes
	}
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}
	if s.BlockedKeywords == nil {
		s.BlockedKeywords = []string{"Blocked"}
	}
	if s.NotAvailableKeywords == nil {
		s.NotAvailableKeywords = []string{"Not available"}
	}
	if s.VerifySSL == nil {
		t := true
		s.VerifySSL = &t
	}
	if s.IgnoreNonReserved == nil {
		t := true
		s.IgnoreNonReserved = &t
	}
}

// SSLVerify reports whether certificate verification is enabled.
func (s *SubscriptionConfig) SSLVerify() bool {
	return s.VerifySSL == nil || *s.VerifySSL
}

// DropNonReserved reports whether blocked/not-available events are
// removed from the visible list.
func (s *SubscriptionConfig) DropNonReserved() bool {
	return s.IgnoreNonReserved == nil || *s.IgnoreNonReserved
}

// CheckinClock returns the parsed check-in time. normalize/Validate
// guarantee it parses.
func (s *SubscriptionConfig) CheckinClock() Clock {
	c, _ := ParseClock(s.Checkin)
	return c
}

// CheckoutClock returns the parsed check-out time.
func (s *SubscriptionConfig) CheckoutClock() Clock {
	c, _ := ParseClock(s.Checkout)
	return c
}

// Location resolves the subscription's fallback timezone.
func (s *SubscriptionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// Validate checks the whole configuration, returning the first problem
// as a *ValidationError.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{
				Field:  verrs[0].Namespace(),
				Reason: fmt.Sprintf("failed %q constraint", verrs[0].Tag()),
			}
		}
		return err
	}

	names := make(map[string]bool, len(c.Subscriptions))
	for i := range c.Subscriptions {
		s := &c.Subscriptions[i]
		field := fmt.Sprintf("subscriptions[%d]", i)

		if names[s.Name] {
			return &ValidationError{Field: field + ".name", Reason: "duplicate subscription name"}
		}
		names[s.Name] = true

		if _, err := ParseClock(s.Checkin); err != nil {
			return &ValidationError{Field: field + ".checkin", Reason: err.Error()}
		}
		if _, err := ParseClock(s.Checkout); err != nil {
			return &ValidationError{Field: field + ".checkout", Reason: err.Error()}
		}
		if s.CodeLength < 4 || s.CodeLength > 8 || s.CodeLength%2 != 0 {
			return &ValidationError{Field: field + ".code_length", Reason: "must be an even number between 4 and 8"}
		}
		if _, err := s.Location(); err != nil {
			return &ValidationError{Field: field + ".timezone", Reason: err.Error()}
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed,
//     write a default config with 0600 perms, and return the default.
//   - If the file exists: read YAML, unmarshal, normalize defaults, and
//     validate.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".rentalctl-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	return nil
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
