package model

import (
	"fmt"
	"strings"
	"time"
)

// DigestFormat controls how a user receives digests.
type DigestFormat string

const (
	FormatEmail DigestFormat = "email"
	FormatWeb   DigestFormat = "web"
	FormatBoth  DigestFormat = "both"
)

// WantsEmail reports whether digests should go through delivery channels.
// An unset format means email.
func (f DigestFormat) WantsEmail() bool {
	return f == "" || f == FormatEmail || f == FormatBoth
}

// UserProfile holds per-user scheduling and preference settings.
type UserProfile struct {
	ID           string          `json:"id" yaml:"id"`
	Email        string          `json:"email" yaml:"email"`
	Alias        string          `json:"alias" yaml:"alias"`
	Timezone     string          `json:"timezone" yaml:"timezone"`
	DigestTime   string          `json:"digest_time" yaml:"digest_time"` // HH:MM
	DigestFormat DigestFormat    `json:"digest_format" yaml:"digest_format"`
	Preferences  UserPreferences `json:"preferences" yaml:"preferences"`
}

// UserPreferences are optional user settings.
type UserPreferences struct {
	DigestLength        string  `json:"digest_length,omitempty" yaml:"digest_length"`
	ImportanceThreshold float64 `json:"importance_threshold,omitempty" yaml:"importance_threshold"`
	PreferredLLM        string  `json:"preferred_llm,omitempty" yaml:"preferred_llm"`
}

// Provider returns the preferred LLM provider, defaulting to openai.
func (u UserProfile) Provider() string {
	p := strings.ToLower(strings.TrimSpace(u.Preferences.PreferredLLM))
	if p == "" {
		return "openai"
	}
	return p
}

// Location resolves the user's timezone, falling back to UTC.
func (u UserProfile) Location() *time.Location {
	if strings.TrimSpace(u.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DigestHour parses the hour component of DigestTime ("HH:MM" or "HH:MM:SS").
func (u UserProfile) DigestHour() (int, error) {
	t := strings.TrimSpace(u.DigestTime)
	if t == "" {
		return 0, fmt.Errorf("%w: empty digest_time for user %s", ErrConfiguration, u.ID)
	}
	var h, m int
	if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: invalid digest_time %q for user %s", ErrConfiguration, t, u.ID)
	}
	return h, nil
}

// DueAt reports whether the user's digest hour matches now in their timezone.
func (u UserProfile) DueAt(now time.Time) bool {
	h, err := u.DigestHour()
	if err != nil {
		return false
	}
	return now.In(u.Location()).Hour() == h
}

// LocalDate returns the user's calendar date at now.
func (u UserProfile) LocalDate(now time.Time) string {
	return now.In(u.Location()).Format(DateLayout)
}

// APIKey is a user's credential for one LLM provider.
type APIKey struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	Provider string `json:"provider" yaml:"provider"`
	Key      string `json:"key" yaml:"key"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// InboundEmail is the payload accepted by the email webhook.
type InboundEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
	Date    string `json:"date"`
}

// Body returns the HTML body when present, else the text body.
func (e InboundEmail) Body() string {
	if strings.TrimSpace(e.HTML) != "" {
		return e.HTML
	}
	return e.Text
}
