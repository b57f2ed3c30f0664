// Package seed loads users, sources and API keys from a YAML fixture.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"daily-digest/internal/model"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Users []User `yaml:"users"`
}

type User struct {
	model.UserProfile `yaml:",inline"`
	APIKeys           []Key    `yaml:"api_keys"`
	Sources           []Source `yaml:"sources"`
}

type Key struct {
	Provider string `yaml:"provider"`
	Key      string `yaml:"key"`
}

// Source defaults to active when Active is omitted.
type Source struct {
	ID      string              `yaml:"id"`
	Type    string              `yaml:"type"`
	Name    string              `yaml:"name"`
	Config  map[string]string   `yaml:"config"`
	Filters model.SourceFilters `yaml:"filters"`
	Active  *bool               `yaml:"active"`
}

// Store is what Apply writes to.
type Store interface {
	PutUser(ctx context.Context, u model.UserProfile) error
	PutSource(ctx context.Context, src model.Source) error
	PutAPIKey(ctx context.Context, k model.APIKey) error
}

// Load decodes and validates a fixture.
func Load(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return f, fmt.Errorf("%w: seed: %v", model.ErrParse, err)
	}
	for i, u := range f.Users {
		if strings.TrimSpace(u.ID) == "" {
			return f, fmt.Errorf("%w: seed: user #%d has no id", model.ErrConfiguration, i+1)
		}
		if _, err := u.DigestHour(); err != nil {
			return f, err
		}
		for _, s := range u.Sources {
			if strings.TrimSpace(s.Type) == "" {
				return f, fmt.Errorf("%w: seed: source %q of user %s has no type", model.ErrConfiguration, s.Name, u.ID)
			}
		}
	}
	return f, nil
}

// Counts reports what Apply wrote.
type Counts struct {
	Users, Sources, Keys int
}

// Apply writes the fixture. Sources without an id get a new one.
func Apply(ctx context.Context, st Store, f Fixture, now time.Time) (Counts, error) {
	var c Counts
	for _, u := range f.Users {
		if err := st.PutUser(ctx, u.UserProfile); err != nil {
			return c, fmt.Errorf("put user %s: %w", u.ID, err)
		}
		c.Users++
		for _, k := range u.APIKeys {
			key := model.APIKey{UserID: u.ID, Provider: strings.ToLower(k.Provider), Key: k.Key, IsActive: true}
			if err := st.PutAPIKey(ctx, key); err != nil {
				return c, fmt.Errorf("put key %s/%s: %w", u.ID, k.Provider, err)
			}
			c.Keys++
		}
		for _, s := range u.Sources {
			src := model.Source{
				ID:        s.ID,
				UserID:    u.ID,
				Type:      model.ParseSourceType(s.Type),
				Name:      s.Name,
				Config:    s.Config,
				Filters:   s.Filters,
				IsActive:  s.Active == nil || *s.Active,
				CreatedAt: now.UTC(),
			}
			if src.ID == "" {
				src.ID = uuid.NewString()
			}
			if src.Config == nil {
				src.Config = map[string]string{}
			}
			if err := st.PutSource(ctx, src); err != nil {
				return c, fmt.Errorf("put source %s: %w", src.ID, err)
			}
			c.Sources++
		}
	}
	return c, nil
}
