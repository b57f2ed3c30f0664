// Package storage persists users, sources, content items and digests.
// Uniqueness of (user, content url) and (user, digest date) is enforced at
// insert time; a conflicting insert returns model.ErrDuplicate.
package storage

import (
	"context"
	"time"

	"daily-digest/internal/model"
)

type UserStore interface {
	ListUsers(ctx context.Context) ([]model.UserProfile, error)
	GetUser(ctx context.Context, id string) (model.UserProfile, error)
	PutUser(ctx context.Context, u model.UserProfile) error
	// UserIDByAlias resolves the local part of an inbound address.
	UserIDByAlias(ctx context.Context, alias string) (string, error)
}

type SourceStore interface {
	Sources(ctx context.Context, userID string) ([]model.Source, error)
	ActiveSources(ctx context.Context, userID string) ([]model.Source, error)
	GetSource(ctx context.Context, id string) (model.Source, error)
	PutSource(ctx context.Context, src model.Source) error
	// TouchSource records a successful fetch.
	TouchSource(ctx context.Context, id string, at time.Time) error
}

type KeyStore interface {
	// GetAPIKey returns the active key for provider or model.ErrNotFound.
	GetAPIKey(ctx context.Context, userID, provider string) (model.APIKey, error)
	PutAPIKey(ctx context.Context, k model.APIKey) error
}

type ContentStore interface {
	ContentExists(ctx context.Context, userID, contentURL string) (bool, error)
	// InsertContentItem fails with model.ErrDuplicate when the user already
	// has an item with the same non-empty URL.
	InsertContentItem(ctx context.Context, it model.ContentItem) error
	// ContentItems returns items created in [from, to), oldest first.
	ContentItems(ctx context.Context, userID string, from, to time.Time) ([]model.ContentItem, error)
}

type DigestStore interface {
	DigestExists(ctx context.Context, userID, date string) (bool, error)
	// CreateDigest fails with model.ErrDuplicate when a digest for the same
	// user and date exists. Existing digests are never overwritten.
	CreateDigest(ctx context.Context, d model.Digest) error
	GetDigest(ctx context.Context, userID, date string) (model.Digest, error)
	MarkDelivered(ctx context.Context, userID, date string, at time.Time) error
}

// InboxStore queues inbound emails per newsletter source. Reads are
// claim-based: claimed emails are hidden from other claims until the claim
// is acked (deleted) or released (returned to the head of the queue in
// their original order).
type InboxStore interface {
	PushInboundEmail(ctx context.Context, sourceID string, e model.InboundEmail) error
	ClaimInboundEmails(ctx context.Context, sourceID, claimID string, max int) ([]model.InboundEmail, error)
	AckInboundEmails(ctx context.Context, sourceID, claimID string) error
	ReleaseInboundEmails(ctx context.Context, sourceID, claimID string) error
}

// Store is the full persistence surface.
type Store interface {
	UserStore
	SourceStore
	KeyStore
	ContentStore
	DigestStore
	InboxStore
	Close() error
}
