// Package inbound accepts forwarded newsletter emails and queues them on the
// recipient's newsletter source. Link extraction happens later, when the
// source is fetched.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"daily-digest/internal/config"
	"daily-digest/internal/logging"
	"daily-digest/internal/model"

	"github.com/google/uuid"
)

// Store is the persistence the ingestor needs.
type Store interface {
	UserIDByAlias(ctx context.Context, alias string) (string, error)
	Sources(ctx context.Context, userID string) ([]model.Source, error)
	PutSource(ctx context.Context, src model.Source) error
	PushInboundEmail(ctx context.Context, sourceID string, e model.InboundEmail) error
}

type Ingestor struct {
	store      Store
	domain     string
	sourceName string
	Now        func() time.Time
}

func New(store Store, cfg config.InboundConfig) *Ingestor {
	return &Ingestor{
		store:      store,
		domain:     strings.ToLower(strings.TrimSpace(cfg.Domain)),
		sourceName: cfg.SourceName,
		Now:        time.Now,
	}
}

// Address splits a recipient into lowercased alias and domain. Display names
// ("Alice <alice@digest.app>") are accepted.
func Address(to string) (alias, domain string) {
	to = strings.TrimSpace(to)
	if a, err := mail.ParseAddress(to); err == nil {
		to = a.Address
	}
	at := strings.LastIndex(to, "@")
	if at < 0 {
		return strings.ToLower(to), ""
	}
	return strings.ToLower(to[:at]), strings.ToLower(to[at+1:])
}

// Accept resolves the recipient and queues e. It returns the newsletter
// source id. Unknown recipients yield model.ErrNotFound.
func (in *Ingestor) Accept(ctx context.Context, e model.InboundEmail) (string, error) {
	alias, domain := Address(e.To)
	if alias == "" {
		return "", fmt.Errorf("%w: empty recipient", model.ErrNotFound)
	}
	if in.domain != "" && domain != "" && domain != in.domain {
		return "", fmt.Errorf("%w: recipient domain %s", model.ErrNotFound, domain)
	}
	userID, err := in.store.UserIDByAlias(ctx, alias)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("%w: no user for %s", model.ErrNotFound, e.To)
		}
		return "", err
	}
	src, err := in.newsletterSource(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := in.store.PushInboundEmail(ctx, src.ID, e); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("inbound: queued email", "user_id", userID, "source_id", src.ID, "subject", e.Subject)
	return src.ID, nil
}

func (in *Ingestor) newsletterSource(ctx context.Context, userID string) (model.Source, error) {
	sources, err := in.store.Sources(ctx, userID)
	if err != nil {
		return model.Source{}, err
	}
	for _, s := range sources {
		if s.Type == model.SourceNewsletter {
			return s, nil
		}
	}
	src := model.Source{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      model.SourceNewsletter,
		Name:      in.sourceName,
		Config:    map[string]string{},
		IsActive:  true,
		CreatedAt: in.Now().UTC(),
	}
	if err := in.store.PutSource(ctx, src); err != nil {
		return model.Source{}, err
	}
	logging.FromContext(ctx).Info("inbound: created newsletter source", "user_id", userID, "source_id", src.ID)
	return src, nil
}
