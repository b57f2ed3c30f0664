package pipeline

import (
	"context"

	"daily-digest/internal/logging"
	"daily-digest/internal/model"

	"github.com/google/uuid"
)

// inboxClaim covers the inbound emails one run takes from its newsletter
// sources.
type inboxClaim struct {
	id      string
	sources []string
}

func newInboxClaim(sources []model.Source) inboxClaim {
	c := inboxClaim{id: uuid.NewString()}
	for _, src := range sources {
		if src.Type == model.SourceNewsletter {
			c.sources = append(c.sources, src.ID)
		}
	}
	return c
}

// consumed reports whether a run outcome used up the claimed emails. Every
// other outcome hands them back for the next run.
func consumed(res UserResult) bool {
	return res.State == StateDone || (res.State == StateSkipped && res.Reason == ReasonNoNewContent)
}

// settle acks or releases the claim. It runs regardless of ctx cancellation.
func (p *Pipeline) settle(ctx context.Context, c inboxClaim, ack bool) {
	ctx = context.WithoutCancel(ctx)
	log := logging.FromContext(ctx)
	for _, id := range c.sources {
		var err error
		if ack {
			err = p.store.AckInboundEmails(ctx, id, c.id)
		} else {
			err = p.store.ReleaseInboundEmails(ctx, id, c.id)
		}
		if err != nil {
			log.Error("pipeline: settle inbox claim failed", "source_id", id, "ack", ack, "err", err)
		}
	}
}
