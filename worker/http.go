package worker

import (
	"context"

	"daily-digest/internal/server"
)

// HTTPServer serves the webhook and trigger endpoints.
type HTTPServer struct {
	Server *server.Server
	Addr   string
}

func (h *HTTPServer) Name() string { return "http" }

func (h *HTTPServer) Start(ctx context.Context) error {
	return h.Server.Run(ctx, h.Addr)
}
