package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"daily-digest/internal/model"
	"daily-digest/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// secretMatches compares in constant time. An unset secret matches nothing.
func secretMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func (s *Server) handleEmailWebhook(c *gin.Context) {
	if !secretMatches(s.webhookSecret, c.GetHeader("X-Webhook-Secret")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	var e model.InboundEmail
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(e.To) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing recipient"})
		return
	}
	sourceID, err := s.ingest.Accept(c.Request.Context(), e)
	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown recipient"})
	case err != nil:
		s.log.Error("server: inbound email failed", "to", e.To, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process email"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "sourceId": sourceID})
	}
}

func (s *Server) handleCronDigest(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !secretMatches(s.cronSecret, token) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	// The batch outlives a dropped client connection.
	ctx := context.WithoutCancel(c.Request.Context())
	results, err := s.runner.RunBatch(ctx)
	if err != nil {
		s.log.Error("server: batch failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate digests"})
		return
	}
	if results == nil {
		results = []pipeline.UserResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(results),
		"summary":   pipeline.Summary(results),
		"results":   results,
	})
}
