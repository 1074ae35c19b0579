package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"reportchat/internal/service/chat"
	"reportchat/internal/worker"
)

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

const maxMessageLength = 8000

// SendMessage streams one turn over SSE. The turn itself runs on a detached
// context so a client disconnect cannot strand a half-persisted exchange.
func (h *Handler) SendMessage(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	sessionID := c.Param("sid")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if len(req.Content) > maxMessageLength {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message is too long"})
		return
	}

	session, err := h.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		log.Printf("get session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load session"})
		return
	}
	if session.PurchaseID != purchaseID {
		c.JSON(http.StatusForbidden, gin.H{"error": "session access denied"})
		return
	}

	release, err := h.guard.Acquire(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, worker.ErrTurnInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "a turn is already in progress for this session"})
			return
		}
		log.Printf("acquire turn lock for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start turn"})
		return
	}
	defer release()

	if err := h.limiter.Acquire(); err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is at capacity, try again shortly"})
		return
	}
	defer h.limiter.Release()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emit := func(ev chat.StreamEvent) {
		writeSSE(c, ev)
	}
	// Exactly one end-of-stream sentinel, on every path out of the turn.
	defer func() {
		fmt.Fprint(c.Writer, "data: [DONE]\n\n")
		c.Writer.Flush()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout())
	defer cancel()
	if err := h.orch.SendMessage(ctx, sessionID, req.Content, emit); err != nil {
		log.Printf("turn for session %s: %v", sessionID, err)
	}
}

func writeSSE(c *gin.Context, ev chat.StreamEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("encode stream event: %v", err)
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}
