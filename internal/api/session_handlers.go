package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reportchat/internal/models"
	"reportchat/internal/service/chat"
)

type createSessionRequest struct {
	ReportKind     string `json:"report_kind" binding:"required"`
	Title          string `json:"title"`
	InitialMessage string `json:"initial_message"`
}

const maxTitleLength = 60

// CreateSession returns the purchase's active session for the kind, creating
// one on first use. The initial message, when given, seeds the title; the
// message itself goes through the send-message stream.
func (h *Handler) CreateSession(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_kind is required"})
		return
	}
	kind := models.ReportKind(req.ReportKind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report kind"})
		return
	}
	title := req.Title
	if title == "" && req.InitialMessage != "" {
		title = titleFromMessage(req.InitialMessage)
	}
	session, err := h.store.CreateSession(c.Request.Context(), purchaseID, kind, h.cfg.Chat.AssistantID, title)
	if err != nil {
		log.Printf("create session for purchase %s: %v", purchaseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func titleFromMessage(message string) string {
	title := strings.TrimSpace(message)
	if idx := strings.IndexAny(title, "\r\n"); idx >= 0 {
		title = title[:idx]
	}
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "…"
	}
	return title
}

// ListSessions returns the purchase's sessions, most recently active first.
func (h *Handler) ListSessions(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	sessions, err := h.store.ListSessions(c.Request.Context(), purchaseID)
	if err != nil {
		log.Printf("list sessions for purchase %s: %v", purchaseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ArchiveSession soft-archives a session owned by the token's purchase.
func (h *Handler) ArchiveSession(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	sessionID := c.Param("sid")
	if err := h.store.ArchiveSession(c.Request.Context(), purchaseID, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		log.Printf("archive session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not archive session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": true})
}

// ListMessages returns the session transcript in ordinal order.
func (h *Handler) ListMessages(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	sessionID := c.Param("sid")
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
	messages, err := h.store.History(c.Request.Context(), sessionID)
	if err != nil {
		log.Printf("history for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load messages"})
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

const questionsCacheTTL = time.Hour

// SuggestedQuestions proposes follow-up questions for the purchase's report,
// cached per purchase and kind.
func (h *Handler) SuggestedQuestions(c *gin.Context) {
	purchaseID, ok := requirePurchase(c)
	if !ok {
		return
	}
	kind := models.ReportKind(c.Query("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report kind"})
		return
	}

	cacheKey := "chat:questions:" + purchaseID + ":" + string(kind)
	if h.rdb != nil {
		if cached, err := h.rdb.Get(c.Request.Context(), cacheKey); err == nil {
			var questions []string
			if json.Unmarshal([]byte(cached), &questions) == nil {
				c.JSON(http.StatusOK, gin.H{"questions": questions})
				return
			}
		}
	}

	report := &models.StructuredReport{}
	if stored, err := h.store.GetReport(c.Request.Context(), purchaseID, kind); err == nil {
		report = stored.Structured()
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Printf("load report for questions %s/%s: %v", purchaseID, kind, err)
	}
	questions := chat.SuggestQuestions(c.Request.Context(), h.llm, report, kind)

	if h.rdb != nil {
		if encoded, err := json.Marshal(questions); err == nil {
			if err := h.rdb.Set(c.Request.Context(), cacheKey, string(encoded), questionsCacheTTL); err != nil {
				log.Printf("cache questions for %s: %v", cacheKey, err)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}
