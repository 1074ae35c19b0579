package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reportchat/internal/auth"
	"reportchat/internal/billing"
	"reportchat/internal/config"
	"reportchat/internal/redis"
	"reportchat/internal/service/chat"
	"reportchat/internal/worker"
)

// Handler wires HTTP routes to the chat core and billing services.
type Handler struct {
	cfg       *config.Config
	store     *chat.Service
	orch      *chat.Orchestrator
	llm       chat.Completer
	purchases *billing.Service
	payments  billing.Provider
	auth      *auth.Service
	rdb       *redis.Client
	limiter   *worker.TurnLimiter
	guard     *worker.TurnGuard
}

func NewHandler(
	cfg *config.Config,
	store *chat.Service,
	orch *chat.Orchestrator,
	llm chat.Completer,
	purchases *billing.Service,
	payments billing.Provider,
	authSvc *auth.Service,
	rdb *redis.Client,
	limiter *worker.TurnLimiter,
	guard *worker.TurnGuard,
) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     store,
		orch:      orch,
		llm:       llm,
		purchases: purchases,
		payments:  payments,
		auth:      authSvc,
		rdb:       rdb,
		limiter:   limiter,
		guard:     guard,
	}
}

// Register mounts all routes on the engine.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/checkout/intent", h.CreateCheckoutIntent)
	api.POST("/checkout/subscription", h.CreateCheckoutSubscription)
	api.POST("/webhooks/billing", h.BillingWebhook)
	api.POST("/access/claim", h.ClaimAccess)

	authed := api.Group("")
	authed.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	{
		authed.POST("/purchases/:id/sessions", h.CreateSession)
		authed.GET("/purchases/:id/sessions", h.ListSessions)
		authed.GET("/purchases/:id/questions", h.SuggestedQuestions)
		authed.POST("/sessions/:sid/messages", h.SendMessage)
		authed.GET("/sessions/:sid/messages", h.ListMessages)
		authed.POST("/sessions/:sid/archive", h.ArchiveSession)
	}
}

// turnTimeout bounds one turn independently of the client connection.
func (h *Handler) turnTimeout() time.Duration {
	poll := time.Duration(h.cfg.Chat.PollIntervalSeconds) * time.Second
	return poll*time.Duration(h.cfg.Chat.PollMaxAttempts) + 30*time.Second
}

// requirePurchase ensures the path purchase id matches the token's grant.
func requirePurchase(c *gin.Context) (string, bool) {
	granted, ok := auth.PurchaseIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	if pathID := c.Param("id"); pathID != "" && pathID != granted {
		c.JSON(http.StatusForbidden, gin.H{"error": "purchase access denied"})
		return "", false
	}
	return granted, true
}
