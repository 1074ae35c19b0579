package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"reportchat/internal/models"
)

type checkoutRequest struct {
	Email string `json:"email" binding:"required"`
	Plan  string `json:"plan" binding:"required"`
}

// CreateCheckoutIntent records a pending purchase and opens a one-time
// payment intent for it.
func (h *Handler) CreateCheckoutIntent(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and plan are required"})
		return
	}
	amount, ok := h.cfg.Billing.PlanAmounts[req.Plan]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}
	purchase, err := h.purchases.CreatePurchase(c.Request.Context(), req.Email, req.Plan)
	if err != nil {
		log.Printf("create purchase: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start checkout"})
		return
	}
	intent, err := h.payments.CreateIntent(c.Request.Context(), amount, h.cfg.Billing.Currency, req.Email, purchase.ID)
	if err != nil {
		log.Printf("create intent for purchase %s: %v", purchase.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchase_id":   purchase.ID,
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
	})
}

// CreateCheckoutSubscription records a pending purchase and opens an
// incomplete subscription for it.
func (h *Handler) CreateCheckoutSubscription(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and plan are required"})
		return
	}
	priceID, ok := h.cfg.Billing.SubscriptionPrices[req.Plan]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}
	purchase, err := h.purchases.CreatePurchase(c.Request.Context(), req.Email, req.Plan)
	if err != nil {
		log.Printf("create purchase: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start checkout"})
		return
	}
	sub, err := h.payments.CreateSubscription(c.Request.Context(), priceID, req.Email, purchase.ID)
	if err != nil {
		log.Printf("create subscription for purchase %s: %v", purchase.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"purchase_id":     purchase.ID,
		"subscription_id": sub.ID,
		"status":          sub.Status,
		"client_secret":   sub.ClientSecret,
	})
}

// BillingWebhook verifies and applies processor events. Duplicate deliveries
// are acknowledged without being re-applied.
func (h *Handler) BillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.cfg.Billing.StripeWebhookSecret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}
	fresh, err := h.purchases.RecordEvent(c.Request.Context(), event.ID, string(event.Type), string(payload))
	if err != nil {
		log.Printf("record billing event %s: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record event"})
		return
	}
	if !fresh {
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
		return
	}
	if err := h.applyBillingEvent(c, event); err != nil {
		log.Printf("apply billing event %s (%s): %v", event.ID, event.Type, err)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) applyBillingEvent(c *gin.Context, event stripe.Event) error {
	ctx := c.Request.Context()
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return err
		}
		purchaseID := pi.Metadata["purchase_id"]
		if purchaseID == "" {
			return errors.New("payment intent missing purchase_id metadata")
		}
		customer := ""
		if pi.Customer != nil {
			customer = pi.Customer.ID
		}
		return h.purchases.UpdateStatus(ctx, purchaseID, models.PurchasePaid, customer)
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		purchaseID := sub.Metadata["purchase_id"]
		if purchaseID == "" {
			return errors.New("subscription missing purchase_id metadata")
		}
		customer := ""
		if sub.Customer != nil {
			customer = sub.Customer.ID
		}
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			return h.purchases.UpdateStatus(ctx, purchaseID, models.PurchaseActive, customer)
		}
		return nil
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		purchaseID := sub.Metadata["purchase_id"]
		if purchaseID == "" {
			return errors.New("subscription missing purchase_id metadata")
		}
		return h.purchases.UpdateStatus(ctx, purchaseID, models.PurchaseCanceled, "")
	default:
		return nil
	}
}

type claimRequest struct {
	PurchaseID string `json:"purchase_id" binding:"required"`
	Email      string `json:"email" binding:"required"`
}

// ClaimAccess exchanges a paid purchase plus its email for an access token.
func (h *Handler) ClaimAccess(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "purchase_id and email are required"})
		return
	}
	purchase, err := h.purchases.GetPurchase(c.Request.Context(), req.PurchaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "purchase not found"})
			return
		}
		log.Printf("get purchase %s: %v", req.PurchaseID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify purchase"})
		return
	}
	if !strings.EqualFold(purchase.Email, req.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "email does not match purchase"})
		return
	}
	if !purchase.Chattable() {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "purchase is not paid"})
		return
	}
	token, err := h.auth.IssueToken(c.Request.Context(), purchase.ID)
	if err != nil {
		log.Printf("issue token for purchase %s: %v", purchase.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue access token"})
		return
	}
	csrf, err := h.auth.NewCSRFToken()
	if err != nil {
		log.Printf("issue csrf token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue access token"})
		return
	}
	maxAge := int(h.auth.TokenTTL().Seconds())
	c.SetCookie(h.auth.AuthCookieName(), token, maxAge, "/", "", false, true)
	c.SetCookie(h.auth.CSRFCookieName(), csrf, maxAge, "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"csrf_token":   csrf,
		"purchase_id":  purchase.ID,
	})
}
