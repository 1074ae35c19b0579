package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"reportchat/internal/config"
	"reportchat/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertPurchase(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := db.Exec(
		`INSERT INTO purchases (id, email, plan, status, created_at, updated_at) VALUES (?, ?, ?, 'paid', ?, ?)`,
		id, id+"@example.com", "starter", now, now,
	); err != nil {
		t.Fatalf("insert purchase: %v", err)
	}
}

func TestIssueAndValidateToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertPurchase(t, db, "p1")
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "p1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	purchaseID, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if purchaseID != "p1" {
		t.Fatalf("expected purchase p1, got %q", purchaseID)
	}

	if _, err := svc.ValidateToken(ctx, "unknown"); err == nil {
		t.Fatalf("unknown token must be rejected")
	}
	if _, err := svc.ValidateToken(ctx, ""); err == nil {
		t.Fatalf("empty token must be rejected")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertPurchase(t, db, "p1")
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "p1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if _, err := db.Exec(`UPDATE access_tokens SET expires_at = ? WHERE token = ?`, past, token); err != nil {
		t.Fatalf("expire token: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expired token must be rejected")
	}
	// The expired row is cleaned up on use.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM access_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired token to be deleted")
	}
}

func TestRevokeToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertPurchase(t, db, "p1")
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	token, err := svc.IssueToken(ctx, "p1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("revoked token must be rejected")
	}
}

func TestSweepExpiredTokens(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertPurchase(t, db, "p1")
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	keep, err := svc.IssueToken(ctx, "p1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	stale, err := svc.IssueToken(ctx, "p1")
	if err != nil {
		t.Fatalf("issue stale token: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if _, err := db.Exec(`UPDATE access_tokens SET expires_at = ? WHERE token = ?`, past, stale); err != nil {
		t.Fatalf("expire token: %v", err)
	}

	if err := svc.sweepExpired(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, keep); err != nil {
		t.Fatalf("live token must survive the sweep: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM access_tokens`).Scan(&count); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the live token to remain, got %d", count)
	}
}

func TestMiddlewareSetsPurchaseID(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertPurchase(t, db, "p1")
	svc := NewService(db, time.Hour)
	token, err := svc.IssueToken(context.Background(), "p1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", svc.Middleware(), func(c *gin.Context) {
		id, ok := PurchaseIDFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "missing purchase id"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purchase_id": id})
	})

	// Bearer header path.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer auth failed: %d %s", rec.Code, rec.Body.String())
	}

	// Cookie path.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: svc.AuthCookieName(), Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie auth failed: %d %s", rec.Code, rec.Body.String())
	}

	// No credentials.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
}

func TestCSRFMiddleware(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, time.Hour)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(svc.CSRFMiddleware())
	router.POST("/mutate", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/read", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// GET passes without tokens.
	req := httptest.NewRequest(http.MethodGet, "/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("GET must bypass csrf, got %d", rec.Code)
	}

	// POST without tokens is rejected.
	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf, got %d", rec.Code)
	}

	// Mismatched header is rejected.
	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "aaa"})
	req.Header.Set(svc.CSRFHeaderName(), "bbb")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on mismatch, got %d", rec.Code)
	}

	// Matching pair passes.
	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "match"})
	req.Header.Set(svc.CSRFHeaderName(), "match")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with matching csrf, got %d", rec.Code)
	}

	// Bearer callers are exempt: the Authorization header is never sent by
	// a browser on its own.
	req = httptest.NewRequest(http.MethodPost, "/mutate", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bearer request must bypass csrf, got %d", rec.Code)
	}
}
