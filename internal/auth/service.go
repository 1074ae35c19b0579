package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Service issues, validates, and revokes purchase access tokens. A token
// scopes the holder to one purchase's reports and chat sessions.
type Service struct {
	db             *sql.DB
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime.
func NewService(db *sql.DB, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:             db,
		tokenTTL:       ttl,
		cookieName:     "access_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// IssueToken mints a new random token for the purchase and persists it.
func (s *Service) IssueToken(ctx context.Context, purchaseID string) (string, error) {
	if purchaseID == "" {
		return "", errors.New("invalid purchase id")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO access_tokens (token, purchase_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			token, purchaseID, now, expiresAt,
		)
		if err == nil {
			return token, nil
		}
	}
	return "", errors.New("could not issue token")
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the
// purchase id it grants access to.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.New("token required")
	}
	var purchaseID string
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT purchase_id, expires_at FROM access_tokens WHERE token = ?`, accessToken,
	).Scan(&purchaseID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.New("invalid token")
		}
		return "", fmt.Errorf("lookup token: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = ?`, accessToken)
		return "", errors.New("token expired")
	}
	return purchaseID, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token = ?`, accessToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing access tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
