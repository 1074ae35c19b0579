package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reportchat/internal/models"
)

// Service owns session, message, and report access for the chat core. The
// durable store is the single source of truth for ordinals and thread
// linkage; nothing here is cached across turns.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateSession returns the active session for the (purchase, kind) pair,
// creating one if none exists. Only one active session per pair ever receives
// new messages.
func (s *Service) CreateSession(ctx context.Context, purchaseID string, kind models.ReportKind, assistantID, title string) (*models.Session, error) {
	if purchaseID == "" {
		return nil, errors.New("purchase_id is required")
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid report kind: %s", kind)
	}
	if existing, err := s.ActiveSession(ctx, purchaseID, kind); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = "New Conversation"
	}
	now := time.Now().UTC()
	session := &models.Session{
		ID:          uuid.NewString(),
		PurchaseID:  purchaseID,
		ReportKind:  kind,
		AssistantID: assistantID,
		Title:       title,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, purchase_id, report_kind, assistant_id, title, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		session.ID, session.PurchaseID, session.ReportKind, session.AssistantID, session.Title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ActiveSession finds the canonical target for new messages of a pair.
func (s *Service) ActiveSession(ctx context.Context, purchaseID string, kind models.ReportKind) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, purchase_id, report_kind, assistant_id, title, active, created_at, updated_at
		 FROM sessions WHERE purchase_id = ? AND report_kind = ? AND active = 1
		 ORDER BY updated_at DESC LIMIT 1`,
		purchaseID, kind,
	)
	return scanSession(row)
}

// GetSession loads a session by id regardless of active flag.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, purchase_id, report_kind, assistant_id, title, active, created_at, updated_at
		 FROM sessions WHERE id = ?`,
		sessionID,
	)
	return scanSession(row)
}

// ListSessions returns all sessions for a purchase ordered by last activity.
func (s *Service) ListSessions(ctx context.Context, purchaseID string) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, purchase_id, report_kind, assistant_id, title, active, created_at, updated_at
		 FROM sessions WHERE purchase_id = ? ORDER BY updated_at DESC`,
		purchaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var se models.Session
		var active int
		if err := rows.Scan(&se.ID, &se.PurchaseID, &se.ReportKind, &se.AssistantID, &se.Title, &active, &se.CreatedAt, &se.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		se.Active = active != 0
		sessions = append(sessions, se)
	}
	return sessions, rows.Err()
}

// ArchiveSession soft-archives a session. Sessions are never hard-deleted.
func (s *Service) ArchiveSession(ctx context.Context, purchaseID, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0, updated_at = ? WHERE id = ? AND purchase_id = ?`,
		time.Now().UTC(), sessionID, purchaseID,
	)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// History returns a session's ordered messages.
func (s *Service) History(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, thread_id, role, content, ordinal, meta, created_at
		 FROM messages WHERE session_id = ? ORDER BY ordinal ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		var meta string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.ThreadID, &m.Role, &m.Content, &m.Ordinal, &meta, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &m.Meta); err != nil {
			return nil, fmt.Errorf("decode message meta: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// NextOrdinal computes the next per-session sequence number from current
// store state.
func (s *Service) NextOrdinal(ctx context.Context, sessionID string) (int64, error) {
	var maxOrdinal int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ordinal), 0) FROM messages WHERE session_id = ?`,
		sessionID,
	).Scan(&maxOrdinal)
	if err != nil {
		return 0, fmt.Errorf("max ordinal: %w", err)
	}
	return maxOrdinal + 1, nil
}

// LatestThreadID returns the thread reference of the highest-ordinal message,
// or "" when the session has no messages yet.
func (s *Service) LatestThreadID(ctx context.Context, sessionID string) (string, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx,
		`SELECT thread_id FROM messages WHERE session_id = ? ORDER BY ordinal DESC LIMIT 1`,
		sessionID,
	).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest thread: %w", err)
	}
	return threadID, nil
}

// AddMessage stores a new message and touches the session's updated_at in one
// transaction. An error means nothing was written; callers rely on that to
// keep the user and assistant sides of a turn paired.
func (s *Service) AddMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, errors.New("message cannot be nil")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	meta, err := json.Marshal(msg.Meta)
	if err != nil {
		return nil, fmt.Errorf("encode message meta: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, thread_id, role, content, ordinal, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.ThreadID, msg.Role, msg.Content, msg.Ordinal, string(meta), now,
	); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, msg.SessionID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	msg.CreatedAt = now
	return msg, nil
}

// GetReport loads the purchase's report artifact for a kind.
func (s *Service) GetReport(ctx context.Context, purchaseID string, kind models.ReportKind) (*models.Report, error) {
	var r models.Report
	err := s.db.QueryRowContext(ctx,
		`SELECT id, purchase_id, kind, payload, created_at FROM reports WHERE purchase_id = ? AND kind = ?`,
		purchaseID, kind,
	).Scan(&r.ID, &r.PurchaseID, &r.Kind, &r.Payload, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &r, nil
}

// PutReport stores or replaces a purchase's report artifact.
func (s *Service) PutReport(ctx context.Context, purchaseID string, kind models.ReportKind, payload string) (*models.Report, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid report kind: %s", kind)
	}
	now := time.Now().UTC()
	report := &models.Report{
		ID:         uuid.NewString(),
		PurchaseID: purchaseID,
		Kind:       kind,
		Payload:    payload,
		CreatedAt:  now,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM reports WHERE purchase_id = ? AND kind = ?`, purchaseID, kind); err != nil {
		return nil, fmt.Errorf("replace report: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO reports (id, purchase_id, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		report.ID, report.PurchaseID, report.Kind, report.Payload, now,
	); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report: %w", err)
	}
	return report, nil
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var se models.Session
	var active int
	err := row.Scan(&se.ID, &se.PurchaseID, &se.ReportKind, &se.AssistantID, &se.Title, &active, &se.CreatedAt, &se.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	se.Active = active != 0
	return &se, nil
}
