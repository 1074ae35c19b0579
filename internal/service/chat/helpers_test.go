package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"reportchat/internal/config"
	"reportchat/internal/provider"
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

func insertTestPurchase(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(
		`INSERT INTO purchases (id, email, plan, status, created_at, updated_at) VALUES (?, ?, ?, 'paid', ?, ?)`,
		id, id+"@example.com", "starter", now, now,
	)
	if err != nil {
		t.Fatalf("insert purchase: %v", err)
	}
}

// fakeThreads is an in-memory ThreadClient. CreateRun immediately appends the
// scripted reply to the thread; GetRun walks the scripted status sequence, or
// reports completed when none is set.
type fakeThreads struct {
	mu          sync.Mutex
	threadSeq   int
	runSeq      int
	msgSeq      int64
	messages    map[string][]provider.ThreadMessage
	reply       string
	runStatuses []provider.RunStatus
	runError    *provider.RunError

	createThreadErr error
	appendErr       error
	createRunErr    error
	getRunErr       error
	getRunFailures  int
	listErr         error
}

func newFakeThreads(reply string) *fakeThreads {
	return &fakeThreads{
		messages: make(map[string][]provider.ThreadMessage),
		reply:    reply,
	}
}

func (f *fakeThreads) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createThreadErr != nil {
		return "", f.createThreadErr
	}
	f.threadSeq++
	id := fmt.Sprintf("thread-%d", f.threadSeq)
	f.messages[id] = nil
	return id, nil
}

func (f *fakeThreads) AppendMessage(ctx context.Context, threadID, role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	if _, ok := f.messages[threadID]; !ok {
		return fmt.Errorf("unknown thread %s", threadID)
	}
	f.appendLocked(threadID, role, content)
	return nil
}

func (f *fakeThreads) appendLocked(threadID, role, content string) {
	f.msgSeq++
	f.messages[threadID] = append(f.messages[threadID], provider.ThreadMessage{
		ID:        fmt.Sprintf("msg-%d", f.msgSeq),
		Role:      role,
		Content:   content,
		CreatedAt: f.msgSeq,
	})
}

func (f *fakeThreads) CreateRun(ctx context.Context, threadID, assistantID string) (*provider.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createRunErr != nil {
		return nil, f.createRunErr
	}
	if _, ok := f.messages[threadID]; !ok {
		return nil, fmt.Errorf("unknown thread %s", threadID)
	}
	if f.reply != "" {
		f.appendLocked(threadID, "assistant", f.reply)
	}
	f.runSeq++
	return &provider.Run{
		ID:       fmt.Sprintf("run-%d", f.runSeq),
		ThreadID: threadID,
		Status:   provider.RunQueued,
	}, nil
}

func (f *fakeThreads) GetRun(ctx context.Context, threadID, runID string) (*provider.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRunFailures > 0 {
		f.getRunFailures--
		return nil, errFakeProvider
	}
	if f.getRunErr != nil {
		return nil, f.getRunErr
	}
	run := &provider.Run{ID: runID, ThreadID: threadID, Status: provider.RunCompleted, LastError: f.runError}
	if len(f.runStatuses) > 0 {
		run.Status = f.runStatuses[0]
		f.runStatuses = f.runStatuses[1:]
	}
	return run, nil
}

func (f *fakeThreads) ListMessages(ctx context.Context, threadID, order string, limit int) ([]provider.ThreadMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	msgs, ok := f.messages[threadID]
	if !ok {
		return nil, fmt.Errorf("unknown thread %s", threadID)
	}
	out := make([]provider.ThreadMessage, len(msgs))
	copy(out, msgs)
	if order != "asc" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeThreads) threadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.threadSeq
}

func (f *fakeThreads) threadMessages(threadID string) []provider.ThreadMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.ThreadMessage, len(f.messages[threadID]))
	copy(out, f.messages[threadID])
	return out
}

// fakeCompleter scripts the Completer contract.
type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	f.calls++
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

var errFakeProvider = errors.New("provider exploded")
