package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"reportchat/internal/models"
	"reportchat/internal/provider"
)

var (
	// ErrSessionNotFound covers both missing and archived sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRunTimeout means the polling attempt budget ran out.
	ErrRunTimeout = errors.New("assistant run timed out")
)

const (
	// emitChunkSize bounds one token event's payload.
	emitChunkSize = 240
	// progressEvery is the poll-attempt stride between progress signals.
	progressEvery = 5
)

// Orchestrator owns the per-turn state machine: resolve the active thread,
// rotate it if over budget, persist the user message, dispatch a run, poll it
// to completion, stream the answer, and persist it. Ordinals and thread
// linkage are re-read from the store every turn; nothing is cached.
type Orchestrator struct {
	store    *Service
	threads  provider.ThreadClient
	monitor  *Monitor
	rotator  *Rotator
	poll     time.Duration
	attempts int
	sleep    func(context.Context, time.Duration) error
}

func NewOrchestrator(store *Service, threads provider.ThreadClient, monitor *Monitor, rotator *Rotator, pollInterval time.Duration, maxAttempts int) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 45
	}
	return &Orchestrator{
		store:    store,
		threads:  threads,
		monitor:  monitor,
		rotator:  rotator,
		poll:     pollInterval,
		attempts: maxAttempts,
		sleep:    sleepContext,
	}
}

// SendMessage runs one turn. The ctx must not be tied to the client
// connection: the turn runs to completion and persists both sides of the
// exchange even if the caller disconnects mid-stream. Events flow through
// emit; the caller owns the end-of-stream sentinel.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, content string, emit EmitFunc) error {
	if emit == nil {
		emit = func(StreamEvent) {}
	}

	// RESOLVE_THREAD
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			emit(StreamEvent{Type: EventError, Message: "session not found"})
			return ErrSessionNotFound
		}
		emit(StreamEvent{Type: EventError, Message: "could not load session"})
		return err
	}
	if !session.Active {
		emit(StreamEvent{Type: EventError, Message: "session is archived"})
		return ErrSessionNotFound
	}
	nextOrdinal, err := o.store.NextOrdinal(ctx, sessionID)
	if err != nil {
		emit(StreamEvent{Type: EventError, Message: "could not resolve conversation state"})
		return err
	}
	threadID, err := o.store.LatestThreadID(ctx, sessionID)
	if err != nil {
		emit(StreamEvent{Type: EventError, Message: "could not resolve conversation state"})
		return err
	}

	report := o.loadReport(ctx, session)

	// MAYBE_ROTATE: at most once per turn, and only for an existing thread.
	rotated := false
	if threadID != "" && o.monitor.ShouldRotate(ctx, threadID) {
		newThreadID, err := o.rotator.Rotate(ctx, threadID, report, session.ReportKind)
		if err != nil {
			// Continuing on the over-budget thread risks a provider-side
			// hard failure, so the turn ends here; the user can resend.
			emit(StreamEvent{Type: EventError, Message: "could not prepare a fresh conversation context, please resend your message"})
			return fmt.Errorf("rotate thread %s: %w", threadID, err)
		}
		threadID = newThreadID
		rotated = true
	}

	// PERSIST_USER_MSG: durable before any run is started, creating the
	// first thread if the session has none yet.
	newThread := false
	if threadID == "" {
		threadID, err = o.threads.CreateThread(ctx)
		if err != nil {
			emit(StreamEvent{Type: EventError, Message: "could not start a conversation with the assistant"})
			return fmt.Errorf("create thread: %w", err)
		}
		newThread = true
	}
	userMsg := &models.Message{
		SessionID: sessionID,
		ThreadID:  threadID,
		Role:      models.RoleUser,
		Content:   content,
		Ordinal:   nextOrdinal,
		Meta:      models.MessageMeta{UserInitiated: true, RotationOrigin: rotated},
	}
	if _, err := o.store.AddMessage(ctx, userMsg); err != nil {
		emit(StreamEvent{Type: EventError, Message: "could not save your message"})
		return fmt.Errorf("persist user message: %w", err)
	}

	// DISPATCH
	if newThread {
		if briefing := contextForIntent(report, session.ReportKind, ClassifyIntent(content)); briefing != "" {
			if err := o.threads.AppendMessage(ctx, threadID, "user", briefing); err != nil {
				return o.failTurn(ctx, emit, sessionID, threadID, nextOrdinal+1, rotated, "the assistant could not be briefed", err)
			}
		}
	}
	if err := o.threads.AppendMessage(ctx, threadID, "user", content); err != nil {
		return o.failTurn(ctx, emit, sessionID, threadID, nextOrdinal+1, rotated, "your message could not be delivered", err)
	}
	run, err := o.threads.CreateRun(ctx, threadID, session.AssistantID)
	if err != nil {
		return o.failTurn(ctx, emit, sessionID, threadID, nextOrdinal+1, rotated, "the assistant could not be started", err)
	}

	// POLL_STREAM
	answer, err := o.pollRun(ctx, threadID, run.ID, emit)
	if err != nil {
		return o.failTurn(ctx, emit, sessionID, threadID, nextOrdinal+1, rotated, userFacingPollError(err), err)
	}
	for _, chunk := range chunkText(answer, emitChunkSize) {
		emit(StreamEvent{Type: EventToken, Content: chunk})
	}

	// PERSIST_ASSISTANT_MSG: before the completion signal, so what the
	// client displayed is recoverable from the store.
	assistantMsg := &models.Message{
		SessionID: sessionID,
		ThreadID:  threadID,
		Role:      models.RoleAssistant,
		Content:   answer,
		Ordinal:   nextOrdinal + 1,
		Meta:      models.MessageMeta{AIGenerated: true, RotationOrigin: rotated},
	}
	if _, err := o.store.AddMessage(context.WithoutCancel(ctx), assistantMsg); err != nil {
		// Deliberate trade-off: the user keeps the answer they already
		// watched stream in, even though it could not be saved.
		log.Printf("persist assistant message for session %s failed: %v", sessionID, err)
		emit(StreamEvent{Type: EventWarning, Message: "the response could not be saved to history"})
	}
	return nil
}

// pollRun waits for the run to reach a terminal state within the attempt
// budget, emitting periodic progress so long turns do not appear hung.
func (o *Orchestrator) pollRun(ctx context.Context, threadID, runID string, emit EmitFunc) (string, error) {
	for attempt := 1; attempt <= o.attempts; attempt++ {
		run, err := o.threads.GetRun(ctx, threadID, runID)
		if err != nil {
			// Transient: retry within the same attempt budget, never by
			// re-dispatching a duplicate run.
			log.Printf("poll run %s attempt %d: %v", runID, attempt, err)
		} else {
			switch run.Status {
			case provider.RunCompleted:
				return o.latestAssistantText(ctx, threadID)
			case provider.RunFailed, provider.RunCancelled, provider.RunExpired:
				reason := string(run.Status)
				if run.LastError != nil && run.LastError.Message != "" {
					reason = run.LastError.Message
				}
				return "", fmt.Errorf("run %s terminal: %s", runID, reason)
			case provider.RunRequiresAction:
				return "", fmt.Errorf("run %s requires tool action, which is not supported", runID)
			}
		}
		if attempt%progressEvery == 0 {
			emit(StreamEvent{Type: EventProgress, Message: "still working"})
		}
		if err := o.sleep(ctx, o.poll); err != nil {
			return "", fmt.Errorf("poll interrupted: %w", err)
		}
	}
	return "", ErrRunTimeout
}

func (o *Orchestrator) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	messages, err := o.threads.ListMessages(ctx, threadID, "desc", 10)
	if err != nil {
		return "", fmt.Errorf("fetch run output: %w", err)
	}
	for _, msg := range messages {
		if msg.Role == "assistant" && msg.Content != "" {
			return msg.Content, nil
		}
	}
	return "", errors.New("run completed without an assistant message")
}

func userFacingPollError(err error) string {
	if errors.Is(err, ErrRunTimeout) {
		return "the assistant took too long to respond"
	}
	return "the assistant could not complete a response"
}

// failTurn persists a synthetic assistant error message so the user's
// question is never left orphaned, then ends the stream with an error event.
// The write runs on a detached context: a turn that died of cancellation or
// deadline must still get its placeholder.
func (o *Orchestrator) failTurn(ctx context.Context, emit EmitFunc, sessionID, threadID string, ordinal int64, rotated bool, userMessage string, cause error) error {
	errMsg := &models.Message{
		SessionID: sessionID,
		ThreadID:  threadID,
		Role:      models.RoleAssistant,
		Content:   fmt.Sprintf("I wasn't able to respond this time: %s. Please resend your question.", userMessage),
		Ordinal:   ordinal,
		Meta:      models.MessageMeta{AIGenerated: true, Error: true, RotationOrigin: rotated},
	}
	if _, err := o.store.AddMessage(context.WithoutCancel(ctx), errMsg); err != nil {
		log.Printf("persist error placeholder for session %s failed: %v", sessionID, err)
	}
	emit(StreamEvent{Type: EventError, Message: userMessage})
	return fmt.Errorf("turn failed (%s): %w", userMessage, cause)
}

// loadReport fetches the session's report artifact. A missing or unreadable
// report yields an empty briefing; formatting problems never abort a turn.
func (o *Orchestrator) loadReport(ctx context.Context, session *models.Session) *models.StructuredReport {
	report, err := o.store.GetReport(ctx, session.PurchaseID, session.ReportKind)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("load report for purchase %s: %v", session.PurchaseID, err)
		}
		return &models.StructuredReport{}
	}
	return report.Structured()
}

func contextForIntent(report *models.StructuredReport, kind models.ReportKind, intent Intent) string {
	if report.Empty() {
		return ""
	}
	switch intent {
	case IntentGreeting:
		return ""
	case IntentConversational:
		if report.ExecutiveSummary != "" {
			return FormatReport(&models.StructuredReport{ExecutiveSummary: report.ExecutiveSummary}, kind)
		}
		return FormatReport(report, kind)
	default:
		return FormatReport(report, kind)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
