package chat

import (
	"context"
	"fmt"
	"sort"

	"reportchat/internal/models"
	"reportchat/internal/provider"
)

// Rotator retires an over-budget thread and opens a replacement seeded with a
// digest of the old one plus a fresh report briefing, so continuity survives
// without replaying the full transcript.
type Rotator struct {
	threads       provider.ThreadClient
	summarizer    *Summarizer
	summaryWindow int
}

func NewRotator(threads provider.ThreadClient, summarizer *Summarizer, summaryWindow int) *Rotator {
	if summaryWindow <= 0 {
		summaryWindow = 20
	}
	return &Rotator{threads: threads, summarizer: summarizer, summaryWindow: summaryWindow}
}

// Rotate replaces oldThreadID with a freshly seeded thread and returns the
// new thread id. Any failure aborts the rotation and propagates: the caller
// must not keep using the over-budget thread, and rotation consumes provider
// quota so it is never retried blindly.
func (r *Rotator) Rotate(ctx context.Context, oldThreadID string, report *models.StructuredReport, kind models.ReportKind) (string, error) {
	window, err := r.threads.ListMessages(ctx, oldThreadID, "desc", r.summaryWindow)
	if err != nil {
		return "", fmt.Errorf("fetch rotation window: %w", err)
	}
	// ListMessages returns newest first; summarize chronologically.
	sort.Slice(window, func(i, j int) bool { return window[i].CreatedAt < window[j].CreatedAt })
	summary := r.summarizer.Summarize(ctx, window)

	newThreadID, err := r.threads.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create replacement thread: %w", err)
	}

	briefing := FormatReport(report, kind)
	seed := buildSeedMessage(kind, briefing, summary)
	if err := r.threads.AppendMessage(ctx, newThreadID, "user", seed); err != nil {
		return "", fmt.Errorf("seed replacement thread: %w", err)
	}
	return newThreadID, nil
}

func buildSeedMessage(kind models.ReportKind, briefing, summary string) string {
	return fmt.Sprintf(
		"We are continuing our %s discussion in a fresh context.\n\n"+
			"%s\n\n"+
			"Previous conversation summary:\n%s\n\n"+
			"Please keep helping the user with this report. They will continue the conversation now.",
		kind, briefing, summary,
	)
}
