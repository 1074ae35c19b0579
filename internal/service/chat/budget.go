package chat

import (
	"context"
	"log"

	"reportchat/internal/provider"
)

// Monitor estimates a thread's accumulated context size and signals when it
// must rotate. The estimate is a cheap character-count proxy; the threshold
// sits well below the provider's hard ceiling so the next turn's prompt and
// response still fit.
type Monitor struct {
	threads       provider.ThreadClient
	windowLimit   int
	charsPerToken int
	threshold     int
}

func NewMonitor(threads provider.ThreadClient, windowLimit, charsPerToken, threshold int) *Monitor {
	if windowLimit <= 0 {
		windowLimit = 100
	}
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	return &Monitor{
		threads:       threads,
		windowLimit:   windowLimit,
		charsPerToken: charsPerToken,
		threshold:     threshold,
	}
}

// ShouldRotate reports whether the thread's estimated token count exceeds the
// rotation threshold. Provider failures fail open: continuing on the current
// thread beats blocking the user on a size check.
func (m *Monitor) ShouldRotate(ctx context.Context, threadID string) bool {
	if threadID == "" {
		return false
	}
	messages, err := m.threads.ListMessages(ctx, threadID, "desc", m.windowLimit)
	if err != nil {
		log.Printf("budget check for thread %s failed, continuing on current thread: %v", threadID, err)
		return false
	}
	return m.Estimate(messages) > m.threshold
}

// Estimate converts a message window to an approximate token count.
func (m *Monitor) Estimate(messages []provider.ThreadMessage) int {
	var chars int
	for _, msg := range messages {
		chars += len(msg.Content)
	}
	return chars / m.charsPerToken
}
