package chat

import (
	"context"
	"strings"
	"testing"

	"reportchat/internal/provider"
)

func TestSummarizeHappyPath(t *testing.T) {
	llm := &fakeCompleter{response: "They reviewed SEO issues and agreed on next steps."}
	s := NewSummarizer(llm, 1000)
	messages := []provider.ThreadMessage{
		{Role: "user", Content: "How is my SEO?"},
		{Role: "assistant", Content: "Your rankings dropped for two keywords."},
	}
	got := s.Summarize(context.Background(), messages)
	if got != llm.response {
		t.Fatalf("unexpected summary: %q", got)
	}
	if !strings.Contains(llm.lastUser, "User: How is my SEO?") {
		t.Fatalf("transcript missing user line: %q", llm.lastUser)
	}
	if !strings.Contains(llm.lastUser, "Assistant: Your rankings dropped") {
		t.Fatalf("transcript missing assistant line: %q", llm.lastUser)
	}
}

func TestSummarizeNeverFails(t *testing.T) {
	s := NewSummarizer(&fakeCompleter{err: errFakeProvider}, 1000)
	messages := []provider.ThreadMessage{{Role: "user", Content: "Anything."}}
	if got := s.Summarize(context.Background(), messages); got != FallbackSummary {
		t.Fatalf("provider failure must degrade to fallback, got %q", got)
	}

	blank := NewSummarizer(&fakeCompleter{response: "   "}, 1000)
	if got := blank.Summarize(context.Background(), messages); got != FallbackSummary {
		t.Fatalf("blank completion must degrade to fallback, got %q", got)
	}
}

func TestSummarizeEmptyWindowSkipsProvider(t *testing.T) {
	llm := &fakeCompleter{response: "unused"}
	s := NewSummarizer(llm, 1000)
	if got := s.Summarize(context.Background(), nil); got != FallbackSummary {
		t.Fatalf("empty window must use fallback, got %q", got)
	}
	if llm.calls != 0 {
		t.Fatalf("empty window must not call the provider")
	}
}

func TestBuildTranscriptDropsOldestWhenOverBudget(t *testing.T) {
	s := NewSummarizer(&fakeCompleter{}, 30)
	s.encoder = nil
	long := strings.Repeat("old content ", 30)
	messages := []provider.ThreadMessage{
		{Role: "user", Content: long},
		{Role: "assistant", Content: "recent answer"},
		{Role: "user", Content: "recent question"},
	}
	transcript := s.buildTranscript(messages)
	if strings.Contains(transcript, "old content") {
		t.Fatalf("oldest entry should be dropped: %q", transcript)
	}
	if !strings.Contains(transcript, "recent question") {
		t.Fatalf("newest entry must survive: %q", transcript)
	}
}
