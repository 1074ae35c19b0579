package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"reportchat/internal/provider"
)

// Completer is the single-shot completion contract the summarizer and
// question suggester need.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

// FallbackSummary stands in when summarization fails; continuity is
// best-effort, never correctness-critical.
const FallbackSummary = "previous conversation covered various aspects of the report"

const summarySystemPrompt = "You summarize marketing consultations. " +
	"Produce a 2-3 paragraph digest of the conversation covering: topics discussed, " +
	"concrete recommendations given, the user's stated concerns, and any decisions or next steps. " +
	"Be factual and concise; do not invent content."

// summaryTemperature biases toward factual compression over rephrasing.
const summaryTemperature = 0.2

// Summarizer produces short digests of thread history to carry continuity
// across rotation.
type Summarizer struct {
	llm       Completer
	encoder   *tiktoken.Tiktoken
	maxTokens int
}

func NewSummarizer(llm Completer, maxTranscriptTokens int) *Summarizer {
	if maxTranscriptTokens <= 0 {
		maxTranscriptTokens = 6000
	}
	encoder, err := tiktoken.EncodingForModel("gpt-4o")
	if err != nil {
		log.Printf("tiktoken encoder unavailable, falling back to character clipping: %v", err)
		encoder = nil
	}
	return &Summarizer{llm: llm, encoder: encoder, maxTokens: maxTranscriptTokens}
}

// Summarize digests the messages (oldest first) into a short continuity
// summary. It never fails: any provider error degrades to FallbackSummary.
func (s *Summarizer) Summarize(ctx context.Context, messages []provider.ThreadMessage) string {
	transcript := s.buildTranscript(messages)
	if transcript == "" {
		return FallbackSummary
	}
	userPrompt := fmt.Sprintf("Summarize this conversation:\n\n%s", transcript)
	summary, err := s.llm.Complete(ctx, summarySystemPrompt, userPrompt, summaryTemperature)
	if err != nil {
		log.Printf("summarization failed, using fallback: %v", err)
		return FallbackSummary
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return FallbackSummary
	}
	return summary
}

// buildTranscript renders messages chronologically, dropping the oldest
// entries when the transcript would exceed the token budget.
func (s *Summarizer) buildTranscript(messages []provider.ThreadMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		label := "User"
		if msg.Role == "assistant" {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}
	for start := 0; start < len(lines); start++ {
		transcript := strings.Join(lines[start:], "\n")
		if s.countTokens(transcript) <= s.maxTokens {
			return transcript
		}
	}
	return ""
}

func (s *Summarizer) countTokens(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	return len(text) / 4
}
