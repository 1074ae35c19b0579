package chat

import "strings"

// Stream event types pushed to the caller during a turn.
const (
	EventToken    = "token"
	EventProgress = "progress"
	EventWarning  = "warning"
	EventError    = "error"
)

// StreamEvent is one out-of-band or token payload on the turn stream.
type StreamEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// EmitFunc pushes an event toward the client. Delivery is best-effort: the
// orchestrator keeps going when the client has disconnected, since transcript
// durability must not depend on the caller staying attached.
type EmitFunc func(StreamEvent)

// Separators tried in order when breaking a response into chunks, so that
// lists and headers are not corrupted mid-token.
var chunkSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// chunkText splits text into emission chunks of at most max bytes,
// preferring paragraph, then sentence, clause, and word boundaries.
func chunkText(text string, max int) []string {
	if text == "" {
		return nil
	}
	if max <= 0 || len(text) <= max {
		return []string{text}
	}
	return splitAtBoundary(text, max, 0)
}

func splitAtBoundary(text string, max, sepIdx int) []string {
	if len(text) <= max {
		return []string{text}
	}
	if sepIdx >= len(chunkSeparators) {
		return hardSplit(text, max)
	}
	parts := strings.SplitAfter(text, chunkSeparators[sepIdx])
	if len(parts) == 1 {
		return splitAtBoundary(text, max, sepIdx+1)
	}
	var out []string
	var cur strings.Builder
	for _, part := range parts {
		if cur.Len() > 0 && cur.Len()+len(part) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if len(part) > max {
			out = append(out, splitAtBoundary(part, max, sepIdx+1)...)
			continue
		}
		cur.WriteString(part)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func hardSplit(text string, max int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
