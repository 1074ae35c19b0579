package chat

import (
	"strings"
	"testing"
)

func TestChunkTextShortInput(t *testing.T) {
	if got := chunkText("", 10); got != nil {
		t.Fatalf("empty input must yield no chunks, got %#v", got)
	}
	got := chunkText("short", 10)
	if len(got) != 1 || got[0] != "short" {
		t.Fatalf("short input must stay whole, got %#v", got)
	}
}

func TestChunkTextPrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph follows.\n\nThird one."
	chunks := chunkText(text, 30)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %#v", chunks)
	}
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks must reassemble to the input")
	}
	for _, chunk := range chunks {
		if len(chunk) > 30 {
			t.Fatalf("chunk over limit: %q", chunk)
		}
	}
}

func TestChunkTextFallsBackToSentences(t *testing.T) {
	text := "One sentence here. Another sentence there. A third sentence now."
	chunks := chunkText(text, 25)
	if strings.Join(chunks, "") != text {
		t.Fatalf("chunks must reassemble to the input")
	}
	for _, chunk := range chunks {
		if len(chunk) > 25 {
			t.Fatalf("chunk over limit: %q", chunk)
		}
	}
}

func TestChunkTextHardSplitPreservesRunes(t *testing.T) {
	text := strings.Repeat("héllo wörld", 20)
	chunks := chunkText(strings.ReplaceAll(text, " ", ""), 16)
	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk)
	}
	if sb.String() != strings.ReplaceAll(text, " ", "") {
		t.Fatalf("hard split corrupted the text")
	}
	for _, chunk := range chunks {
		if !strings.Contains(chunk, "h") && !strings.Contains(chunk, "ö") && !strings.Contains(chunk, "é") {
			continue
		}
		for _, r := range chunk {
			if r == 0xFFFD {
				t.Fatalf("hard split produced invalid rune in %q", chunk)
			}
		}
	}
}
