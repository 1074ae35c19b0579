package chat

import (
	"context"
	"testing"

	"reportchat/internal/models"
)

func TestSuggestQuestionsParsesLines(t *testing.T) {
	llm := &fakeCompleter{response: "1. What about SEO?\n- How is my funnel?\n\nShould I hire an agency?\n"}
	got := SuggestQuestions(context.Background(), llm, &models.StructuredReport{ExecutiveSummary: "S."}, models.ReportMarketing)
	want := []string{"What about SEO?", "How is my funnel?", "Should I hire an agency?"}
	if len(got) != len(want) {
		t.Fatalf("expected %d questions, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("question %d: want %q got %q", i, want[i], got[i])
		}
	}
}

func TestSuggestQuestionsCapsAtFive(t *testing.T) {
	llm := &fakeCompleter{response: "q1\nq2\nq3\nq4\nq5\nq6\nq7"}
	got := SuggestQuestions(context.Background(), llm, &models.StructuredReport{}, models.ReportWebsite)
	if len(got) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(got))
	}
}

func TestSuggestQuestionsFallsBackOnFailure(t *testing.T) {
	got := SuggestQuestions(context.Background(), &fakeCompleter{err: errFakeProvider}, &models.StructuredReport{}, models.ReportMarketing)
	if len(got) == 0 {
		t.Fatalf("provider failure must fall back to defaults")
	}
	empty := SuggestQuestions(context.Background(), &fakeCompleter{response: "\n\n  \n"}, &models.StructuredReport{}, models.ReportWebsite)
	if len(empty) == 0 {
		t.Fatalf("unparseable output must fall back to defaults")
	}
}
