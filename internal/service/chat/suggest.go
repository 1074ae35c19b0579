package chat

import (
	"context"
	"log"
	"strings"

	"reportchat/internal/models"
)

const suggestSystemPrompt = "You help users explore a marketing or website analysis report. " +
	"Given the report briefing, propose questions the user could ask next. " +
	"Output one question per line with no numbering or bullets."

var defaultQuestions = map[models.ReportKind][]string{
	models.ReportMarketing: {
		"What's my biggest marketing opportunity right now?",
		"Which red flag should I fix first?",
		"How should I prioritize the action plan?",
	},
	models.ReportWebsite: {
		"What's holding my website back the most?",
		"Which quick wins would improve conversions?",
		"How should I sequence the roadmap?",
	},
}

// SuggestQuestions proposes follow-up questions for a report. Best-effort:
// provider failures degrade to a fixed per-kind default list.
func SuggestQuestions(ctx context.Context, llm Completer, report *models.StructuredReport, kind models.ReportKind) []string {
	briefing := FormatReport(report, kind)
	out, err := llm.Complete(ctx, suggestSystemPrompt, "Report briefing:\n\n"+briefing+"\n\nSuggest 3 to 5 questions.", 0.7)
	if err != nil {
		log.Printf("suggest questions failed, using defaults: %v", err)
		return defaultQuestions[kind]
	}
	var questions []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. "))
		if line == "" {
			continue
		}
		questions = append(questions, line)
		if len(questions) == 5 {
			break
		}
	}
	if len(questions) == 0 {
		return defaultQuestions[kind]
	}
	return questions
}
