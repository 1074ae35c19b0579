package chat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"reportchat/internal/models"
)

// FormatReport renders a structured report as a labeled prose briefing for
// injection as conversation context. It is pure and never fails: absent
// sections are omitted, an unrecognized shape degrades to a canonical dump,
// and the result is always non-empty.
func FormatReport(report *models.StructuredReport, kind models.ReportKind) string {
	if report == nil {
		report = &models.StructuredReport{}
	}
	if report.Raw != "" {
		return report.Raw
	}

	var sb strings.Builder
	switch kind {
	case models.ReportWebsite:
		sb.WriteString("Website Analysis Briefing\n")
	default:
		sb.WriteString("Marketing Audit Briefing\n")
	}

	wrote := false
	if report.ExecutiveSummary != "" {
		writeSection(&sb, "Executive Summary", report.ExecutiveSummary)
		wrote = true
	}
	if len(report.RedFlags) > 0 {
		writeList(&sb, "Red Flags", report.RedFlags)
		wrote = true
	}
	if len(report.Opportunities) > 0 {
		writeList(&sb, "Opportunities", report.Opportunities)
		wrote = true
	}
	if len(report.ActionPlan) > 0 {
		sb.WriteString("\nAction Plan:\n")
		for i, item := range report.ActionPlan {
			if item.Detail != "" {
				fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, item.Title, item.Detail)
			} else {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, item.Title)
			}
		}
		wrote = true
	}
	if len(report.SocialPerformance) > 0 {
		sb.WriteString("\nSocial Performance:\n")
		for _, platform := range sortedKeys(report.SocialPerformance) {
			fmt.Fprintf(&sb, "- %s: %s\n", platform, report.SocialPerformance[platform])
		}
		wrote = true
	}
	if len(report.Recommendations) > 0 {
		writeList(&sb, "Recommendations", report.Recommendations)
		wrote = true
	}
	if len(report.Roadmap) > 0 {
		sb.WriteString("\nRoadmap:\n")
		for _, phase := range report.Roadmap {
			fmt.Fprintf(&sb, "- %s\n", phase.Label)
			for _, item := range phase.Items {
				fmt.Fprintf(&sb, "  - %s\n", item)
			}
		}
		wrote = true
	}
	if len(report.FollowUpTopics) > 0 {
		writeList(&sb, "Follow-Up Topics", report.FollowUpTopics)
		wrote = true
	}

	if !wrote {
		return fallbackDump(report, kind)
	}
	return sb.String()
}

// fallbackDump serializes whatever shape we were handed rather than failing;
// a formatting problem must never abort a chat turn.
func fallbackDump(report *models.StructuredReport, kind models.ReportKind) string {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf("%+v", report))
	}
	return fmt.Sprintf("Report data (%s):\n%s", kind, data)
}

func writeSection(sb *strings.Builder, label, body string) {
	sb.WriteString("\n")
	sb.WriteString(label)
	sb.WriteString(":\n")
	sb.WriteString(body)
	sb.WriteString("\n")
}

func writeList(sb *strings.Builder, label string, items []string) {
	sb.WriteString("\n")
	sb.WriteString(label)
	sb.WriteString(":\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
