package models

import (
	"encoding/json"
	"time"
)

// Report is the stored analysis artifact a session discusses. Payload holds
// the structured report as JSON; chat only ever reads it.
type Report struct {
	ID         string     `json:"id"`
	PurchaseID string     `json:"purchase_id"`
	Kind       ReportKind `json:"kind"`
	Payload    string     `json:"payload"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ActionItem is one entry of a report's action plan.
type ActionItem struct {
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// RoadmapPhase groups roadmap items under a phase label.
type RoadmapPhase struct {
	Label string   `json:"label"`
	Items []string `json:"items,omitempty"`
}

// StructuredReport is the parsed shape of a report payload. Every section is
// optional; formatting omits what is absent. Raw set means the payload was a
// plain string (or could not be parsed) and is used verbatim.
type StructuredReport struct {
	Raw               string            `json:"-"`
	ExecutiveSummary  string            `json:"executive_summary,omitempty"`
	RedFlags          []string          `json:"red_flags,omitempty"`
	Opportunities     []string          `json:"opportunities,omitempty"`
	ActionPlan        []ActionItem      `json:"action_plan,omitempty"`
	SocialPerformance map[string]string `json:"social_performance,omitempty"`
	Recommendations   []string          `json:"recommendations,omitempty"`
	Roadmap           []RoadmapPhase    `json:"roadmap,omitempty"`
	FollowUpTopics    []string          `json:"follow_up_topics,omitempty"`
}

// Empty reports whether no recognized section is present.
func (r *StructuredReport) Empty() bool {
	if r == nil {
		return true
	}
	return r.Raw == "" &&
		r.ExecutiveSummary == "" &&
		len(r.RedFlags) == 0 &&
		len(r.Opportunities) == 0 &&
		len(r.ActionPlan) == 0 &&
		len(r.SocialPerformance) == 0 &&
		len(r.Recommendations) == 0 &&
		len(r.Roadmap) == 0 &&
		len(r.FollowUpTopics) == 0
}

// Structured parses the stored payload. A payload that is a JSON string or
// fails to parse becomes a Raw report; parsing never fails outright.
func (r *Report) Structured() *StructuredReport {
	if r == nil {
		return &StructuredReport{}
	}
	var asString string
	if err := json.Unmarshal([]byte(r.Payload), &asString); err == nil {
		return &StructuredReport{Raw: asString}
	}
	var structured StructuredReport
	if err := json.Unmarshal([]byte(r.Payload), &structured); err != nil {
		return &StructuredReport{Raw: r.Payload}
	}
	return &structured
}
