package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names of the QA failure table. The codec, combiner, and
// reporting all address fields by these names so header matching
// stays in one place.
const (
	ColIssueID            = "Issue ID"
	ColResultID           = "Result ID"
	ColTestCaseIDs        = "Test Case IDs"
	ColInputPrompt        = "Input Prompt"
	ColGroundTruth        = "Ground Truth"
	ColGeneratedResponse  = "Generated Response"
	ColTheme              = "Linked Theme"
	ColStandard           = "Linked Standard"
	ColSessionIDs         = "Session IDs"
	ColVersionTested      = "Version Tested"
	ColRunDate            = "Run Date"
	ColFailureRationale   = "Failure Rationale"
	ColScore              = "Final Weighted Score (1-3)"
	ColStatus             = "Status"
	ColMergedWith         = "Merged With Issue ID"
	ColMergedIDs          = "Merged IDs"
	ColInvestigationNotes = "Investigation Notes"
	ColComments           = "Comments"
)

// IssueRecord represents one row of the QA failure table
type IssueRecord struct {
	ID                 string      `json:"issue_id"`
	ResultID           string      `json:"result_id,omitempty"`
	TestCaseIDs        string      `json:"test_case_ids,omitempty"`
	InputPrompt        string      `json:"input_prompt"`
	GroundTruth        string      `json:"ground_truth,omitempty"`
	GeneratedResponse  string      `json:"generated_response,omitempty"`
	Theme              string      `json:"linked_theme,omitempty"`
	Standard           string      `json:"linked_standard"`
	SessionIDs         string      `json:"session_ids,omitempty"`
	VersionTested      string      `json:"version_tested,omitempty"`
	RunDate            string      `json:"run_date,omitempty"`
	FailureRationale   string      `json:"failure_rationale"`
	Score              string      `json:"final_score"`
	Status             MergeStatus `json:"status"`
	MergedWith         string      `json:"merged_with,omitempty"`
	MergedIDs          []string    `json:"merged_ids,omitempty"`
	InvestigationNotes string      `json:"investigation_notes,omitempty"`
	Comments           string      `json:"comments,omitempty"`

	// Extra preserves columns the codec does not model so a load/save
	// round trip never drops operator data.
	Extra map[string]string `json:"-"`
}

// Validate checks field values and the merge-state invariant:
// exactly one of open (no links), primary (merged_ids only), or
// merged (merged_with only) holds for every record.
func (r *IssueRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("issue id is required")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %q", string(r.Status))
	}
	if s := strings.TrimSpace(r.Score); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("score must be numeric (got %q)", r.Score)
		}
		if v < 1 || v > 3 {
			return fmt.Errorf("score must be between 1 and 3 (got %s)", s)
		}
	}
	switch r.Status {
	case StatusOpen:
		if r.MergedWith != "" {
			return fmt.Errorf("open issue %s has merged_with set", r.ID)
		}
		if len(r.MergedIDs) > 0 {
			return fmt.Errorf("open issue %s has merged_ids set", r.ID)
		}
	case StatusPrimary:
		if r.MergedWith != "" {
			return fmt.Errorf("primary issue %s has merged_with set", r.ID)
		}
		if len(r.MergedIDs) == 0 {
			return fmt.Errorf("primary issue %s has no merged_ids", r.ID)
		}
	case StatusMerged:
		if r.MergedWith == "" {
			return fmt.Errorf("merged issue %s has no merged_with", r.ID)
		}
		if len(r.MergedIDs) > 0 {
			return fmt.Errorf("merged issue %s has merged_ids set", r.ID)
		}
	}
	return nil
}

// Clone returns a deep copy; MergedIDs and Extra never alias the original
func (r *IssueRecord) Clone() *IssueRecord {
	c := *r
	if r.MergedIDs != nil {
		c.MergedIDs = append([]string(nil), r.MergedIDs...)
	}
	if r.Extra != nil {
		c.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Field returns a combinable content field by column name.
// Unknown names return ok=false so callers can skip fields the
// loaded table does not carry.
func (r *IssueRecord) Field(name string) (string, bool) {
	switch name {
	case ColInputPrompt:
		return r.InputPrompt, true
	case ColFailureRationale:
		return r.FailureRationale, true
	case ColScore:
		return r.Score, true
	case ColInvestigationNotes:
		return r.InvestigationNotes, true
	case ColComments:
		return r.Comments, true
	}
	return "", false
}

// SetField writes a combinable content field by column name
func (r *IssueRecord) SetField(name, value string) bool {
	switch name {
	case ColInputPrompt:
		r.InputPrompt = value
	case ColFailureRationale:
		r.FailureRationale = value
	case ColScore:
		r.Score = value
	case ColInvestigationNotes:
		r.InvestigationNotes = value
	case ColComments:
		r.Comments = value
	default:
		return false
	}
	return true
}

// MergeStatus represents the merge lifecycle state of an issue
type MergeStatus string

const (
	// StatusOpen is the initial state: not part of any merge yet.
	// Stored as an empty cell; "Open" is accepted on load.
	StatusOpen    MergeStatus = ""
	StatusPrimary MergeStatus = "Primary"
	StatusMerged  MergeStatus = "Merged"
)

// IsValid checks if the merge status value is valid
func (s MergeStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusPrimary, StatusMerged:
		return true
	}
	return false
}

// String returns the display form; the open state prints as "Open"
// even though it serializes as an empty cell
func (s MergeStatus) String() string {
	if s == StatusOpen {
		return "Open"
	}
	return string(s)
}

// ParseMergeStatus maps a raw CSV cell to a MergeStatus. Empty and
// "Open" both mean open; anything else beyond the two stored forms
// is rejected rather than defaulted.
func ParseMergeStatus(raw string) (MergeStatus, error) {
	switch strings.TrimSpace(raw) {
	case "", "Open":
		return StatusOpen, nil
	case string(StatusPrimary):
		return StatusPrimary, nil
	case string(StatusMerged):
		return StatusMerged, nil
	}
	return StatusOpen, fmt.Errorf("unrecognized status value: %q", raw)
}

// ValidTransitions defines the valid state transitions for the merge lifecycle.
//
// State Machine Diagram:
//
//	open → primary (absorbs other issues as the merge primary)
//	open → merged  (absorbed into a primary)
//	primary → primary (absorbs further issues in a later merge)
//
// Merged is terminal: a merged issue's MergedWith link is write-once,
// so it can never be re-merged or promoted.
func (s MergeStatus) ValidTransitions() []MergeStatus {
	switch s {
	case StatusOpen:
		return []MergeStatus{StatusPrimary, StatusMerged}
	case StatusPrimary:
		return []MergeStatus{StatusPrimary}
	case StatusMerged:
		return []MergeStatus{} // Terminal state
	default:
		return []MergeStatus{}
	}
}

// CanTransitionTo checks if a transition from this status to the target status is valid
func (s MergeStatus) CanTransitionTo(target MergeStatus) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// MergeGroup is one proposed merge: an ordered member list (first id
// is the primary candidate), the oracle's rationale, and a confidence
// score in [0,1]. Groups come from the oracle or from an operator
// building one by hand.
type MergeGroup struct {
	Issues     []string `json:"issues"`
	Rationale  string   `json:"rationale"`
	Confidence float64  `json:"confidence"`

	// Selected is the operator-edited member subset. When non-empty
	// it replaces Issues as the working list. The primary is always
	// kept; only secondaries can be deselected.
	Selected []string `json:"selected_issues,omitempty"`
}

// NewMergeGroup builds a validated group: at least two non-blank ids
// and a confidence within [0,1]. Ids are trimmed of surrounding
// whitespace.
func NewMergeGroup(issues []string, rationale string, confidence float64) (MergeGroup, error) {
	cleaned := make([]string, 0, len(issues))
	for _, id := range issues {
		id = strings.TrimSpace(id)
		if id == "" {
			return MergeGroup{}, fmt.Errorf("merge group contains a blank issue id")
		}
		cleaned = append(cleaned, id)
	}
	if len(cleaned) < 2 {
		return MergeGroup{}, fmt.Errorf("merge group needs at least 2 issues (got %d)", len(cleaned))
	}
	if confidence < 0.0 || confidence > 1.0 {
		return MergeGroup{}, fmt.Errorf("confidence must be between 0.0 and 1.0 (got %.2f)", confidence)
	}
	return MergeGroup{Issues: cleaned, Rationale: rationale, Confidence: confidence}, nil
}

// Members returns the working id list: the operator selection when
// one exists, the oracle's full list otherwise
func (g MergeGroup) Members() []string {
	if len(g.Selected) > 0 {
		return g.Selected
	}
	return g.Issues
}

// Stats provides aggregate merge-state counts for a table
type Stats struct {
	TotalIssues   int `json:"total_issues"`
	OpenIssues    int `json:"open_issues"`
	PrimaryIssues int `json:"primary_issues"`
	MergedIssues  int `json:"merged_issues"`
	ActiveIssues  int `json:"active_issues"`
	Standards     int `json:"standards"`
}
