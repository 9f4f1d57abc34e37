package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/steveyegge/qamerge/internal/analysis"
	"github.com/steveyegge/qamerge/internal/types"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient(Options{})
	if err == nil {
		t.Fatal("expected error when no API key is available")
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if c.model != ModelSonnet {
		t.Errorf("expected default model %s, got %s", ModelSonnet, c.model)
	}
	if c.maxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", defaultMaxTokens, c.maxTokens)
	}
	if c.retry.MaxRetries != 3 {
		t.Errorf("expected default retry config, got %+v", c.retry)
	}
	if c.breaker == nil {
		t.Error("expected circuit breaker enabled by default")
	}
	if c.sem == nil {
		t.Error("expected concurrency limiter enabled by default")
	}
	if c.limiter != nil {
		t.Error("expected no rate limiter unless configured")
	}
}

func TestNewClient_ExplicitOptions(t *testing.T) {
	c, err := NewClient(Options{
		APIKey:            "test-key",
		Model:             "custom-model",
		MaxTokens:         1000,
		RequestsPerMinute: 120,
		Retry: RetryConfig{
			MaxRetries:            1,
			CircuitBreakerEnabled: false,
		},
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if c.model != "custom-model" {
		t.Errorf("expected custom model, got %s", c.model)
	}
	if c.maxTokens != 1000 {
		t.Errorf("expected max tokens 1000, got %d", c.maxTokens)
	}
	if c.breaker != nil {
		t.Error("expected circuit breaker disabled")
	}
	if c.sem != nil {
		t.Error("expected no concurrency limiter when MaxConcurrentCalls is 0")
	}
	if c.limiter == nil {
		t.Error("expected rate limiter when RequestsPerMinute is set")
	}
}

func TestSummarize(t *testing.T) {
	rec := types.IssueRecord{
		ID:               "qa-1",
		InputPrompt:      "ask about dosage",
		FailureRationale: "gave specific medical advice",
		Standard:         "  Safety  ",
		Score:            "2.5",
	}

	sum := Summarize(rec)
	if sum.IssueID != "qa-1" || sum.InputPrompt != "ask about dosage" {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.LinkedStandard != "Safety" {
		t.Errorf("expected trimmed standard, got %q", sum.LinkedStandard)
	}
	if sum.FinalScore != "2.5" {
		t.Errorf("expected score kept as string, got %q", sum.FinalScore)
	}
}

func TestBuildMergePrompt(t *testing.T) {
	issues := []IssueSummary{
		{IssueID: "qa-1", InputPrompt: "p1", FailureRationale: "r1", LinkedStandard: "Safety", FinalScore: "3"},
		{IssueID: "qa-2", InputPrompt: "p2", FailureRationale: "r2", LinkedStandard: "Safety", FinalScore: "2"},
	}

	prompt, err := buildMergePrompt(issues)
	if err != nil {
		t.Fatalf("buildMergePrompt failed: %v", err)
	}

	for _, want := range []string{
		`"issue_id": "qa-1"`,
		`"issue_id": "qa-2"`,
		"confidence >= 0.8",
		`"merge_groups"`,
		"Do NOT wrap it in markdown code fences",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestParseMergeSuggestions_Valid(t *testing.T) {
	response := `{
		"merge_groups": [
			{"issues": ["qa-1", "qa-2"], "rationale": "same refusal pattern", "confidence": 0.9},
			{"issues": ["qa-3", "qa-4", "qa-5"], "rationale": "same hotline mixup", "confidence": 0.85}
		]
	}`

	groups, err := parseMergeSuggestions(response)
	if err != nil {
		t.Fatalf("parseMergeSuggestions failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Issues[0] != "qa-1" || groups[0].Confidence != 0.9 {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
	if len(groups[1].Issues) != 3 || groups[1].Rationale != "same hotline mixup" {
		t.Errorf("unexpected second group: %+v", groups[1])
	}
}

func TestParseMergeSuggestions_Fenced(t *testing.T) {
	response := "```json\n" +
		`{"merge_groups": [{"issues": ["a", "b"], "rationale": "dup", "confidence": 0.8}]}` +
		"\n```"

	groups, err := parseMergeSuggestions(response)
	if err != nil {
		t.Fatalf("parseMergeSuggestions failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
}

func TestParseMergeSuggestions_NoGroups(t *testing.T) {
	groups, err := parseMergeSuggestions(`{"merge_groups": []}`)
	if err != nil {
		t.Fatalf("parseMergeSuggestions failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestParseMergeSuggestions_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
		errorMsg string
	}{
		{
			name:     "not json at all",
			response: "there are no duplicates here",
			errorMsg: "failed to parse merge suggestions",
		},
		{
			name:     "confidence out of range",
			response: `{"merge_groups": [{"issues": ["a", "b"], "rationale": "x", "confidence": 1.5}]}`,
			errorMsg: "merge group 0 is malformed",
		},
		{
			name:     "single-issue group",
			response: `{"merge_groups": [{"issues": ["a"], "rationale": "x", "confidence": 0.9}]}`,
			errorMsg: "merge group 0 is malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMergeSuggestions(tt.response)
			if err == nil {
				t.Fatalf("expected error containing '%s', got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing '%s', got: %v", tt.errorMsg, err)
			}
		})
	}
}

func TestSuggestMerges_RejectsTinyBatch(t *testing.T) {
	c := &Client{}

	_, err := c.SuggestMerges(context.Background(), "Safety", []IssueSummary{{IssueID: "qa-1"}})
	if err == nil {
		t.Fatal("expected error for a single-issue batch")
	}
	if !strings.Contains(err.Error(), "at least 2 issues") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAnalyzeIssues_RejectsEmptyDataset(t *testing.T) {
	c := &Client{}

	_, err := c.AnalyzeIssues(context.Background(), analysis.Request{})
	if err == nil {
		t.Fatal("expected error for an empty dataset")
	}
	if !strings.Contains(err.Error(), "no active issues") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	req := analysis.Request{
		Coverage: analysis.Coverage{
			TotalActiveIssues: 5,
			MergedGroups:      1,
			UnmergedIssues:    4,
			StandardsCount:    2,
		},
		Standards: []string{"Safety", "Empathy"},
		Issues: map[string][]analysis.IssueDigest{
			"Safety": {
				{IssueID: "qa-1", InputPrompt: "p1", Score: 3, Status: "Open"},
			},
			"Empathy": {
				{IssueID: "qa-2", InputPrompt: "p2", Score: 2, Status: "Primary", IsMergedGroup: true},
			},
		},
	}

	prompt, err := buildAnalysisPrompt(req)
	if err != nil {
		t.Fatalf("buildAnalysisPrompt failed: %v", err)
	}

	for _, want := range []string{
		"mental health support chatbot named Suzy",
		"Total Active Issues: 5",
		"Merged Issue Groups: 1",
		"Standards Evaluated: 2",
		`"Safety"`,
		`"issue_id": "qa-1"`,
		`"total_active_issues": 5,`,
		`"standards_count": 2`,
		"Respond with ONLY raw JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestOracleError(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &OracleError{Standard: "Safety", Err: inner}

	if !strings.Contains(err.Error(), `"Safety"`) {
		t.Errorf("expected standard in message, got: %v", err)
	}
	if err.Unwrap() != inner {
		t.Error("expected Unwrap to return the inner error")
	}

	bare := &OracleError{Err: inner}
	if strings.Contains(bare.Error(), "standard") {
		t.Errorf("expected no standard mention, got: %v", bare)
	}
}
