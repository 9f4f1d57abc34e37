// Package ai implements the merge oracle on the Anthropic messages
// API: it proposes merge-candidate groups for open issues sharing a
// standard, and produces the qualitative dataset analysis a report is
// built from. Calls run behind retry with exponential backoff, a
// circuit breaker, a concurrency semaphore, and an optional
// client-side rate limit. Responses go through layered JSON cleanup
// since models wrap payloads in markdown and prose.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/steveyegge/qamerge/internal/analysis"
	"github.com/steveyegge/qamerge/internal/types"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ModelSonnet is the default model. Merge matching and dataset
// analysis both need real reasoning; there is no cheap-model tier
// here.
const ModelSonnet = "claude-sonnet-4-5-20250929"

const defaultMaxTokens = 4096

// OracleError is a per-standard-group oracle failure: transport,
// timeout, or an unusable response. The ingestor logs these and skips
// the standard; other standards still run.
type OracleError struct {
	Standard string
	Err      error
}

func (e *OracleError) Error() string {
	if e.Standard != "" {
		return fmt.Sprintf("oracle failed for standard %q: %v", e.Standard, e.Err)
	}
	return fmt.Sprintf("oracle failed: %v", e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// Options configures the oracle client
type Options struct {
	APIKey            string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model             string      // Model to use (default: claude-sonnet-4-5-20250929)
	MaxTokens         int         // Response token cap (default: 4096)
	Retry             RetryConfig // Retry configuration (uses defaults if not specified)
	RequestsPerMinute int         // Client-side rate limit (0 = unlimited)
}

// Client is the Anthropic-backed similarity oracle.
type Client struct {
	api       *anthropic.Client
	model     string
	maxTokens int
	retry     RetryConfig
	breaker   *CircuitBreaker
	limiter   *rate.Limiter
	sem       *semaphore.Weighted
}

// NewClient creates an oracle client
func NewClient(opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := opts.Model
	if model == "" {
		model = ModelSonnet
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	retry := opts.Retry
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}

	api := anthropic.NewClient(option.WithAPIKey(apiKey))

	var breaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), 1)
	}

	return &Client{
		api:       &api,
		model:     model,
		maxTokens: maxTokens,
		retry:     retry,
		breaker:   breaker,
		limiter:   limiter,
		sem:       sem,
	}, nil
}

// complete sends one prompt and returns the concatenated text blocks.
func (c *Client) complete(ctx context.Context, operation, prompt string) (string, error) {
	var responseText string
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		response, err := c.api.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: int64(c.maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return fmt.Errorf("anthropic API call failed: %w", err)
		}

		responseText = ""
		for _, block := range response.Content {
			if block.Type == "text" {
				responseText += block.Text
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return responseText, nil
}

// IssueSummary is one open issue as presented to the model for merge
// analysis.
type IssueSummary struct {
	IssueID          string `json:"issue_id"`
	InputPrompt      string `json:"input_prompt"`
	FailureRationale string `json:"failure_rationale"`
	LinkedStandard   string `json:"linked_standard"`
	FinalScore       string `json:"final_score"`
}

// Summarize converts a record to the oracle's request row.
func Summarize(rec types.IssueRecord) IssueSummary {
	return IssueSummary{
		IssueID:          rec.ID,
		InputPrompt:      rec.InputPrompt,
		FailureRationale: rec.FailureRationale,
		LinkedStandard:   strings.TrimSpace(rec.Standard),
		FinalScore:       rec.Score,
	}
}

// mergeSuggestionResponse is the JSON shape the model returns for a
// merge analysis request.
type mergeSuggestionResponse struct {
	MergeGroups []mergeGroupSuggestion `json:"merge_groups"`
}

type mergeGroupSuggestion struct {
	Issues     []string `json:"issues"`     // ids to merge, first listed is the proposed primary
	Rationale  string   `json:"rationale"`  // why these belong together
	Confidence float64  `json:"confidence"` // 0.0-1.0
}

// SuggestMerges asks the model which of the given issues describe the
// same underlying failure. All issues must share one standard. The
// returned groups are shape-validated but not yet checked against the
// store. Oracle failures come back as *OracleError so callers can skip
// the standard and keep going.
func (c *Client) SuggestMerges(ctx context.Context, standard string, issues []IssueSummary) ([]types.MergeGroup, error) {
	if len(issues) < 2 {
		return nil, fmt.Errorf("merge analysis needs at least 2 issues (got %d)", len(issues))
	}

	prompt, err := buildMergePrompt(issues)
	if err != nil {
		return nil, &OracleError{Standard: standard, Err: err}
	}

	operation := fmt.Sprintf("merge analysis for %q", standard)
	responseText, err := c.complete(ctx, operation, prompt)
	if err != nil {
		return nil, &OracleError{Standard: standard, Err: err}
	}

	groups, err := parseMergeSuggestions(responseText)
	if err != nil {
		return nil, &OracleError{Standard: standard, Err: err}
	}
	return groups, nil
}

// buildMergePrompt builds the merge analysis prompt for one standard's
// open issues
func buildMergePrompt(issues []IssueSummary) (string, error) {
	payload, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode issue payload: %w", err)
	}

	return fmt.Sprintf(`You are an expert at analyzing QA issues and identifying patterns and similarities between issues.

ISSUES TO ANALYZE:
%s

TASK:
Identify which issues should be merged based on similar root causes or overlapping problems.
For each potential merge, explain the rationale and provide a confidence score (0-1).

IMPORTANT GUIDELINES:
1. Look for similar root causes or overlapping problems
2. Issues with similar themes or patterns should be merged
3. Consider all possible relationships between issues
4. Group related issues together - don't split them across multiple suggestions
5. Only suggest merges when there is strong similarity (confidence >= 0.8)
6. You can suggest multiple issues be merged together if they are all related

OUTPUT FORMAT (JSON only, no markdown):
{
  "merge_groups": [
    {
      "issues": ["issue_id_1", "issue_id_2"],
      "rationale": "Explanation for why these should be merged",
      "confidence": 0.95
    }
  ]
}

CONFIDENCE SCORING:
- 0.9-1.0: Same failure, near-identical root cause
- 0.8-0.9: Strong overlap in root cause or failure pattern
- 0.5-0.8: Related but distinct problems (do not suggest)
- 0.0-0.5: Different issues (do not suggest)

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`, payload), nil
}

// parseMergeSuggestions decodes and shape-validates a merge analysis
// response.
func parseMergeSuggestions(responseText string) ([]types.MergeGroup, error) {
	resp, err := Decode[mergeSuggestionResponse](responseText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse merge suggestions: %v (response: %s)",
			err, truncate(responseText, 200))
	}

	groups := make([]types.MergeGroup, 0, len(resp.MergeGroups))
	for i, raw := range resp.MergeGroups {
		group, err := types.NewMergeGroup(raw.Issues, raw.Rationale, raw.Confidence)
		if err != nil {
			return nil, fmt.Errorf("merge group %d is malformed: %w", i, err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// AnalyzeIssues asks the model for a qualitative analysis of the
// active issue set: per-standard patterns, cross-cutting priority
// areas, and an improvement roadmap.
func (c *Client) AnalyzeIssues(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	if req.Coverage.TotalActiveIssues == 0 {
		return nil, fmt.Errorf("no active issues to analyze")
	}

	prompt, err := buildAnalysisPrompt(req)
	if err != nil {
		return nil, &OracleError{Err: err}
	}

	responseText, err := c.complete(ctx, "dataset analysis", prompt)
	if err != nil {
		return nil, &OracleError{Err: err}
	}

	result, err := Decode[analysis.Result](responseText)
	if err != nil {
		return nil, &OracleError{Err: fmt.Errorf("failed to parse analysis: %v (response: %s)",
			err, truncate(responseText, 200))}
	}
	return &result, nil
}

// buildAnalysisPrompt builds the dataset analysis prompt from the
// active-issue digest
func buildAnalysisPrompt(req analysis.Request) (string, error) {
	payload, err := json.MarshalIndent(req.Issues, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode issue payload: %w", err)
	}

	cov := req.Coverage
	return fmt.Sprintf(`You are an expert at analyzing QA testing data for conversational AI systems.

Analyze the following QA testing dataset for a mental health support chatbot named Suzy and identify key patterns, priorities, and recommendations.

DATASET OVERVIEW:
- Total Active Issues: %d
  * Merged Issue Groups: %d
  * Individual Unmerged Issues: %d
- Standards Evaluated: %d

Note: This analysis covers only active issues, which includes merged issue groups and unmerged individual issues.
Individual issues that were merged into groups are not included to avoid redundancy.
Consider merged groups as representing multiple related issues.

DETAILED ISSUES BY STANDARD:
%s

TASK:
1. Identify systemic issues and patterns
2. Prioritize areas for improvement
3. Provide actionable recommendations
4. Suggest concrete steps for implementation

OUTPUT FORMAT (JSON only, no markdown):
{
  "summary": {
    "critical_findings": ["List of 3-5 most critical findings"],
    "overall_assessment": "Brief overall assessment of chatbot performance",
    "dataset_coverage": {
      "total_active_issues": %d,
      "merged_groups": %d,
      "unmerged_issues": %d,
      "standards_count": %d
    }
  },
  "standards_analysis": [
    {
      "standard": "Standard name",
      "total_issues": 123,
      "key_patterns": ["List of identified patterns"],
      "priority_level": "high/medium/low",
      "recommendations": ["List of specific recommendations"]
    }
  ],
  "priority_areas": [
    {
      "area": "Description of problem area",
      "affected_standards": ["List of affected standards"],
      "impact": "Description of user/system impact",
      "suggested_fixes": ["List of suggested fixes"],
      "priority_score": 0-100
    }
  ],
  "improvement_roadmap": [
    {
      "phase": "1/2/3",
      "focus_area": "Description of focus area",
      "actions": ["List of specific actions"],
      "expected_impact": "Description of expected impact",
      "complexity": "high/medium/low"
    }
  ]
}

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences.`,
		cov.TotalActiveIssues, cov.MergedGroups, cov.UnmergedIssues, cov.StandardsCount,
		payload,
		cov.TotalActiveIssues, cov.MergedGroups, cov.UnmergedIssues, cov.StandardsCount), nil
}
