package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled patterns for response cleanup. Model output wraps JSON
// in markdown fences, prose, comments, and trailing commas often
// enough that every parse goes through the same fallback chain.
var (
	// Code fence patterns, newlines optional.
	// Matches: ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	fenceWholeRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	fenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	// JSON cleanup patterns
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex   = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	lineCommentRegex   = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Extraction patterns, greedy so nested structures survive.
	// The first-character check in extractJSON prevents over-matching
	// in most cases.
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// Decode parses a model response into T.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Strip code fences and retry
//  3. Fix common JSON issues (trailing commas, unquoted keys,
//     comments) and retry
//  4. Extract a JSON object or array from mixed content and retry
func Decode[T any](text string) (T, error) {
	var zero T

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("empty response")
	}

	// Strategy 1: direct parse
	if out, err := tryUnmarshal[T](trimmed); err == nil {
		return out, nil
	}

	// Strategy 2: remove code fences and try again
	unfenced := stripCodeFences(trimmed)
	if unfenced != trimmed {
		if out, err := tryUnmarshal[T](unfenced); err == nil {
			return out, nil
		}
	}

	// Strategy 3: fix common JSON issues
	cleaned := cleanupJSON(unfenced)
	if out, err := tryUnmarshal[T](cleaned); err == nil {
		return out, nil
	}

	// Strategy 4: extract JSON from mixed content, using the cleaned
	// text so stray fences don't end up inside the match
	if extracted := extractJSON(cleaned); extracted != "" {
		if out, err := tryUnmarshal[T](extracted); err == nil {
			return out, nil
		}
	}

	return zero, fmt.Errorf("no parsable JSON in response")
}

// tryUnmarshal attempts a direct JSON parse without any cleanup.
func tryUnmarshal[T any](text string) (T, error) {
	var out T
	err := json.Unmarshal([]byte(text), &out)
	return out, err
}

// stripCodeFences removes markdown code fences. Handles ```json and
// bare ``` fences, plus single backticks wrapping the whole payload.
func stripCodeFences(text string) string {
	cleaned := fenceWholeRegex.ReplaceAllString(text, "$1")

	// Whole-string fence didn't match; look for one anywhere.
	if cleaned == text {
		cleaned = fenceAnyRegex.ReplaceAllString(text, "$1")
	}

	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}

	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes common formatting slop:
//   - trailing commas before closing braces/brackets
//   - unquoted object keys (JavaScript identifiers only)
//   - // and /* */ comments
//
// Single quotes are left alone: rewriting them would corrupt valid
// JSON containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = lineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = blockCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls a JSON object or array out of surrounding prose.
// The first JSON-like character decides which shape to look for, so an
// object nested inside an array is not mistaken for the payload.
// Returns "" when nothing JSON-like is present.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}

	// Mixed content: objects first, they're the common response shape.
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

// truncate shortens s for inclusion in error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
