// Package suggest turns raw oracle output into vetted merge
// candidates. Open issues are batched per standard, each batch is sent
// to the oracle concurrently, and the proposed groups are filtered
// down to non-overlapping, high-confidence candidates whose members
// all exist in the request.
package suggest

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/steveyegge/qamerge/internal/ai"
	"github.com/steveyegge/qamerge/internal/store"
	"github.com/steveyegge/qamerge/internal/types"
)

// DefaultConfidenceThreshold is the minimum confidence for an
// accepted candidate group.
const DefaultConfidenceThreshold = 0.8

// Oracle proposes merge groups for one standard's open issues.
type Oracle interface {
	SuggestMerges(ctx context.Context, standard string, issues []ai.IssueSummary) ([]types.MergeGroup, error)
}

var _ Oracle = (*ai.Client)(nil)

// Ingestor collects and filters merge candidates from an oracle.
type Ingestor struct {
	oracle    Oracle
	threshold float64
}

// NewIngestor creates an ingestor. A zero threshold means
// DefaultConfidenceThreshold.
func NewIngestor(oracle Oracle, threshold float64) *Ingestor {
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Ingestor{oracle: oracle, threshold: threshold}
}

// standardResult carries one standard's oracle output back to the
// collection pass, indexed so results keep standard order regardless
// of which call finishes first.
type standardResult struct {
	groups []types.MergeGroup
	err    error
}

// Propose asks the oracle about every standard with at least two open
// issues and returns the accepted candidate groups.
//
// Oracle calls run concurrently; the client bounds how many are in
// flight. Per-standard failures are logged and that standard is
// skipped. The acceptance filter runs in oracle-return order across
// standards: a group is accepted iff its confidence meets the
// threshold and no member was already claimed by an earlier accepted
// group. Groups naming ids that were never in the request are dropped
// with a log line and claim nothing.
func (ing *Ingestor) Propose(ctx context.Context, st *store.Store) ([]types.MergeGroup, error) {
	var batches []store.StandardGroup
	for _, g := range st.OpenByStandard() {
		// A single open issue has nothing to pair with.
		if len(g.Records) < 2 {
			continue
		}
		batches = append(batches, g)
	}
	if len(batches) == 0 {
		return nil, nil
	}

	results := make([]standardResult, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch store.StandardGroup) {
			defer wg.Done()
			issues := make([]ai.IssueSummary, len(batch.Records))
			for j, rec := range batch.Records {
				issues[j] = ai.Summarize(rec)
			}
			groups, err := ing.oracle.SuggestMerges(ctx, batch.Standard, issues)
			results[i] = standardResult{groups: groups, err: err}
		}(i, batch)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claimed := make(map[string]bool)
	var accepted []types.MergeGroup
	var failed int
	var lastErr error
	for i, res := range results {
		standard := batches[i].Standard
		if res.err != nil {
			failed++
			lastErr = res.err
			log.Printf("[INGEST] skipping standard %q: %v", standard, res.err)
			continue
		}

		requested := make(map[string]bool, len(batches[i].Records))
		for _, rec := range batches[i].Records {
			requested[rec.ID] = true
		}

		for _, group := range res.groups {
			if group.Confidence < ing.threshold {
				continue
			}
			if unknown := unknownMembers(group, requested); len(unknown) > 0 {
				log.Printf("[INGEST] dropping group for standard %q: unknown issue ids %v", standard, unknown)
				continue
			}
			if overlapsClaimed(group, claimed) {
				continue
			}
			for _, id := range group.Issues {
				claimed[id] = true
			}
			accepted = append(accepted, group)
		}
	}

	if failed == len(batches) {
		return nil, fmt.Errorf("all %d standard groups failed (last: %w)", failed, lastErr)
	}
	return accepted, nil
}

// unknownMembers returns the group's ids that were not part of the
// oracle request.
func unknownMembers(group types.MergeGroup, requested map[string]bool) []string {
	var unknown []string
	for _, id := range group.Issues {
		if !requested[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// overlapsClaimed reports whether any group member was already claimed
// by an earlier accepted group.
func overlapsClaimed(group types.MergeGroup, claimed map[string]bool) bool {
	for _, id := range group.Issues {
		if claimed[id] {
			return true
		}
	}
	return false
}
