// Package merge implements the issue-merge lifecycle: validation,
// deterministic field combination, and audited execution.
//
// # Overview
//
// QA failure tables accumulate near-duplicate rows: the same root
// cause surfaces across many test runs. A merge folds a group of
// related issues into one primary record and retires the rest. The
// operation is irreversible on the table itself, so every merge is
// validated first and recorded in an append-only audit log before the
// result is committed.
//
// # Merge Lifecycle
//
// A group of issue ids flows through three stages:
//
//  1. Validate: the group must have at least two distinct existing
//     issues, none already merged, no primary hiding among the
//     secondaries, and a single shared standard. The first failure
//     wins and its reason is surfaced to the operator verbatim.
//  2. Combine: configured content fields from all members fold into
//     the primary. Combination is deterministic; each field has its
//     own policy (max score, bulleted rationale list, annotated
//     notes, first value).
//  3. Execute: the primary becomes Primary and lists its absorbed
//     children; each secondary becomes Merged and points back at the
//     primary. The audit entry is appended before the new table
//     snapshot is handed back, so a merge that cannot be audited
//     never commits.
//
// # Error Handling
//
// Execute returns the caller's store untouched on every failure path.
// ValidationError carries the operator-facing reason; AuditWriteError
// wraps the underlying append failure. Both are recoverable: skip the
// group and continue the session.
package merge
