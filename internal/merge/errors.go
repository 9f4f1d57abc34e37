package merge

import "fmt"

// ValidationError reports a merge group that failed pre-merge
// validation. The store is untouched when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("merge validation failed: %s", e.Reason)
}

// AuditWriteError reports a merge abandoned because its audit entry
// could not be written. The store mutation is discarded; an unaudited
// merge never commits.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error {
	return e.Err
}
