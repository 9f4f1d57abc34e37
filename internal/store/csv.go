package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/steveyegge/qamerge/internal/types"
)

// Load reads the issue table from the CSV file at path
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open issue table: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse reads the issue table from CSV data. Header names are trimmed
// before matching; the three merge columns are created when the file
// does not carry them. Unknown columns are preserved and written back
// on save.
func Parse(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	// Spreadsheet exports often drop trailing empty cells; missing
	// cells read as empty rather than failing the row.
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &SchemaError{Reason: "empty file: no header row"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	columns := make([]string, 0, len(header)+3)
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if _, dup := colIndex[name]; dup {
			continue
		}
		colIndex[name] = i
		columns = append(columns, name)
	}

	var missing []string
	for _, col := range RequiredColumns() {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	for _, col := range []string{types.ColStatus, types.ColMergedWith, types.ColMergedIDs} {
		if _, ok := colIndex[col]; !ok {
			columns = append(columns, col)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []types.IssueRecord
	seen := make(map[string]int)
	rowNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		rowNum++

		status, err := types.ParseMergeStatus(cell(row, types.ColStatus))
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d: %v", rowNum, err)}
		}
		mergedIDs, err := parseMergedIDs(cell(row, types.ColMergedIDs))
		if err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d: %v", rowNum, err)}
		}

		rec := types.IssueRecord{
			ID:                 strings.TrimSpace(cell(row, types.ColIssueID)),
			ResultID:           cell(row, types.ColResultID),
			TestCaseIDs:        cell(row, types.ColTestCaseIDs),
			InputPrompt:        cell(row, types.ColInputPrompt),
			GroundTruth:        cell(row, types.ColGroundTruth),
			GeneratedResponse:  cell(row, types.ColGeneratedResponse),
			Theme:              cell(row, types.ColTheme),
			Standard:           cell(row, types.ColStandard),
			SessionIDs:         cell(row, types.ColSessionIDs),
			VersionTested:      cell(row, types.ColVersionTested),
			RunDate:            cell(row, types.ColRunDate),
			FailureRationale:   cell(row, types.ColFailureRationale),
			Score:              cell(row, types.ColScore),
			Status:             status,
			MergedWith:         strings.TrimSpace(cell(row, types.ColMergedWith)),
			MergedIDs:          mergedIDs,
			InvestigationNotes: cell(row, types.ColInvestigationNotes),
			Comments:           cell(row, types.ColComments),
		}
		for _, name := range columns {
			if knownColumn(name) {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[name] = cell(row, name)
		}

		if err := rec.Validate(); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d: %v", rowNum, err)}
		}
		if prev, dup := seen[rec.ID]; dup {
			return nil, &SchemaError{Reason: fmt.Sprintf("row %d: duplicate issue id %s (first seen at row %d)", rowNum, rec.ID, prev)}
		}
		seen[rec.ID] = rowNum
		records = append(records, rec)
	}

	return newStore(records, columns)
}

// Save writes the table back to path atomically (temp file + rename).
// The column order is the loaded header order with any created merge
// columns appended.
func (s *Store) Save(path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.columns); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i := range s.records {
		row := make([]string, len(s.columns))
		for j, col := range s.columns {
			row[j] = columnValue(&s.records[i], col)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to encode row for %s: %w", s.records[i].ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode table: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write issue table: %w", err)
	}
	return nil
}

func columnValue(rec *types.IssueRecord, col string) string {
	switch col {
	case types.ColIssueID:
		return rec.ID
	case types.ColResultID:
		return rec.ResultID
	case types.ColTestCaseIDs:
		return rec.TestCaseIDs
	case types.ColInputPrompt:
		return rec.InputPrompt
	case types.ColGroundTruth:
		return rec.GroundTruth
	case types.ColGeneratedResponse:
		return rec.GeneratedResponse
	case types.ColTheme:
		return rec.Theme
	case types.ColStandard:
		return rec.Standard
	case types.ColSessionIDs:
		return rec.SessionIDs
	case types.ColVersionTested:
		return rec.VersionTested
	case types.ColRunDate:
		return rec.RunDate
	case types.ColFailureRationale:
		return rec.FailureRationale
	case types.ColScore:
		return rec.Score
	case types.ColStatus:
		return string(rec.Status)
	case types.ColMergedWith:
		return rec.MergedWith
	case types.ColMergedIDs:
		return encodeMergedIDs(rec.MergedIDs)
	case types.ColInvestigationNotes:
		return rec.InvestigationNotes
	case types.ColComments:
		return rec.Comments
	}
	return rec.Extra[col]
}

// parseMergedIDs accepts the stored JSON array form (["i2","i3"]) or
// an empty cell
func parseMergedIDs(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("merged ids must be a JSON array (got %q)", raw)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func encodeMergedIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func knownColumn(name string) bool {
	switch name {
	case types.ColIssueID, types.ColResultID, types.ColTestCaseIDs,
		types.ColInputPrompt, types.ColGroundTruth, types.ColGeneratedResponse,
		types.ColTheme, types.ColStandard, types.ColSessionIDs,
		types.ColVersionTested, types.ColRunDate, types.ColFailureRationale,
		types.ColScore, types.ColStatus, types.ColMergedWith,
		types.ColMergedIDs, types.ColInvestigationNotes, types.ColComments:
		return true
	}
	return false
}
