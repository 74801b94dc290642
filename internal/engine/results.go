package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Summary tallies a batch's terminal states.
type Summary struct {
	OK     int `json:"ok"`
	Errors int `json:"error"`
	DryRun int `json:"dry_run,omitempty"`
	Total  int `json:"total"`
}

// Summarize counts records by status.
func Summarize(records []ResultRecord) Summary {
	s := Summary{Total: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case StatusOK:
			s.OK++
		case StatusDryRun:
			s.DryRun++
		case StatusError:
			s.Errors++
		}
	}
	return s
}

// resultHeader is the column order of the results CSV.
var resultHeader = []string{
	"row",
	"source_study_uid",
	"target_study_uid",
	"target_patient_id",
	"issuer_of_patient_id",
	"status",
	"http",
	"error",
}

// WriteResultsCSV writes one row per record to path, sorted by source row so
// the output lines up with the input file regardless of completion order.
func WriteResultsCSV(path string, records []ResultRecord) error {
	sorted := make([]ResultRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(resultHeader); err != nil {
		return fmt.Errorf("writing results header: %w", err)
	}
	for _, rec := range sorted {
		httpCode := ""
		if rec.HTTPCode != 0 {
			httpCode = strconv.Itoa(rec.HTTPCode)
		}
		row := []string{
			strconv.Itoa(rec.Row),
			rec.SourceStudyUID,
			rec.TargetStudyUID,
			rec.TargetPatientID,
			rec.IssuerOfPatientID,
			string(rec.Status),
			httpCode,
			rec.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing result row %d: %w", rec.Row, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing results file: %w", err)
	}
	return f.Close()
}
