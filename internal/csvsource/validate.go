package csvsource

import (
	"fmt"

	"github.com/pacsops/dcmmove/internal/uid"
)

// Report is the outcome of validating an input CSV. It is rendered as JSON by
// the validate-csv command.
type Report struct {
	OK       bool     `json:"ok"`
	Rows     int      `json:"rows"`
	Problems []string `json:"problems"`
}

// Validate checks the CSV at path for structural problems: missing required
// columns, empty required fields, values that do not look like DICOM UIDs,
// and duplicate source or target study UIDs. When requireIssuer is set, rows
// without an issuer (after the default is applied) are flagged.
func Validate(path string, requireIssuer bool, defaultIssuer string) (*Report, error) {
	report := &Report{Problems: []string{}}

	missing, err := missingColumns(path)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		for _, col := range missing {
			report.Problems = append(report.Problems, fmt.Sprintf("missing required column: %s", col))
		}
	}

	rows, err := readRows(path, defaultIssuer)
	if err != nil {
		return nil, err
	}

	srcSeen := map[string]bool{}
	tgtSeen := map[string]bool{}
	for _, r := range rows {
		report.Rows++
		// Header occupies line 1 of the file.
		line := r.num + 1

		if r.src == "" {
			report.Problems = append(report.Problems, fmt.Sprintf("line %d: empty %s", line, colSourceStudyUID))
		} else {
			if !uid.Valid(r.src) {
				report.Problems = append(report.Problems,
					fmt.Sprintf("line %d: %s looks invalid: %s", line, colSourceStudyUID, r.src))
			}
			if srcSeen[r.src] {
				report.Problems = append(report.Problems,
					fmt.Sprintf("line %d: duplicate %s %s", line, colSourceStudyUID, r.src))
			}
			srcSeen[r.src] = true
		}

		if r.pid == "" {
			report.Problems = append(report.Problems, fmt.Sprintf("line %d: empty %s", line, colTargetPatientID))
		}

		if requireIssuer && r.issuer == "" {
			report.Problems = append(report.Problems,
				fmt.Sprintf("line %d: %s missing and no default issuer provided", line, colIssuerOfPatientID))
		}

		if r.tgt != "" {
			if !uid.Valid(r.tgt) {
				report.Problems = append(report.Problems,
					fmt.Sprintf("line %d: %s looks invalid: %s", line, colTargetStudyUID, r.tgt))
			}
			if tgtSeen[r.tgt] {
				report.Problems = append(report.Problems,
					fmt.Sprintf("line %d: duplicate %s %s", line, colTargetStudyUID, r.tgt))
			}
			tgtSeen[r.tgt] = true
		}
	}

	report.OK = len(report.Problems) == 0
	return report, nil
}
