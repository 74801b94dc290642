// Package csvsource reads and validates the batch input CSV, producing
// fully-populated work items so the engine never sees a malformed row.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pacsops/dcmmove/internal/engine"
	"github.com/pacsops/dcmmove/internal/uid"
)

// Column names recognized in the input CSV header (case-insensitive).
const (
	colSourceStudyUID    = "source_study_uid"
	colTargetPatientID   = "target_patient_id"
	colIssuerOfPatientID = "issuer_of_patient_id"
	colTargetStudyUID    = "target_study_uid"
)

// ErrNoHeader is returned for a CSV without a header row.
var ErrNoHeader = errors.New("csv has no header")

// Options configures work item production.
type Options struct {
	// DefaultIssuer fills issuer_of_patient_id when the column is absent
	// or blank. A row with neither is rejected.
	DefaultIssuer string
	// OrgUIDRoot is the organizational root used to generate target study
	// UIDs for rows that leave target_study_uid blank. Empty means
	// uid.DefaultOrgRoot.
	OrgUIDRoot string
}

// row is one raw CSV data row, indexed from 1.
type row struct {
	num    int
	src    string
	pid    string
	issuer string
	tgt    string
}

// readRows parses the CSV at path into raw rows using a case-insensitive
// header map.
func readRows(path string, defaultIssuer string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []row
	for num := 1; ; num++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", num, readErr)
		}
		issuer := field(record, colIssuerOfPatientID)
		if issuer == "" {
			issuer = defaultIssuer
		}
		rows = append(rows, row{
			num:    num,
			src:    field(record, colSourceStudyUID),
			pid:    field(record, colTargetPatientID),
			issuer: issuer,
			tgt:    field(record, colTargetStudyUID),
		})
	}
	return rows, nil
}

// missingColumns reports which required columns are absent from the header.
func missingColumns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	present := map[string]bool{}
	for _, name := range header {
		present[strings.ToLower(strings.TrimSpace(name))] = true
	}

	var missing []string
	for _, required := range []string{colSourceStudyUID, colTargetPatientID} {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing, nil
}

// ReadItems parses the CSV at path into one engine.WorkItem per data row.
// Every item is fully populated: the issuer falls back to the configured
// default and a blank target study UID is generated under the org root. Any
// malformed row fails the whole read; partial batches are not produced.
func ReadItems(path string, opts Options) ([]engine.WorkItem, error) {
	missing, err := missingColumns(path)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	rows, err := readRows(path, opts.DefaultIssuer)
	if err != nil {
		return nil, err
	}

	items := make([]engine.WorkItem, 0, len(rows))
	for _, r := range rows {
		if r.src == "" {
			return nil, fmt.Errorf("row %d: empty %s", r.num, colSourceStudyUID)
		}
		if r.pid == "" {
			return nil, fmt.Errorf("row %d: empty %s", r.num, colTargetPatientID)
		}
		if r.issuer == "" {
			return nil, fmt.Errorf("row %d: %s missing and no default issuer configured", r.num, colIssuerOfPatientID)
		}
		tgt := r.tgt
		if tgt == "" {
			generated, genErr := uid.NewStudyUID(opts.OrgUIDRoot)
			if genErr != nil {
				return nil, fmt.Errorf("row %d: generating %s: %w", r.num, colTargetStudyUID, genErr)
			}
			tgt = generated
		}
		items = append(items, engine.WorkItem{
			Row:               r.num,
			SourceStudyUID:    r.src,
			TargetPatientID:   r.pid,
			IssuerOfPatientID: r.issuer,
			TargetStudyUID:    tgt,
		})
	}
	return items, nil
}
