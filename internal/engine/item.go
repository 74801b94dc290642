// Package engine runs batches of study moves against the archive with a
// bounded worker pool, a shared credential source and a centralized
// retry-once-on-401 policy.
package engine

// Status is the terminal state of one processed work item.
type Status string

const (
	// StatusOK means the archive accepted the move with a 2xx status.
	StatusOK Status = "ok"
	// StatusError means the item failed terminally.
	StatusError Status = "error"
	// StatusDryRun means the item was simulated and no call was made.
	StatusDryRun Status = "dry-run"
)

// WorkItem is one validated move request. It is immutable once created: the
// row source populates every field, including a generated TargetStudyUID when
// the input left it blank, before the engine ever sees it.
type WorkItem struct {
	// Row is the 1-based data row in the source CSV, kept for reporting.
	Row               int
	SourceStudyUID    string
	TargetPatientID   string
	IssuerOfPatientID string
	TargetStudyUID    string
}

// ResultRecord is the reported outcome for exactly one WorkItem.
type ResultRecord struct {
	Row               int
	SourceStudyUID    string
	TargetStudyUID    string
	TargetPatientID   string
	IssuerOfPatientID string
	Status            Status
	// HTTPCode is the last archive status observed for the item, or 0 when
	// the failure happened before any HTTP exchange completed.
	HTTPCode     int
	ErrorMessage string
	// Attempts counts archive move calls made for the item: 0 when token
	// acquisition failed, 1 normally, 2 after a forced-refresh retry.
	Attempts int
}

// newResult seeds a ResultRecord with the item's identifying fields.
func newResult(item WorkItem) ResultRecord {
	return ResultRecord{
		Row:               item.Row,
		SourceStudyUID:    item.SourceStudyUID,
		TargetStudyUID:    item.TargetStudyUID,
		TargetPatientID:   item.TargetPatientID,
		IssuerOfPatientID: item.IssuerOfPatientID,
	}
}
