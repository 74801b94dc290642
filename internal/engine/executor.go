package engine

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pacsops/dcmmove/internal/dcm4chee"
)

// DefaultConcurrency is the worker pool size when none is configured.
const DefaultConcurrency = 4

// Archive is the move surface of the archive client. It must be safe for
// concurrent use.
type Archive interface {
	MoveStudy(ctx context.Context, token string, req dcm4chee.MoveRequest) (*dcm4chee.Outcome, error)
}

// TokenSource supplies bearer tokens to workers. One instance is shared by
// the whole pool; it is responsible for coalescing concurrent refreshes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
	// Static reports whether the token is fixed, in which case a 401 is
	// terminal: re-sending the same token cannot succeed.
	Static() bool
}

// Options configures an Executor.
type Options struct {
	// Concurrency is the worker pool size. Values below 1 mean
	// DefaultConcurrency.
	Concurrency int
	// DryRun simulates the batch: one record per item, zero archive or
	// token calls. Safe to use with nil collaborators.
	DryRun bool
	// OnResult, when set, receives each record as it is produced. Calls
	// are serialized; records arrive in completion order, not input order.
	OnResult func(ResultRecord)
	// Logger receives per-item debug and warn lines.
	Logger zerolog.Logger
}

// Executor drains a batch of independent WorkItems through a bounded worker
// pool. All workers share one TokenSource; retry policy lives here and
// nowhere else.
type Executor struct {
	archive Archive
	tokens  TokenSource
	opts    Options
}

// NewExecutor builds an Executor. archive and tokens may be nil only when
// opts.DryRun is set.
func NewExecutor(archive Archive, tokens TokenSource, opts Options) *Executor {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Executor{archive: archive, tokens: tokens, opts: opts}
}

// Execute processes every item to a terminal state and returns exactly one
// ResultRecord per submitted item, in no particular order. A single item's
// failure never fails the batch. When ctx is cancelled mid-batch, items not
// yet dispatched are reported as failed with a cancellation message and
// in-flight calls run to completion or time out.
func (e *Executor) Execute(ctx context.Context, items []WorkItem) []ResultRecord {
	if e.opts.DryRun {
		return e.simulate(items)
	}

	results := make([]ResultRecord, 0, len(items))
	var mu sync.Mutex
	collect := func(rec ResultRecord) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, rec)
		if e.opts.OnResult != nil {
			e.opts.OnResult(rec)
		}
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, item := range items {
		if ctx.Err() != nil {
			for _, skipped := range items[i:] {
				rec := newResult(skipped)
				rec.Status = StatusError
				rec.ErrorMessage = "cancelled before dispatch: " + ctx.Err().Error()
				collect(rec)
			}
			break
		}

		g.Go(func() error {
			collect(e.processItem(ctx, item))
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// simulate produces one dry-run record per item without touching the archive
// or the token source.
func (e *Executor) simulate(items []WorkItem) []ResultRecord {
	results := make([]ResultRecord, 0, len(items))
	for _, item := range items {
		rec := newResult(item)
		rec.Status = StatusDryRun
		results = append(results, rec)
		if e.opts.OnResult != nil {
			e.opts.OnResult(rec)
		}
	}
	return results
}

// processItem drives one item through its state machine: acquire token, first
// attempt, and at most one forced-refresh retry after a 401. Any other
// failure is terminal on the spot.
func (e *Executor) processItem(ctx context.Context, item WorkItem) ResultRecord {
	rec := newResult(item)
	log := e.opts.Logger.With().
		Int("row", item.Row).
		Str("source_study_uid", item.SourceStudyUID).
		Logger()

	token, err := e.tokens.Token(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("token acquisition failed")
		rec.Status = StatusError
		rec.ErrorMessage = err.Error()
		return rec
	}

	req := dcm4chee.MoveRequest{
		SourceStudyUID:    item.SourceStudyUID,
		TargetStudyUID:    item.TargetStudyUID,
		TargetPatientID:   item.TargetPatientID,
		IssuerOfPatientID: item.IssuerOfPatientID,
	}

	outcome, err := e.archive.MoveStudy(ctx, token, req)
	rec.Attempts = 1
	if err != nil {
		log.Warn().Err(err).Msg("move call failed")
		rec.Status = StatusError
		rec.ErrorMessage = err.Error()
		return rec
	}

	if outcome.StatusCode == http.StatusUnauthorized && !e.tokens.Static() {
		// The archive rejected a token we believed valid. Refresh once,
		// retry once; the second outcome is terminal whatever it is. If the
		// refresh itself fails, the record keeps the 401 that triggered it.
		rec.HTTPCode = outcome.StatusCode
		token, err = e.tokens.ForceRefresh(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("forced token refresh failed")
			rec.Status = StatusError
			rec.ErrorMessage = err.Error()
			return rec
		}

		outcome, err = e.archive.MoveStudy(ctx, token, req)
		rec.Attempts = 2
		if err != nil {
			log.Warn().Err(err).Msg("move retry failed")
			rec.Status = StatusError
			rec.ErrorMessage = err.Error()
			return rec
		}
	}

	rec.HTTPCode = outcome.StatusCode
	if outcome.OK() {
		rec.Status = StatusOK
		log.Debug().Int("http_status", outcome.StatusCode).Int("attempts", rec.Attempts).Msg("study moved")
	} else {
		rec.Status = StatusError
		rec.ErrorMessage = outcome.ErrorMessage()
		log.Warn().Int("http_status", outcome.StatusCode).Int("attempts", rec.Attempts).Msg("move rejected")
	}
	return rec
}
