package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/csvsource"
	"github.com/pacsops/dcmmove/internal/engine"
	"github.com/pacsops/dcmmove/internal/logging"
)

// moveBatchParams holds the move-batch command's flag values.
type moveBatchParams struct {
	csvPath       string
	outPath       string
	defaultIssuer string
	orgUIDRoot    string
	concurrency   int
	dryRun        bool
}

// newMoveBatchCmd creates the "move-batch" command: the concurrent CSV-driven
// batch move with streamed per-row results.
func newMoveBatchCmd(cfg *config.Config) *cobra.Command {
	var (
		conn   connFlags
		creds  authFlags
		params moveBatchParams
	)

	cmd := &cobra.Command{
		Use:   "move-batch",
		Short: "Move a batch of studies from a CSV with a bounded worker pool",
		Long: `Move every study listed in a CSV onto its target patient record.

The CSV needs source_study_uid and target_patient_id columns; issuer_of_patient_id
and target_study_uid are optional (the issuer falls back to --default-issuer, blank
target UIDs are generated under --org-uid-root). Moves run on a bounded worker
pool sharing one credential manager; a 401 triggers a single coalesced token
refresh and one retry per row. Every row yields exactly one result line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMoveBatch(cmd, conn, creds, params)
		},
	}

	addConnFlags(cmd, cfg, &conn)
	addAuthFlags(cmd, cfg, &creds)
	cmd.Flags().StringVar(&params.csvPath, "csv", "",
		"Input CSV: source_study_uid,target_patient_id[,issuer_of_patient_id][,target_study_uid]")
	cmd.Flags().StringVar(&params.outPath, "out", "", "Write per-row results CSV to this path")
	cmd.Flags().StringVar(&params.defaultIssuer, "default-issuer", cfg.DefaultIssuer,
		"Fallback IssuerOfPatientID for rows without one")
	cmd.Flags().StringVar(&params.orgUIDRoot, "org-uid-root", cfg.OrgUIDRoot,
		"UID root for generated target StudyInstanceUIDs")
	cmd.Flags().IntVar(&params.concurrency, "concurrency", cfg.Concurrency, "Number of parallel moves")
	cmd.Flags().BoolVar(&params.dryRun, "dry-run", false, "Simulate: no archive or identity provider calls")

	return cmd
}

func runMoveBatch(cmd *cobra.Command, conn connFlags, creds authFlags, params moveBatchParams) error {
	if err := requireFlags([]flagValue{{"csv", params.csvPath}}); err != nil {
		return err
	}

	items, err := csvsource.ReadItems(params.csvPath, csvsource.Options{
		DefaultIssuer: params.defaultIssuer,
		OrgUIDRoot:    params.orgUIDRoot,
	})
	if err != nil {
		return fmt.Errorf("reading %s: %w", params.csvPath, err)
	}

	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	opts := engine.Options{
		Concurrency: params.concurrency,
		DryRun:      params.dryRun,
		Logger:      logging.ComponentLogger(*log, "engine"),
		OnResult: func(rec engine.ResultRecord) {
			cmd.Println(renderResultLine(rec))
		},
	}

	var ex *engine.Executor
	if params.dryRun {
		// The simulation path must work with no credentials configured.
		ex = engine.NewExecutor(nil, nil, opts)
	} else {
		if err := conn.validate(); err != nil {
			return err
		}
		manager, mgrErr := creds.manager(&conn)
		if mgrErr != nil {
			return mgrErr
		}
		client, cliErr := conn.client(cmd)
		if cliErr != nil {
			return cliErr
		}
		ex = engine.NewExecutor(client, manager, opts)
	}

	log.Info().
		Int("items", len(items)).
		Int("concurrency", opts.Concurrency).
		Bool("dry_run", params.dryRun).
		Msg("starting batch")

	records := ex.Execute(ctx, items)

	if params.outPath != "" {
		if err := engine.WriteResultsCSV(params.outPath, records); err != nil {
			return err
		}
		cmd.Println(renderInfo("Wrote results to " + params.outPath))
	}

	summary := engine.Summarize(records)
	if err := printJSON(cmd, map[string]any{"summary": summary}); err != nil {
		return err
	}

	if summary.Errors > 0 {
		return &ExitError{
			Code:   1,
			Reason: fmt.Sprintf("%d of %d moves failed", summary.Errors, summary.Total),
		}
	}
	return nil
}
