// Package cli wires the dcmmove commands: study inspection, single and batch
// moves, and CSV validation.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/logging"
)

// ExitError carries a specific process exit code out of a command. Partial
// batch failures and usage errors use it so main can map them without
// treating them as crashes.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// NewRootCmd creates the root cobra command for the dcmmove CLI. It loads the
// config file for flag defaults, sets up logging in PersistentPreRunE and
// registers the subcommands.
func NewRootCmd(ver string) *cobra.Command {
	cfg, cfgErr := config.Load()
	if cfg == nil {
		cfg = config.Default()
	}

	var logResult *logging.Result

	cmd := &cobra.Command{
		Use:   "dcmmove",
		Short: "Move dcm4chee studies between patients",
		Long: "dcmmove moves DICOM studies between patient records on a dcm4chee archive, " +
			"one at a time or as a concurrent CSV-driven batch with per-row results.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logCfg := logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				File:   cfg.Logging.File,
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logCfg.Level = "debug"
				logCfg.Format = "console"
				logCfg.File = ""
			}

			result := logging.New(logCfg)
			logResult = &result

			logger := logging.ComponentLogger(result.Logger, "cli")
			ctx := logger.WithContext(cmd.Context())
			ctx = logging.ContextWithTraceID(ctx, logging.GetOrGenerateTraceID(ctx))
			cmd.SetContext(ctx)

			if cfgErr != nil {
				logger.Warn().Err(cfgErr).Msg("config file ignored")
			}
			logger.Debug().Str("command", cmd.Name()).Msg("command started")
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if logResult != nil {
				return logResult.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(
		newShowStudyCmd(cfg),
		newMoveOneCmd(cfg),
		newMoveBatchCmd(cfg),
		newValidateCSVCmd(cfg),
	)

	return cmd
}

const rootCmdExample = `  # Inspect a study's DICOM attributes
  dcmmove show-study --base-url https://pacs:8443 --aet ARCHIVE --study-uid 1.2.3.4 --token $TOKEN

  # Move one study onto another patient record
  dcmmove move-one --base-url https://pacs:8443 --aet ARCHIVE \
    --source-study-uid 1.2.3.4 --target-patient-id PAT-9 --issuer-of-patient-id JMS \
    --token-endpoint https://idp/token --client-id mover --client-secret $SECRET

  # Validate a batch CSV without touching the archive
  dcmmove validate-csv --csv moves.csv --default-issuer JMS

  # Simulate a batch, then run it with 8 workers and a results file
  dcmmove move-batch --csv moves.csv --dry-run
  dcmmove move-batch --csv moves.csv --base-url https://pacs:8443 --aet ARCHIVE \
    --concurrency 8 --out results.csv --token $TOKEN`

// requireFlags returns a usage error naming every required flag left unset.
func requireFlags(pairs []flagValue) error {
	var missing []string
	for _, fv := range pairs {
		if fv.value == "" {
			missing = append(missing, "--"+fv.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ExitError{Code: 2, Reason: fmt.Sprintf("required flags missing: %v", missing)}
}

// flagValue pairs a flag name with its resolved value for requireFlags.
type flagValue struct {
	name  string
	value string
}
