package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/csvsource"
)

// newValidateCSVCmd creates the "validate-csv" command: an offline check of a
// batch input file.
func newValidateCSVCmd(cfg *config.Config) *cobra.Command {
	var (
		csvPath       string
		requireIssuer bool
		defaultIssuer string
	)

	cmd := &cobra.Command{
		Use:   "validate-csv",
		Short: "Validate a batch CSV's headers, fields, duplicates and UID shapes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags([]flagValue{{"csv", csvPath}}); err != nil {
				return err
			}

			report, err := csvsource.Validate(csvPath, requireIssuer, defaultIssuer)
			if err != nil {
				return fmt.Errorf("validating %s: %w", csvPath, err)
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.OK {
				return &ExitError{
					Code:   1,
					Reason: fmt.Sprintf("%d problems found", len(report.Problems)),
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to validate")
	cmd.Flags().BoolVar(&requireIssuer, "require-issuer", true,
		"Fail rows without an issuer_of_patient_id when no default is provided")
	cmd.Flags().StringVar(&defaultIssuer, "default-issuer", cfg.DefaultIssuer,
		"Issuer assumed for rows without one")

	return cmd
}
