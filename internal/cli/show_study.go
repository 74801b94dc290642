package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/logging"
)

// newShowStudyCmd creates the "show-study" command: a read-only lookup of a
// study's DICOM attributes. It shares the batch engine's token discipline,
// including the one-shot retry after a 401 in OAuth2 mode.
func newShowStudyCmd(cfg *config.Config) *cobra.Command {
	var (
		conn     connFlags
		creds    authFlags
		studyUID string
	)

	cmd := &cobra.Command{
		Use:   "show-study",
		Short: "Retrieve and print a study's DICOM attributes as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShowStudy(cmd, conn, creds, studyUID)
		},
	}

	addConnFlags(cmd, cfg, &conn)
	addAuthFlags(cmd, cfg, &creds)
	cmd.Flags().StringVar(&studyUID, "study-uid", "", "StudyInstanceUID to query")

	return cmd
}

func runShowStudy(cmd *cobra.Command, conn connFlags, creds authFlags, studyUID string) error {
	if err := conn.validate(); err != nil {
		return err
	}
	if err := requireFlags([]flagValue{{"study-uid", studyUID}}); err != nil {
		return err
	}

	manager, err := creds.manager(&conn)
	if err != nil {
		return err
	}
	client, err := conn.client(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	token, err := manager.Token(ctx)
	if err != nil {
		return err
	}

	outcome, err := client.ShowStudy(ctx, token, studyUID)
	if err != nil {
		return err
	}
	if outcome.StatusCode == http.StatusUnauthorized && !manager.Static() {
		logging.FromContext(ctx).Debug().Msg("archive rejected token, refreshing once")
		token, err = manager.ForceRefresh(ctx)
		if err != nil {
			return err
		}
		outcome, err = client.ShowStudy(ctx, token, studyUID)
		if err != nil {
			return err
		}
	}

	if outcome.OK() {
		cmd.Println(renderOK(fmt.Sprintf("OK HTTP %d", outcome.StatusCode)))
		return printJSON(cmd, outcome.DecodedBody())
	}

	cmd.Println(renderError(fmt.Sprintf("ERROR HTTP %d", outcome.StatusCode)))
	if err := printJSON(cmd, map[string]any{
		"status":   "error",
		"http":     outcome.StatusCode,
		"response": outcome.DecodedBody(),
	}); err != nil {
		return err
	}
	return &ExitError{Code: 1, Reason: fmt.Sprintf("show-study failed with HTTP %d", outcome.StatusCode)}
}

// printJSON writes v to the command output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
