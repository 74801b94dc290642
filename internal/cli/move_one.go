package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/engine"
	"github.com/pacsops/dcmmove/internal/logging"
	"github.com/pacsops/dcmmove/internal/uid"
)

// moveOneParams holds the move-one command's flag values.
type moveOneParams struct {
	sourceStudyUID    string
	targetPatientID   string
	issuerOfPatientID string
	targetStudyUID    string
	orgUIDRoot        string
}

// newMoveOneCmd creates the "move-one" command: a single study move run as a
// one-item batch so the retry policy stays in the engine.
func newMoveOneCmd(cfg *config.Config) *cobra.Command {
	var (
		conn   connFlags
		creds  authFlags
		params moveOneParams
	)

	cmd := &cobra.Command{
		Use:   "move-one",
		Short: "Move a single study onto another patient record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMoveOne(cmd, conn, creds, params)
		},
	}

	addConnFlags(cmd, cfg, &conn)
	addAuthFlags(cmd, cfg, &creds)
	cmd.Flags().StringVar(&params.sourceStudyUID, "source-study-uid", "", "StudyInstanceUID to move")
	cmd.Flags().StringVar(&params.targetPatientID, "target-patient-id", "", "Target PatientID")
	cmd.Flags().StringVar(&params.issuerOfPatientID, "issuer-of-patient-id", cfg.DefaultIssuer,
		"Issuer of the target PatientID (0010,0021)")
	cmd.Flags().StringVar(&params.targetStudyUID, "target-study-uid", "",
		"Target StudyInstanceUID (generated under --org-uid-root when omitted)")
	cmd.Flags().StringVar(&params.orgUIDRoot, "org-uid-root", cfg.OrgUIDRoot,
		"UID root for target StudyInstanceUID generation")

	return cmd
}

func runMoveOne(cmd *cobra.Command, conn connFlags, creds authFlags, params moveOneParams) error {
	if err := conn.validate(); err != nil {
		return err
	}
	if err := requireFlags([]flagValue{
		{"source-study-uid", params.sourceStudyUID},
		{"target-patient-id", params.targetPatientID},
		{"issuer-of-patient-id", params.issuerOfPatientID},
	}); err != nil {
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

	targetStudyUID := params.targetStudyUID
	if targetStudyUID == "" {
		generated, genErr := uid.NewStudyUID(params.orgUIDRoot)
		if genErr != nil {
			return &ExitError{Code: 2, Reason: genErr.Error()}
		}
		targetStudyUID = generated
	}
	cmd.Println(renderInfo("Target StudyInstanceUID: " + targetStudyUID))

	ctx := cmd.Context()
	log := logging.FromContext(ctx)
	ex := engine.NewExecutor(client, manager, engine.Options{
		Concurrency: 1,
		Logger:      logging.ComponentLogger(*log, "engine"),
	})

	records := ex.Execute(ctx, []engine.WorkItem{{
		Row:               1,
		SourceStudyUID:    params.sourceStudyUID,
		TargetPatientID:   params.targetPatientID,
		IssuerOfPatientID: params.issuerOfPatientID,
		TargetStudyUID:    targetStudyUID,
	}})
	rec := records[0]

	out := map[string]any{
		"status":                 rec.Status,
		"targetStudyInstanceUID": rec.TargetStudyUID,
		"attempts":               rec.Attempts,
	}
	if rec.HTTPCode != 0 {
		out["http"] = rec.HTTPCode
	}
	if rec.ErrorMessage != "" {
		out["error"] = rec.ErrorMessage
	}

	if rec.Status == engine.StatusOK {
		cmd.Println(renderOK(fmt.Sprintf("OK HTTP %d", rec.HTTPCode)))
		return printJSON(cmd, out)
	}

	cmd.Println(renderError("ERROR " + rec.ErrorMessage))
	if err := printJSON(cmd, out); err != nil {
		return err
	}
	return &ExitError{Code: 1, Reason: "move failed"}
}
