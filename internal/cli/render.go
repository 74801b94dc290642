package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/pacsops/dcmmove/internal/engine"
)

// Status line styles. Rendering degrades to plain text when stdout is not a
// terminal, so piped output stays clean.
var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) //nolint:gochecknoglobals // render styles
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  //nolint:gochecknoglobals // render styles
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")) //nolint:gochecknoglobals // render styles
)

// stdoutIsTerminal is overridable in tests.
var stdoutIsTerminal = func() bool { //nolint:gochecknoglobals // swapped in tests
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// styled applies style only for terminal output.
func styled(style lipgloss.Style, s string) string {
	if !stdoutIsTerminal() {
		return s
	}
	return style.Render(s)
}

func renderOK(s string) string    { return styled(styleOK, s) }
func renderError(s string) string { return styled(styleError, s) }
func renderInfo(s string) string  { return styled(styleInfo, s) }

// renderResultLine formats one streamed batch result in the original tool's
// line format, colorized by status.
func renderResultLine(rec engine.ResultRecord) string {
	var b strings.Builder
	tag := fmt.Sprintf("[%s]", rec.Status)
	switch rec.Status {
	case engine.StatusOK:
		b.WriteString(renderOK(tag))
	case engine.StatusError:
		b.WriteString(renderError(tag))
	default:
		b.WriteString(renderInfo(tag))
	}
	fmt.Fprintf(&b, " row=%d src=%s -> tgtStudy=%s pid=%s issuer=%s",
		rec.Row, rec.SourceStudyUID, rec.TargetStudyUID, rec.TargetPatientID, rec.IssuerOfPatientID)
	if rec.HTTPCode != 0 {
		fmt.Fprintf(&b, " http=%d", rec.HTTPCode)
	}
	if rec.Attempts > 1 {
		fmt.Fprintf(&b, " attempts=%d", rec.Attempts)
	}
	if rec.ErrorMessage != "" {
		fmt.Fprintf(&b, " err=%s", rec.ErrorMessage)
	}
	return b.String()
}
