// Command dcmmove moves DICOM studies between patient records on a dcm4chee
// archive, singly or as a concurrent CSV-driven batch.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pacsops/dcmmove/internal/cli"
	"github.com/pacsops/dcmmove/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps its error to a process exit code.
func run() int {
	err := cli.NewRootCmd(version.GetVersion()).Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return extractExitCode(err)
}

// extractExitCode returns the exit code carried by a *cli.ExitError, or 1 for
// any other failure.
func extractExitCode(err error) int {
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
