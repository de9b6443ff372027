// cmd/scanforge is the invocation surface spec.md §6 describes: target/port
// tokens, scan-kind selection, pacing/timeout/parallelism overrides, output
// rendering, and the exit-code mapping in pkg/scanerr. Adapted from the
// teacher's cmd/main.go entrypoint-plus-exit-code shape.
package main

import (
	"fmt"
	"os"

	"github.com/scanforge/scanforge/cmd/scanforge/commands"
	"github.com/scanforge/scanforge/pkg/scanerr"
)

func main() {
	cmd := commands.NewCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(scanerr.ExitCode(err))
	}
}
