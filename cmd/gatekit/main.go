// Command gatekit is the CLI entrypoint: search, schema, exec, manage,
// servers, skills, status. Grounded on the teacher's cmd/scooter-cli
// dispatching straight into internal/cli/commands.Execute.
package main

import (
	"fmt"
	"os"

	"github.com/gatekit/gatekit/internal/cli/commands"
	"github.com/gatekit/gatekit/internal/sandbox"
)

func main() {
	sandbox.RunRlimitShim()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
