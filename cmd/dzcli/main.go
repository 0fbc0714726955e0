// Command dzcli is the command-line client for the DoubleZero control
// plane: thin glue over the local provisioning daemon's unix socket,
// the way the teacher's telemetry-data CLI is thin glue over its own
// data queries.
package main

import (
	"os"

	"github.com/dz-core/serviceability/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
