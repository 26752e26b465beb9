// Command netsweep is a two-phase network scanner with a live-streaming API
// and a persistent scan history.
package main

import (
	"github.com/anstrom/netsweep/cmd/cli"
)

// Build information, set with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
