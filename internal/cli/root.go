package cli

import (
	"context"
	"os"

	"github.com/matzehuels/sheetblocks/pkg/buildinfo"
)

// SetVersion overrides the build metadata reported by --version.
// Empty values leave the ldflags defaults in place.
func SetVersion(v, c, d string) {
	if v != "" {
		buildinfo.Version = v
	}
	if c != "" {
		buildinfo.Commit = c
	}
	if d != "" {
		buildinfo.Date = d
	}
}

// Execute runs the sheetblocks CLI with an info-level logger on stderr.
//
//	func main() {
//	    if err := cli.Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute() error {
	return New(os.Stderr, LogInfo).RootCommand().ExecuteContext(context.Background())
}
