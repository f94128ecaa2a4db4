// concept2video turns a concept or an SVG diagram into an animated 3D video.
//
// Usage:
//
//	concept2video [--config FILE] [--json] <command> [flags]
//
// Run "concept2video help" for the command list.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ivlev/concept2video/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
