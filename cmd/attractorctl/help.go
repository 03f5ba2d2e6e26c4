// ABOUTME: Help display for the attractorctl CLI with grouped flags and examples.
package main

import (
	"fmt"
	"io"
)

// printHelp writes a formatted help message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "attractorctl %s — DOT-based workflow pipeline runner\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  attractorctl <pipeline.dot>               Run a pipeline")
	fmt.Fprintln(w, "  attractorctl -validate <pipeline.dot>     Validate without executing")
	fmt.Fprintln(w, "  attractorctl -resume <cp.json> <pipeline.dot>  Resume from a checkpoint")
	fmt.Fprintln(w, "  attractorctl -server [-addr host:port]    Start the HTTP run server")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -checkpoint-dir <dir>     directory for per-node checkpoint files")
	fmt.Fprintln(w, "  -auto-checkpoint <path>   path overwritten with the latest checkpoint after each successful node")
	fmt.Fprintln(w, "  -resume <path>            resume execution from a saved checkpoint file")
	fmt.Fprintln(w, "  -config <path>            YAML file with operator-wide runner defaults")
	fmt.Fprintln(w, "  -server                   start the HTTP run server instead of executing a pipeline")
	fmt.Fprintln(w, "  -addr <host:port>         listen address for -server (default 127.0.0.1:8420)")
	fmt.Fprintln(w, "  -validate                 parse and validate the graph without executing it")
	fmt.Fprintln(w, "  -version                  print version and exit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  attractorctl examples/linear/pipeline.dot")
	fmt.Fprintln(w, "  attractorctl -validate examples/linear/pipeline.dot")
	fmt.Fprintln(w, "  attractorctl -server -addr 127.0.0.1:8420")
}
