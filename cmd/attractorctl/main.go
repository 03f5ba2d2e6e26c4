// ABOUTME: CLI entrypoint for the attractor pipeline runner with run, validate, and server modes.
// ABOUTME: Wires together the Runner, HTTP server, checkpointing, and file-based operational config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/attractor-run/attractor"
	"github.com/attractor-run/attractor/httpapi"
)

var version = "dev"

// config holds all CLI configuration parsed from flags and positional arguments.
type config struct {
	serverMode         bool
	addr               string
	validateOnly       bool
	checkpointDir      string
	autoCheckpointPath string
	resumeFrom         string
	configPath         string
	showVersion        bool
	pipelineFile       string
}

func main() {
	cfg := parseFlags()

	if cfg.showVersion {
		fmt.Printf("attractorctl %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(cfg))
}

func parseFlags() config {
	var cfg config

	fs := flag.NewFlagSet("attractorctl", flag.ContinueOnError)
	fs.BoolVar(&cfg.serverMode, "server", false, "start the HTTP run server instead of executing a single pipeline")
	fs.StringVar(&cfg.addr, "addr", "", "listen address for -server (default: 127.0.0.1:8420)")
	fs.BoolVar(&cfg.validateOnly, "validate", false, "parse and validate the graph without executing it")
	fs.StringVar(&cfg.checkpointDir, "checkpoint-dir", "", "directory for per-node checkpoint files")
	fs.StringVar(&cfg.autoCheckpointPath, "auto-checkpoint", "", "path overwritten with the latest checkpoint after each successful node")
	fs.StringVar(&cfg.resumeFrom, "resume", "", "resume execution from a saved checkpoint file")
	fs.StringVar(&cfg.configPath, "config", "", "YAML file with operator-wide runner defaults")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")

	fs.Usage = func() {
		printHelp(os.Stderr, version)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() > 0 {
		cfg.pipelineFile = fs.Arg(0)
	}

	return cfg
}

func run(cfg config) int {
	if cfg.serverMode {
		return runServer(cfg)
	}

	if cfg.pipelineFile == "" {
		printHelp(os.Stderr, version)
		return 0
	}

	if cfg.validateOnly {
		return validatePipeline(cfg)
	}

	return runPipeline(cfg)
}

func loadRunnerConfig(cfg config) (attractor.RunnerConfig, error) {
	rc := attractor.RunnerConfig{
		CheckpointDir:      cfg.checkpointDir,
		AutoCheckpointPath: cfg.autoCheckpointPath,
	}
	if cfg.configPath == "" {
		return rc, nil
	}
	fc, err := attractor.LoadFileConfig(cfg.configPath)
	if err != nil {
		return rc, err
	}
	merged := fc.RunnerConfig()
	if cfg.checkpointDir != "" {
		merged.CheckpointDir = cfg.checkpointDir
	}
	if cfg.autoCheckpointPath != "" {
		merged.AutoCheckpointPath = cfg.autoCheckpointPath
	}
	merged.FileDefaults = fc
	return merged, nil
}

func validatePipeline(cfg config) int {
	source, err := os.ReadFile(cfg.pipelineFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	graph, err := attractor.Parse(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		return 1
	}

	diagnostics := attractor.Validate(graph)
	hasErrors := false
	for _, d := range diagnostics {
		fmt.Printf("%s: %s", d.Severity, d.Message)
		if d.NodeID != "" {
			fmt.Printf(" (node %s)", d.NodeID)
		}
		fmt.Println()
		if d.Severity == attractor.SeverityError {
			hasErrors = true
		}
	}
	if hasErrors {
		return 1
	}
	fmt.Println("graph is valid")
	return 0
}

func runPipeline(cfg config) int {
	source, err := os.ReadFile(cfg.pipelineFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	rc, err := loadRunnerConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}
	runner := attractor.NewRunner(rc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *attractor.PipelineResult
	if cfg.resumeFrom != "" {
		graph, perr := attractor.Parse(string(source))
		if perr != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", perr)
			return 1
		}
		result, err = runner.ResumeFromCheckpoint(ctx, graph, cfg.resumeFrom)
	} else {
		result, err = runner.Run(ctx, string(source))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline error: %v\n", err)
		return 1
	}

	fmt.Printf("pipeline %s finished: status=%s nodes=%d\n", result.PipelineID, result.FinalOutcome.Status, len(result.CompletedNodes))
	return 0
}

func runServer(cfg config) int {
	rc, err := loadRunnerConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	srv, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr:         cfg.addr,
		RunnerConfig: rc,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error starting server: %v\n", err)
		return 1
	}

	fmt.Printf("attractorctl server listening\n")
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		return 1
	}
	return 0
}
