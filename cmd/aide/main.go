// Package main is the entry point for the aide CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/aide/internal/audit"
	"github.com/vinayprograms/aide/internal/config"
	"github.com/vinayprograms/aide/internal/gateway"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	// Load .env for executor tokens and LLM API keys
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("aide"),
		kong.Description("Remote action orchestration for a personal assistant"),
		kongVars(),
	)

	switch parser.Command() {
	case "run <goal>":
		os.Exit(runGoal(&cli.Run))
	case "invoke <action>":
		os.Exit(invokeAction(&cli.Invoke))
	case "actions":
		os.Exit(listActions(&cli.Actions))
	case "validate-config", "validate-config <config>":
		os.Exit(validateConfig(&cli.ValidateConfig))
	case "version":
		fmt.Printf("aide version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	default:
		parser.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runGoal handles the run command.
func runGoal(cmd *RunCmd) int {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	rt := newRuntime(cfg)
	if err := rt.setup(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		rt.cleanup()
		return 1
	}
	defer rt.cleanup()

	ctx, cancel := signalContext()
	defer cancel()
	return rt.runGoal(ctx, cmd)
}

// invokeAction handles the invoke command.
func invokeAction(cmd *InvokeCmd) int {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	rt := newRuntime(cfg)
	if err := rt.setup(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		rt.cleanup()
		return 1
	}
	defer rt.cleanup()

	ctx, cancel := signalContext()
	defer cancel()
	return rt.invoke(ctx, cmd)
}

// listActions prints the action table, or with --audit the tail of the
// audit trail.
func listActions(cmd *ActionsCmd) int {
	if cmd.Audit {
		return dumpAudit(cmd)
	}
	fmt.Printf("%-20s %-14s %-10s %s\n", "ACTION", "TIER", "TIMEOUT", "DESTINATION")
	for _, spec := range gateway.Actions() {
		dest := "-"
		if spec.DestinationKey != "" {
			dest = spec.DestinationKey
		}
		fmt.Printf("%-20s %-14s %-10s %s\n", spec.Name, spec.Tier, spec.Timeout, dest)
	}
	return 0
}

// dumpAudit prints the last records from the audit trail file.
func dumpAudit(cmd *ActionsCmd) int {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}
	rt := newRuntime(cfg)
	records, err := audit.ReadFile(filepath.Join(rt.storagePath, "audit.jsonl"), cmd.Tail)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading audit trail: %v\n", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("no audit records")
		return 0
	}
	for _, rec := range records {
		fmt.Println(rec.Line())
	}
	return 0
}

// validateConfig checks a config file without connecting anywhere.
func validateConfig(cmd *ValidateConfigCmd) int {
	cfg, err := config.LoadFile(cmd.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Error: %v\n", err)
		return 1
	}
	fmt.Println("✓ Valid")
	return 0
}
