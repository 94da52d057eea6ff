// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run            RunCmd            `cmd:"" help:"Decompose a goal into sub-tasks and run it to completion"`
	Invoke         InvokeCmd         `cmd:"" help:"Invoke a single remote action through the approval gate"`
	Actions        ActionsCmd        `cmd:"" help:"List known remote actions with their tiers and timeouts"`
	ValidateConfig ValidateConfigCmd `cmd:"" name:"validate-config" help:"Check the config file for problems"`
	Version        VersionCmd        `cmd:"" help:"Show version information"`
}

// RunCmd plans a goal and executes its sub-tasks.
type RunCmd struct {
	Goal     string `arg:"" help:"Goal to plan and execute"`
	Detail   string `short:"d" help:"Extra context for the planner"`
	Priority int    `default:"1" help:"Task priority (higher runs with more retries budget)"`
	User     string `default:"local" help:"User the task runs for"`
	Config   string `help:"Config file path"`
	Watch    bool   `help:"Run the periodic watchdog alongside the task"`
}

// InvokeCmd sends one action to the remote executor.
type InvokeCmd struct {
	Action   string            `arg:"" help:"Action name (see 'aide actions')"`
	Param    map[string]string `short:"p" help:"Action parameter key=value (repeatable)"`
	User     string            `default:"local" help:"User the invocation runs for"`
	Approved bool              `help:"Mark the invocation as already confirmed by the user"`
	Config   string            `help:"Config file path"`
}

// ActionsCmd lists the action table or dumps the recent audit trail.
type ActionsCmd struct {
	Audit  bool   `help:"Show recent audit records instead of the action table"`
	Tail   int    `default:"20" help:"How many audit records to show with --audit"`
	Config string `help:"Config file path"`
}

// ValidateConfigCmd checks a config file without connecting anywhere.
type ValidateConfigCmd struct {
	Config string `arg:"" optional:"" default:"aide.toml" help:"Config file path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
