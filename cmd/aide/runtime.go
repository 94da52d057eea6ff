// Package main provides runtime wiring for assistant commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/aide/internal/approval"
	"github.com/vinayprograms/aide/internal/audit"
	"github.com/vinayprograms/aide/internal/config"
	"github.com/vinayprograms/aide/internal/gateway"
	"github.com/vinayprograms/aide/internal/notify"
	"github.com/vinayprograms/aide/internal/orchestrator"
	"github.com/vinayprograms/aide/internal/relay"
	"github.com/vinayprograms/aide/internal/roles"
	"github.com/vinayprograms/aide/internal/task"
)

// runtime wires the assistant components together for a single command.
type runtime struct {
	cfg *config.Config

	// Capability providers
	planner llm.Provider
	judge   llm.Provider
	worker  llm.Provider

	// Components
	telem    telemetry.Exporter
	relay    *relay.Client
	gate     *approval.Gate
	auditLog *audit.Log
	gw       *gateway.Gateway
	roles    *roles.Registry
	notifier notify.Notifier
	orch     *orchestrator.Orchestrator
	dog      *orchestrator.Watchdog

	// Storage
	storagePath string

	// Cleanup
	closers []func()
}

// loadConfig loads configuration from the given path, falling back to
// aide.toml and then to defaults when no file exists.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFile("aide.toml")
	if os.IsNotExist(err) {
		return config.Default(), nil
	}
	return cfg, err
}

// newRuntime creates a runtime from loaded configuration.
func newRuntime(cfg *config.Config) *runtime {
	rt := &runtime{cfg: cfg}
	rt.resolveStoragePath()
	return rt
}

// resolveStoragePath expands the audit storage directory.
func (rt *runtime) resolveStoragePath() {
	rt.storagePath = rt.cfg.Storage.Path
	if rt.storagePath == "" {
		home, _ := os.UserHomeDir()
		rt.storagePath = filepath.Join(home, ".local", "aide")
	}
	if len(rt.storagePath) > 0 && rt.storagePath[0] == '~' {
		home, _ := os.UserHomeDir()
		rt.storagePath = filepath.Join(home, rt.storagePath[1:])
	}
}

// setup initializes all runtime components. Returns error on failure.
func (rt *runtime) setup() error {
	if err := rt.cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(rt.storagePath, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	if err := rt.createProviders(); err != nil {
		return err
	}
	rt.setupRelay()
	rt.setupGate()
	if err := rt.setupAudit(); err != nil {
		return err
	}
	rt.setupGateway()
	rt.setupRoles()
	if err := rt.setupNotifier(); err != nil {
		return err
	}
	return rt.setupOrchestrator()
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// createProviders creates the planner, judge, and worker LLM providers.
func (rt *runtime) createProviders() error {
	var err error
	if rt.planner, err = rt.createProvider("planner"); err != nil {
		return err
	}
	if rt.judge, err = rt.createProvider("judge"); err != nil {
		return err
	}
	rt.worker, err = rt.createProvider("worker")
	return err
}

// createProvider creates the LLM provider for a capability profile.
func (rt *runtime) createProvider(profile string) (llm.Provider, error) {
	llmCfg := rt.cfg.GetProfile(profile)
	providerName := llmCfg.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(llmCfg.Model)
	}
	if providerName == "" && llmCfg.Model == "" {
		return nil, fmt.Errorf("LLM model not configured (profile %q)", profile)
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     llmCfg.Model,
		APIKey:    rt.cfg.GetProfileAPIKey(profile),
		MaxTokens: llmCfg.MaxTokens,
		BaseURL:   llmCfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider (profile %q): %w", profile, err)
	}
	return provider, nil
}

// setupRelay creates the executor relay client.
func (rt *runtime) setupRelay() {
	rt.relay = relay.New(relay.Config{
		URL:            rt.cfg.Executor.URL,
		Token:          rt.cfg.ExecutorToken(),
		ConnectTimeout: rt.cfg.ConnectTimeout(),
	})
	rt.addCloser(func() { rt.relay.Close() })
}

// setupGate creates the approval gate.
func (rt *runtime) setupGate() {
	rt.gate = approval.NewGate(
		approval.WithExpiry(time.Duration(rt.cfg.Approval.Expiry) * time.Second),
	)
}

// setupAudit creates the audit log with a JSONL file sink.
func (rt *runtime) setupAudit() error {
	var err error
	rt.auditLog, err = audit.NewLog(filepath.Join(rt.storagePath, "audit.jsonl"))
	if err != nil {
		return fmt.Errorf("creating audit log: %w", err)
	}
	rt.addCloser(func() { rt.auditLog.Close() })
	return nil
}

// setupGateway creates the action gateway with configured timeout overrides.
func (rt *runtime) setupGateway() {
	rt.gw = gateway.New(rt.relay, rt.gate, rt.auditLog)
	for action, secs := range rt.cfg.Timeouts {
		rt.gw.SetTimeout(action, time.Duration(secs)*time.Second)
	}
}

// setupRoles creates the role registry and loads overrides.
func (rt *runtime) setupRoles() {
	rt.roles = roles.NewRegistry()
	if rt.cfg.Roles.Path == "" {
		return
	}
	if err := rt.roles.LoadDir(rt.cfg.Roles.Path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: loading role overrides: %v\n", err)
	}
}

// watchRoles reloads role overrides when files change. Blocks until ctx is done.
func (rt *runtime) watchRoles(ctx context.Context) {
	if !rt.cfg.Roles.Watch || rt.cfg.Roles.Path == "" {
		return
	}
	if err := rt.roles.Watch(ctx, rt.cfg.Roles.Path); err != nil {
		fmt.Fprintf(os.Stderr, "warning: role watcher stopped: %v\n", err)
	}
}

// setupNotifier creates the watchdog report notifier.
func (rt *runtime) setupNotifier() error {
	if rt.cfg.Notify.NATSURL == "" {
		rt.notifier = notify.NewLog()
		return nil
	}
	n, err := notify.NewNATS(rt.cfg.Notify.NATSURL, rt.cfg.Notify.Subject)
	if err != nil {
		return fmt.Errorf("connecting notifier: %w", err)
	}
	rt.notifier = n
	rt.addCloser(n.Close)
	return nil
}

// setupOrchestrator creates the orchestrator, its workers, and the watchdog.
func (rt *runtime) setupOrchestrator() error {
	decomposer := orchestrator.NewDecomposer(rt.planner, rt.roles)
	validator := orchestrator.NewValidator(rt.judge)
	rt.orch = orchestrator.New(task.NewRegistry(), decomposer, validator)

	for _, role := range task.KnownRoles {
		w, err := orchestrator.NewLLMWorker(role, rt.roles, rt.worker)
		if err != nil {
			return fmt.Errorf("creating %s worker: %w", role, err)
		}
		rt.orch.RegisterWorker(w)
	}

	rt.dog = orchestrator.NewWatchdog(rt.orch, rt.notifier)
	rt.dog.Interval = time.Duration(rt.cfg.Watchdog.Interval) * time.Second
	rt.dog.StuckThreshold = time.Duration(rt.cfg.Watchdog.StuckThreshold) * time.Second
	return nil
}

// runGoal plans and executes a goal, returning the process exit code.
func (rt *runtime) runGoal(ctx context.Context, cmd *RunCmd) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go rt.watchRoles(ctx)
	if cmd.Watch {
		go rt.dog.Run(ctx)
	}

	t, err := rt.orch.CreateTask(ctx, cmd.Goal, cmd.Detail, cmd.Priority)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "Running task: %s (%d sub-tasks)\n\n", t.ID, len(t.SubTasks))

	if err := rt.orch.RunTask(ctx, t); err != nil {
		fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		return 1
	}

	output, _ := json.MarshalIndent(t, "", "  ")
	fmt.Println(string(output))

	if t.Status != task.StatusDone {
		fmt.Fprintf(os.Stderr, "\n✗ Task %s\n", t.Status)
		return 1
	}
	fmt.Fprintf(os.Stderr, "\n✓ Task complete\n")
	return 0
}

// invoke sends a single action through the gateway.
func (rt *runtime) invoke(ctx context.Context, cmd *InvokeCmd) int {
	params := make(map[string]interface{}, len(cmd.Param))
	for k, v := range cmd.Param {
		params[k] = v
	}

	result, err := rt.gw.Invoke(ctx, gateway.Request{
		User:     cmd.User,
		Action:   cmd.Action,
		Params:   params,
		Approved: cmd.Approved,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if len(result) > 0 {
		fmt.Println(string(result))
	}
	return 0
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}
