// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kadirpekel/roshni/config"
	"github.com/kadirpekel/roshni/pkg/agent"
	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/circuitbreaker"
	"github.com/kadirpekel/roshni/pkg/gateway"
	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/llm/catalog"
	"github.com/kadirpekel/roshni/pkg/modelselector"
	"github.com/kadirpekel/roshni/pkg/orchestrator"
	"github.com/kadirpekel/roshni/pkg/project"
	"github.com/kadirpekel/roshni/pkg/scheduler"
	"github.com/kadirpekel/roshni/pkg/tool"
	"github.com/kadirpekel/roshni/pkg/worker"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

// ServeCmd starts the full orchestration core: gateway, scheduler,
// orchestrator, and project store, wired from one config file.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	_ = config.LoadEnvFiles()

	if cli.Config == "" {
		return fmt.Errorf("serve: --config is required")
	}
	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("serve: invalid config: %w", err)
	}

	log := slog.Default()

	deps, err := buildDeployment(cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	if deps.watcher != nil {
		if err := deps.watcher.Start(ctx); err != nil {
			return fmt.Errorf("serve: start registry watcher: %w", err)
		}
	}
	deps.gw.Start()
	if err := deps.sched.Start(); err != nil {
		return fmt.Errorf("serve: start scheduler: %w", err)
	}

	log.Info("roshnid started", "data_dir", cfg.DataDir, "family", cfg.ModelSelector.Family)

	<-ctx.Done()

	deps.sched.Stop()
	deps.gw.Stop()
	deps.workers.Drain(cfg.Global.Performance.Timeout)
	return nil
}

// deployment holds every long-lived component one roshnid process runs,
// so ServeCmd.Run can start/stop them in order and release resources on
// exit.
type deployment struct {
	backend *workflow.Backend
	workers *worker.Pool
	orch    *orchestrator.Orchestrator
	store   *project.Store
	watcher *project.Watcher
	sqlIdx  *project.SQLIndex
	gw      *gateway.Gateway
	sched   *scheduler.Scheduler
}

func (d *deployment) Close() {
	if d.sqlIdx != nil {
		d.sqlIdx.Close()
	}
}

// buildDeployment wires every pkg/* component from cfg: LLM clients, the
// model selector, the tool registry (an empty extension point — concrete
// tool implementations are out of scope), the worker pool and
// orchestrator, the project store and its optional registry-watching
// sidecars, the top-level chat agent, and the gateway/scheduler pair that
// feeds it.
func buildDeployment(cfg *config.Config, log *slog.Logger) (*deployment, error) {
	clients := make(map[string]llm.Client, len(cfg.LLMs))
	reg := llm.NewRegistry()
	for name, llmCfg := range cfg.LLMs {
		client, err := llm.NewClient(llmCfg)
		if err != nil {
			return nil, fmt.Errorf("build deployment: llm %q: %w", name, err)
		}
		clients[name] = client
		if err := reg.Register(name, client); err != nil {
			return nil, fmt.Errorf("build deployment: register llm %q: %w", name, err)
		}
	}

	selector, err := buildSelector(cfg.ModelSelector, reg)
	if err != nil {
		return nil, err
	}

	recovery := buildRecovery(cfg.Agent.Recovery, clients, reg)

	tools := tool.NewRegistry()

	backend := workflow.NewBackend(cfg.DataDir, log)
	workers := worker.New(int64(cfg.Global.Performance.MaxConcurrency), backend, log).
		WithMetrics(worker.NewMetrics(prometheus.DefaultRegisterer))

	toolRetryBaseDur := time.Duration(cfg.Agent.ToolRetryBaseSeconds * float64(time.Second))

	breaker := circuitbreaker.New(circuitbreaker.Config{
		HistorySize:      cfg.Agent.CircuitBreaker.HistorySize,
		FailureThreshold: cfg.Agent.CircuitBreaker.FailureThreshold,
		OpenDuration:     time.Duration(cfg.Agent.CircuitBreaker.OpenDurationSeconds * float64(time.Second)),
	}).WithMetrics(circuitbreaker.NewMetrics(prometheus.DefaultRegisterer))
	hookRunner := agent.NewHookRunner(cfg.Agent.HookSlots, log)
	hooks := []agent.Hook{agent.MetricsHook{Breaker: breaker, Service: "llm"}}

	agentFactory := func(task *workflow.TaskSpec, projectBudget *budget.Budget) *agent.Agent {
		return agent.New(agent.Config{
			Persona:            cfg.Agent.Persona,
			MaxIterations:      cfg.Agent.MaxIterations,
			MaxHistoryMessages: cfg.Agent.MaxHistoryMessages,
			Tools:              tools,
			AllowedTools:       task.AllowedTools,
			ToolMaxAttempts:    cfg.Agent.ToolMaxAttempts,
			ToolRetryBaseDur:   toolRetryBaseDur,
			Selector:           selector,
			Recovery:           recovery,
			Hooks:              hooks,
			Runner:             hookRunner,
			Budget:             projectBudget,
			Log:                log,
		})
	}

	planner := pickPlannerClient(cfg.Agent.Recovery.Fallback, clients)

	orch := orchestrator.New(orchestrator.Dependencies{
		Backend:      backend,
		Workers:      workers,
		AgentFactory: agentFactory,
		Planner:      planner,
		Evaluator:    planner,
		Reviewer:     planner,
		Log:          log,
	})

	store := project.NewStore(orch, backend, cfg.Registry.Dir, log)

	var watcher *project.Watcher
	if cfg.Registry.Watch {
		watcher, err = project.NewWatcher(store, log)
		if err != nil {
			return nil, fmt.Errorf("build deployment: registry watcher: %w", err)
		}
	}

	var sqlIdx *project.SQLIndex
	if cfg.Registry.SQLIndexPath != "" {
		sqlIdx, err = project.OpenSQLIndex(cfg.Registry.SQLIndexPath)
		if err != nil {
			return nil, fmt.Errorf("build deployment: sql index: %w", err)
		}
		if projects, err := store.List(project.ListOptions{}); err == nil {
			if err := sqlIdx.Rebuild(context.Background(), projects); err != nil {
				log.Warn("sql index rebuild failed", "error", err)
			}
		}
	}

	chatAgent := agent.New(agent.Config{
		Persona:            cfg.Agent.Persona,
		MaxIterations:      cfg.Agent.MaxIterations,
		MaxHistoryMessages: cfg.Agent.MaxHistoryMessages,
		Tools:              tools,
		AllowedTools:       cfg.Agent.AllowedTools,
		ToolMaxAttempts:    cfg.Agent.ToolMaxAttempts,
		ToolRetryBaseDur:   toolRetryBaseDur,
		Selector:           selector,
		Recovery:           recovery,
		Hooks:              hooks,
		Runner:             hookRunner,
		Log:                log,
	})

	gw := gateway.New(&gatewayAgent{agent: chatAgent}, gateway.Config{
		Capacity:        cfg.Gateway.Capacity,
		DeadLetterLimit: cfg.Gateway.DeadLetterLimit,
		Log:             log,
	})

	sched, err := scheduler.New(gw.Submit, cfg.Scheduler.Timezone, log)
	if err != nil {
		return nil, fmt.Errorf("build deployment: scheduler: %w", err)
	}
	sched.LoadConfig(cfg.Scheduler)

	return &deployment{
		backend: backend,
		workers: workers,
		orch:    orch,
		store:   store,
		watcher: watcher,
		sqlIdx:  sqlIdx,
		gw:      gw,
		sched:   sched,
	}, nil
}

// gatewayAgent adapts *agent.Agent to gateway.Agent: the two packages
// deliberately define distinct ChatOptions types (gateway's is the
// narrower subset it actually needs) so gateway does not import pkg/agent
// just for field names.
type gatewayAgent struct {
	agent *agent.Agent
}

func (a *gatewayAgent) Chat(ctx context.Context, message string, opts gateway.ChatOptions) (string, error) {
	return a.agent.Chat(ctx, message, agent.ChatOptions{
		Mode:     opts.Mode,
		CallType: opts.CallType,
		Channel:  opts.Channel,
	})
}

// buildSelector resolves cfg's catalog family into a modelselector.Config,
// looking up ModeOverrides/QuietModel model names against that same
// family's catalog entry.
func buildSelector(cfg config.ModelSelectorConfig, reg *llm.Registry) (*modelselector.Selector, error) {
	light, heavy, thinking, ok := catalog.DefaultFamily(cfg.Family)
	if !ok {
		return nil, fmt.Errorf("model selector: unknown family %q", cfg.Family)
	}

	selCfg := modelselector.Config{
		Light:                      light,
		Heavy:                      heavy,
		Thinking:                   thinking,
		ToolResultCharsThreshold:   cfg.ToolResultCharsThreshold,
		ComplexQueryCharsThreshold: cfg.ComplexQueryCharsThreshold,
	}

	if cfg.QuietHoursStart >= 0 && cfg.QuietHoursEnd >= 0 {
		selCfg.QuietHours = &modelselector.QuietHours{Start: cfg.QuietHoursStart, End: cfg.QuietHoursEnd}
	}
	if cfg.QuietModel != "" {
		if model, ok := catalog.Find(cfg.Family, cfg.QuietModel); ok {
			selCfg.QuietModel = &model
		}
	}
	if len(cfg.ModeOverrides) > 0 {
		selCfg.ModeOverrides = make(map[string]llm.ModelConfig, len(cfg.ModeOverrides))
		for mode, modelName := range cfg.ModeOverrides {
			if model, ok := catalog.Find(cfg.Family, modelName); ok {
				selCfg.ModeOverrides[mode] = model
			}
		}
	}
	if len(cfg.HeavyModes) > 0 {
		selCfg.HeavyModes = make(map[string]bool, len(cfg.HeavyModes))
		for _, mode := range cfg.HeavyModes {
			selCfg.HeavyModes[mode] = true
		}
	}

	return modelselector.New(selCfg), nil
}

// buildRecovery resolves the named auth profiles/fallback/alternate-client
// hook the agent's recovery table needs from the
// configured llm clients.
func buildRecovery(cfg config.RecoveryConfig, clients map[string]llm.Client, reg *llm.Registry) agent.RecoveryConfig {
	profiles := make([]agent.AuthProfile, 0, len(cfg.Profiles))
	for _, name := range cfg.Profiles {
		if client, ok := clients[name]; ok {
			profiles = append(profiles, agent.AuthProfile{Name: name, Client: client})
		}
	}

	var fallback llm.Client
	if cfg.Fallback != "" {
		fallback = clients[cfg.Fallback]
	}

	return agent.RecoveryConfig{
		Profiles:        profiles,
		Fallback:        fallback,
		AlternateClient: alternateClientFor(reg),
	}
}

// alternateClientFor resolves a NotFoundError's provider to a different
// configured client for that same provider, grounded on
// pkg/llm/catalog.ResolveAlternate's "same family, substitute model"
// idea: since pkg/llm.Client has no per-call model override, the only
// concrete substitute available at this layer is another registered
// client for the same provider, preferring one whose model differs from
// the one that just failed.
func alternateClientFor(reg *llm.Registry) func(provider, wantModel string) (llm.Client, bool) {
	return func(provider, wantModel string) (llm.Client, bool) {
		var fallbackMatch llm.Client
		for _, c := range reg.List() {
			if c.Provider() != provider {
				continue
			}
			if c.ModelName() != wantModel {
				return c, true
			}
			fallbackMatch = c
		}
		if fallbackMatch != nil {
			return fallbackMatch, true
		}
		return nil, false
	}
}

// pickPlannerClient resolves the single llm.Client used for planning,
// terminal-condition evaluation, and project-review synthesis. No config
// section names a separate planner profile, so the configured recovery
// fallback (chosen, by convention, to be the most capable configured
// model) serves all three; when no fallback is configured, the first llm
// client by name is used for determinism.
func pickPlannerClient(fallbackName string, clients map[string]llm.Client) llm.Client {
	if fallbackName != "" {
		if c, ok := clients[fallbackName]; ok {
			return c
		}
	}
	names := make([]string, 0, len(clients))
	for name := range clients {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	return clients[names[0]]
}
