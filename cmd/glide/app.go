package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/glide/internal/agent"
	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/governance"
	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/tools"
	"github.com/rahul/glide/pkg/config"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	store     *store.Store
	logger    *observability.Logger
	flows     *flow.Coordinator
	companion *agent.Companion
}

// newApp loads config and wires storage, the model and the coordinator.
// Commands that never call the model still need a provider configured.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	events := io.Discard
	if verbose {
		events = os.Stderr
	}
	logger := observability.NewLogger().WithOutput(events).WithLLMLogPath(cfg.Logging.LLMLog)

	st, err := store.Open(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	policy, err := governance.NewPolicyEngine(cfg.Policy.DenyPatterns)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("policy: %w", err)
	}
	for _, name := range cfg.Policy.DenyTools {
		policy.DenySubject(name)
	}

	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		st.Close()
		return nil, fmt.Errorf("no enabled provider found in config")
	}
	model, err := newModel(pName, pCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("provider %s: %w", pName, err)
	}

	prompts := agent.NewPromptManager(cfg.Generation.PromptsDir)

	orch := agent.NewOrchestrator(model, prompts, logger)
	orch.ModelName = pCfg.Model
	orch.Streaming = cfg.Generation.Streaming
	orch.Timeout = cfg.Generation.Timeout

	coord := flow.NewCoordinator(st, orch, logger)
	coord.Policy = policy

	registry := tools.NewRegistry()
	if search, err := tools.NewSearchTool(5); err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		registry.Register(search)
	}
	registry.Register(tools.NewReadPageTool())
	registry.Register(tools.NewNextStepsTool(coord))
	registry.Register(tools.NewReminderTool(st))

	companion := agent.NewCompanion(model, registry, st, prompts)
	companion.Policy = policy
	companion.Logger = logger

	return &app{
		cfg:       cfg,
		store:     st,
		logger:    logger,
		flows:     coord,
		companion: companion,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newModel(name string, p config.ProviderConfig) (llms.Model, error) {
	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		serverURL := p.BaseURL
		if serverURL == "" {
			serverURL = "http://localhost:11434"
		}
		opts := []ollama.Option{ollama.WithServerURL(serverURL)}
		if p.Model != "" {
			opts = append(opts, ollama.WithModel(p.Model))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s is not supported", name)
	}
}
