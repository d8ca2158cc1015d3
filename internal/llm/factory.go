package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cache"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cortex"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
)

// Deps are the shared resources handed to a backend
type Deps struct {
	Limiter cortex.Limiter
	Cache   cache.Cache
	Logger  *slog.Logger
}

// NewAgent creates the backend selected by cfg.LLM.Provider
func NewAgent(cfg *model.Config, deps Deps) (Agent, error) {
	provider := strings.ToLower(cfg.LLM.Provider)

	switch provider {
	case "", "cortex":
		session, err := NewCortexSession(cfg, deps)
		if err != nil {
			return nil, err
		}
		return session, nil

	case "openai":
		agent, err := NewOpenAIAgent(ConfigFromModel(cfg), deps.Logger)
		if err != nil {
			return nil, err
		}
		return agent, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: cortex, openai)", cfg.LLM.Provider)
	}
}

// NewCortexSession creates a session against the configured hosted agent
func NewCortexSession(cfg *model.Config, deps Deps) (*cortex.Session, error) {
	opts := []cortex.Option{}
	if deps.Limiter != nil {
		opts = append(opts, cortex.WithLimiter(deps.Limiter))
	}
	if deps.Cache != nil {
		opts = append(opts, cortex.WithCache(deps.Cache, 0))
	}
	if deps.Logger != nil {
		opts = append(opts, cortex.WithLogger(deps.Logger))
	}

	return cortex.NewSession(cortex.Config{
		BaseURL:    cfg.Agent.BaseURL,
		Account:    cfg.Agent.Account,
		Database:   cfg.Agent.Database,
		Schema:     cfg.Agent.Schema,
		AgentName:  cfg.Agent.Name,
		Token:      cfg.Agent.Token,
		Timeout:    cfg.Agent.Timeout,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}, opts...)
}

// ConfigFromModel converts the runtime config to an llm.Config
func ConfigFromModel(cfg *model.Config) Config {
	c := DefaultConfig()
	c.Model = cfg.LLM.Model
	c.APIKey = cfg.LLM.APIKey
	c.BaseURL = cfg.LLM.BaseURL
	if cfg.Agent.Timeout > 0 {
		c.Timeout = cfg.Agent.Timeout
	}
	c.HTTPProxy = cfg.HTTP.HTTPProxy
	c.HTTPSProxy = cfg.HTTP.HTTPSProxy
	c.NoProxy = cfg.HTTP.NoProxy
	return c
}
