package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cache"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/cortex"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/llm"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/logging"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/model"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/store"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/worker"
)

// newAgent builds the configured backend; tests swap it for a scripted agent
var newAgent = llm.NewAgent

// app bundles the resources one command invocation shares
type app struct {
	cfg    *model.Config
	logger *slog.Logger
	deps   llm.Deps
	store  *store.SQLiteStore // nil unless store.enabled
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	a := &app{
		cfg:    cfg,
		logger: logger,
		deps: llm.Deps{
			Limiter: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
			Cache:   cache.New(cfg.Cache),
			Logger:  logger,
		},
	}

	if cfg.Store.Enabled {
		s, err := store.Open(cache.ExpandHome(cfg.Store.Path))
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		a.store = s
	}

	return a, nil
}

// agent builds the backend every pipeline stage talks to
func (a *app) agent() (llm.Agent, error) {
	return newAgent(a.cfg, a.deps)
}

// session builds a hosted-agent session for commands that need thread or
// metadata endpoints
func (a *app) session() (*cortex.Session, error) {
	return llm.NewCortexSession(a.cfg, a.deps)
}

// saveReport records a finished run when history is enabled
func (a *app) saveReport(ctx context.Context, report *model.Report) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveRun(ctx, report); err != nil {
		a.logger.Warn("failed to save run", "run_id", report.RunID, "error", err)
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Saved run %s\n", report.RunID)
	}
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
