package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/marksearch/internal/aggregate"
	"github.com/sells-group/marksearch/internal/browser"
	"github.com/sells-group/marksearch/internal/config"
	"github.com/sells-group/marksearch/internal/metrics"
	"github.com/sells-group/marksearch/internal/resilience"
	"github.com/sells-group/marksearch/internal/source"
	"github.com/sells-group/marksearch/internal/store"
)

// searchEnv bundles the long-lived search dependencies.
type searchEnv struct {
	Browser      *browser.Manager
	Registry     *source.Registry
	Orchestrator *aggregate.Orchestrator
	Metrics      *metrics.Metrics
	Store        store.Store // nil when history is disabled
}

// Close releases the browser and the store.
func (e *searchEnv) Close() {
	if e.Browser != nil {
		if err := e.Browser.Close(); err != nil {
			zap.L().Warn("close browser", zap.Error(err))
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initEnv wires the browser manager, registry adapters and orchestrator from
// c. The store is opened only when withStore is set. Callers should defer
// env.Close().
func initEnv(ctx context.Context, c *config.Config, withStore bool) (*searchEnv, error) {
	launch, err := browser.NewLauncher(c.Browser.Engine,
		browser.ChromeOptions{
			ExecPath:  c.Browser.ExecPath,
			Headless:  c.Browser.Headless,
			NoSandbox: c.Browser.NoSandbox,
			UserAgent: c.Browser.UserAgent,
		},
		browser.StaticOptions{UserAgent: c.Browser.UserAgent},
	)
	if err != nil {
		return nil, eris.Wrap(err, "init browser")
	}

	profiles, err := source.LoadProfiles(c.Sources.ProfilesPath)
	if err != nil {
		return nil, err
	}

	env := &searchEnv{
		Browser: browser.NewManager(launch),
		Metrics: metrics.New(),
	}

	retry := resilience.FromRetryConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)
	env.Registry, err = source.Build(profiles, c.Sources.Enabled, env.Browser, retry)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Orchestrator = aggregate.New(env.Registry,
		aggregate.WithTimeout(time.Duration(c.Sources.TimeoutSecs)*time.Second),
		aggregate.WithMetrics(env.Metrics),
	)

	if withStore {
		env.Store, err = store.Open(ctx, c.Store.Driver, c.Store.DatabaseURL)
		if err != nil {
			env.Close()
			return nil, err
		}
	}

	zap.L().Debug("search environment ready",
		zap.String("engine", c.Browser.Engine),
		zap.Strings("sources", env.Registry.IDs()),
		zap.Bool("history", env.Store != nil),
	)
	return env, nil
}
