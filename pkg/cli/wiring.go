package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent-protocol/ucp-shopper/pkg/checkout"
	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/dispatcher"
	"github.com/agent-protocol/ucp-shopper/pkg/observability"
	"github.com/agent-protocol/ucp-shopper/pkg/payment"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
	"github.com/agent-protocol/ucp-shopper/pkg/runners"
	"github.com/agent-protocol/ucp-shopper/pkg/sessions"
	"github.com/agent-protocol/ucp-shopper/pkg/tools"
)

// runtime is the assembled shopper: everything a command needs to serve or
// invoke tools.
type runtime struct {
	cfg     *config.Config
	metrics *observability.Metrics
	runner  *runners.RunnerImpl
}

func buildRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runtime, error) {
	reg, err := registry.Load(cfg.Stores)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}

	opts := checkout.OptionsFromConfig(cfg)
	opts.Logger = log
	mgr := checkout.NewManager(reg, payment.NewMockProcessor(cfg.Payment.SimulatedLatency), opts)
	toolset, err := tools.NewToolset(tools.NewShopTools(&tools.Shop{Registry: reg, Checkout: mgr})...)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	d := dispatcher.New(reg, toolset,
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(metrics),
		dispatcher.WithTracer(observability.NewTracer()))

	svc, err := sessions.NewFromURI(ctx, cfg.Session.URI, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	runner := runners.NewRunner(cfg.Server.AppName, d, svc)
	runner.SetLogger(log)

	log.Debug("runtime assembled",
		slog.String("stores", reg.String()),
		slog.Int("tools", len(d.Declarations())),
		slog.String("session_uri", cfg.Session.URI))

	return &runtime{cfg: cfg, metrics: metrics, runner: runner}, nil
}

func (r *runtime) Close(ctx context.Context) error {
	return r.runner.Close(ctx)
}
