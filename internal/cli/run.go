package cli

import (
	"context"
	"cropstudy/internal/api"
	"cropstudy/internal/artifact"
	"cropstudy/internal/config"
	"cropstudy/internal/coordinator"
	"cropstudy/internal/cropparam"
	"cropstudy/internal/datasource"
	"cropstudy/internal/gateway"
	"cropstudy/internal/health"
	"cropstudy/internal/observability"
	"cropstudy/internal/poller"
	"cropstudy/internal/postprocess"
	"cropstudy/internal/study"
	"cropstudy/internal/submitter"
	"cropstudy/internal/wps"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// app is the wired set of collaborators for one invocation.
type app struct {
	metrics        *observability.Metrics
	metricsHandler http.Handler
	health         *health.Checker
	coordinator    *coordinator.Coordinator
}

// newApp loads configuration from the environment, applies flag
// overrides and wires the coordinator.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg := config.LoadRunConfig()
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return nil, err
	}

	outputs := wps.OutputIDs{Log: cfg.OutputLog, States: cfg.OutputStates, Summary: cfg.OutputSummary}
	gw := gateway.NewClient(gateway.LoadConfigFromEnv(), metrics)
	ds := datasource.New(gw, cfg.DataURL, cfg.Credential)

	sub := submitter.New(gw, submitter.Target{
		URL:        cfg.WPSURL,
		ProcessID:  cfg.ProcessID,
		Credential: cfg.Credential,
		Outputs:    outputs,
	}, submitter.LoadConfigFromEnv(), metrics)
	pol := poller.New(gw, cfg.Credential, outputs, poller.LoadConfigFromEnv(), nil, metrics)

	coordCfg := coordinator.LoadConfigFromEnv()
	if opts.format != "" {
		coordCfg.Format = opts.format
	}
	overridePool(&coordCfg.SubmitPool.Workers, &coordCfg.SubmitPool.BufferSize, opts.poolSubmit)
	overridePool(&coordCfg.PollPool.Workers, &coordCfg.PollPool.BufferSize, opts.poolPoll)
	overridePool(&coordCfg.LogPool.Workers, &coordCfg.LogPool.BufferSize, opts.poolLog)
	overridePool(&coordCfg.SummaryPool.Workers, &coordCfg.SummaryPool.BufferSize, opts.poolSummary)

	coord := coordinator.New(coordCfg, coordinator.Deps{
		Submitter: sub,
		Poller:    pol,
		Logs:      postprocess.NewLogProcessor(gw, cfg.Credential, metrics),
		Summaries: postprocess.NewSummaryProcessor(gw, cfg.Credential, metrics),
		States:    postprocess.NewStatesFetcher(gw, cfg.Credential, metrics),
		Data:      ds,
		Params:    cropparam.NewLibrary(cfg.ParameterDir, ds),
		Store:     artifact.NewStore(cfg.OutputDir),
		Metrics:   metrics,
	})

	return &app{
		metrics:        metrics,
		metricsHandler: metricsHandler,
		health:         newHealthChecker(gw, cfg),
		coordinator:    coord,
	}, nil
}

func newHealthChecker(gw *gateway.Client, cfg *config.RunConfig) *health.Checker {
	checks := map[string]health.ReadinessChecker{
		"wps": health.WPSProbe(gw, cfg.WPSURL, cfg.Credential),
	}
	if cfg.DataURL != "" {
		checks["datasource"] = health.URLProbe(gw, cfg.DataURL, cfg.Credential)
	}
	return health.NewChecker(checks)
}

func overridePool(workers, buffer *int, n int) {
	if n > 0 {
		*workers = n
		*buffer = 0
	}
}

// close drains the coordinator pools.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.coordinator.Close(ctx); err != nil {
		slog.Warn("Coordinator shutdown error", "error", err)
	}
}

// serveStatus starts the status API on addr. The returned function stops it.
func (a *app) serveStatus(addr, apiKey string) func() {
	router := api.NewRouter(api.RouterConfig{
		Run:            a.coordinator,
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
		HealthChecker:  a.health,
		APIKey:         apiKey,
	})
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting status server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server failed", "error", err)
		}
	}()

	return func() {
		a.health.SetShuttingDown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server shutdown error", "error", err)
		}
	}
}

// runStudy runs spec to completion and prints the run summary.
func runStudy(cmd *cobra.Command, opts *rootOptions, spec *study.StudySpec) error {
	spec.ApplyDefaults()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	if opts.listen != "" {
		shutdown := a.serveStatus(opts.listen, opts.apiKey)
		defer shutdown()
	}

	res, err := a.coordinator.Run(ctx, spec)
	if err != nil {
		return err
	}
	return printSummary(cmd.OutOrStdout(), res)
}
