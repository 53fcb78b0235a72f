package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/stagecrafthq/stagecraft/internal/a2a"
	"github.com/stagecrafthq/stagecraft/internal/approvals"
	"github.com/stagecrafthq/stagecraft/internal/config"
	"github.com/stagecrafthq/stagecraft/internal/observability"
	"github.com/stagecrafthq/stagecraft/internal/orchestrator"
	"github.com/stagecrafthq/stagecraft/internal/proposal"
	"github.com/stagecrafthq/stagecraft/internal/session"
	"github.com/stagecrafthq/stagecraft/internal/siteconfig"
	"github.com/stagecrafthq/stagecraft/internal/tools"
	"github.com/stagecrafthq/stagecraft/internal/tools/approval"
	"github.com/stagecrafthq/stagecraft/internal/tools/site"
	"github.com/stagecrafthq/stagecraft/internal/tools/specialist"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator with the configured stores and specialists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to yaml config (defaults apply when omitted)")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	logger.Info("starting stagecraft", "version", version, "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TraceConfig{
		ServiceName:    "stagecraft",
		ServiceVersion: version,
		Endpoint:       cfg.Observability.TraceEndpoint,
		Insecure:       cfg.Observability.TraceInsecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	proposals, configs, cleanup, err := openStores(cfg.Store)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer cleanup()

	sessions := session.NewMemoryStore()
	machine := siteconfig.NewMachine(configs)

	targets := make([]a2a.Target, 0, len(cfg.Specialists))
	for _, sp := range cfg.Specialists {
		targets = append(targets, a2a.Target{
			Name:    sp.Name,
			URL:     sp.URL,
			Timeout: sp.Timeout.Std(),
		})
	}
	router := a2a.NewRouter(targets, a2a.WithLogger(logger), a2a.WithMetrics(metrics))

	toolRegistry := tools.NewRegistry()
	if err := site.Register(toolRegistry, machine); err != nil {
		return fmt.Errorf("register site tools: %w", err)
	}
	if err := specialist.Register(toolRegistry, router); err != nil {
		return fmt.Errorf("register specialist tools: %w", err)
	}
	if err := approval.Register(toolRegistry, approvals.NewMemoryStore()); err != nil {
		return fmt.Errorf("register approval tools: %w", err)
	}
	toolRegistry.Seal()
	logger.Info("tool registry sealed", "tools", len(toolRegistry.Names()))

	orch := orchestrator.New(toolRegistry, sessions, proposals, orchestrator.Options{
		Logger:             logger,
		Metrics:            metrics,
		SessionTTL:         cfg.Session.TTL.Std(),
		SweepInterval:      cfg.Session.SweepInterval.Std(),
		ProposalPendingTTL: cfg.Proposals.PendingTTL.Std(),
		ProposalRetention:  cfg.Proposals.Retention.Std(),
	})
	go orch.RunSweeper(ctx)

	var metricsServer *http.Server
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("stagecraft ready", "specialists", len(targets))
	<-ctx.Done()
	logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", "error", err)
		}
	}
	return nil
}

// openStores builds the proposal and site-config stores for the configured
// backend. The cleanup closes the shared database handle when there is one.
func openStores(cfg config.StoreConfig) (proposal.Store, siteconfig.Store, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under concurrent tool calls.
		db.SetMaxOpenConns(1)

		proposals, err := proposal.NewSQLStore(db)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		configs, err := siteconfig.NewSQLStore(db)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return proposals, configs, func() {
			if err := db.Close(); err != nil {
				fmt.Fprintln(os.Stderr, "close database:", err)
			}
		}, nil

	default:
		return proposal.NewMemoryStore(), siteconfig.NewMemoryStore(), func() {}, nil
	}
}
