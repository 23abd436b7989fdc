package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/felipe370-hub/compras-api/internal/coordinator/runlog"
	runlogsqlite "github.com/felipe370-hub/compras-api/internal/coordinator/runlog/sqlite"
	"github.com/felipe370-hub/compras-api/internal/infra/adapters/service"
	"github.com/felipe370-hub/compras-api/internal/infra/httpx"
	"github.com/felipe370-hub/compras-api/internal/infra/postgrest"
	"github.com/felipe370-hub/compras-api/internal/pkg/config"
	"github.com/felipe370-hub/compras-api/internal/pkg/metrics"
	"github.com/felipe370-hub/compras-api/internal/pkg/telemetry"
)

const serviceName = "compras-api"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	telemetry.InitLogger(cfg.LogLevel)

	ctx := context.Background()
	shutdown, err := telemetry.SetupTracer(ctx, serviceName)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	// The workflow run log is observability only; failing to open
	// it must not keep the service from starting.
	var runLog runlog.Repository
	var runReader runlog.Reader
	if repo, err := runlogsqlite.Open(cfg.WorkflowLogPath); err != nil {
		slog.Warn("workflow log disabled", "path", cfg.WorkflowLogPath, "error", err)
	} else {
		defer repo.Close()
		runLog = repo
		runReader = repo
	}

	store := postgrest.New(cfg.PostgrestURL, cfg.AnonKey, cfg.ReadTimeout)

	httpMetrics := metrics.NewHTTPMetrics("compras_api")
	workflowMetrics := metrics.NewWorkflowMetrics("compras_api")

	orders := service.New(store, cfg.ServiceKey, cfg.WorkflowTimeout, runLog, workflowMetrics)

	handler := httpx.NewHandler(store, orders, runReader)
	router := httpx.NewRouter(handler, httpMetrics)

	addr := ":" + cfg.Port
	slog.Info("compras api listening",
		"addr", addr,
		"upstream", cfg.PostgrestURL,
		"service_order_enabled", cfg.ServiceKey != "",
	)
	if err := http.ListenAndServe(addr, router); err != nil {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
