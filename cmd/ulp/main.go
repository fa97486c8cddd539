// Command ulp runs the unified log pipeline: an HTTP control plane, an
// orchestrator stage pipeline, and a worker pool, wired together the way
// internal/app/app.go wires the teacher's equivalent components, trimmed
// to the handful this pipeline actually has.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ulp/internal/config"
	"ulp/internal/controlplane"
	"ulp/internal/metrics"
	"ulp/internal/orchestrator"
	"ulp/internal/parser"
	"ulp/internal/sink"
	"ulp/internal/workerpool"
	"ulp/pkg/mapping"
	"ulp/pkg/queue"
)

func main() {
	configFile := flag.String("config", "", "optional YAML configuration override file")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configFile, logger)
	if err != nil {
		logger.WithError(err).Fatal("main: configuration load failed")
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	user, pass, _ := cfg.BasicAuth()
	httpSink := sink.NewHTTPSink(cfg.ElasticHosts, user, pass)

	msgQueue := queue.New[mapping.Message]()
	pool := workerpool.New(cfg.WorkersN, msgQueue, parser.NewRegistry(), httpSink, cfg.UploadDir, logger)

	orch := orchestrator.New(pool, cfg.UploadDir, logger)
	cp := controlplane.New(orch, logger)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	orch.Start(ctx)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: ":9090", Handler: metricsMux}
	go func() {
		logger.WithField("addr", metricsServer.Addr).Info("main: starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("main: metrics server error")
		}
	}()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: cp.Router()}
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("main: starting control plane")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("main: control plane server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("main: shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	cancel()
	orch.Stop()
	pool.Stop()
	logger.Info("main: stopped")
}
