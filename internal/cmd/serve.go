package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cogniflow/cogniflow/internal/analysis"
	"github.com/cogniflow/cogniflow/internal/api"
	"github.com/cogniflow/cogniflow/internal/config"
	"github.com/cogniflow/cogniflow/internal/estimate"
	"github.com/cogniflow/cogniflow/internal/pipeline"
	"github.com/cogniflow/cogniflow/internal/publish"
	"github.com/cogniflow/cogniflow/internal/sensor"
	"github.com/cogniflow/cogniflow/internal/session"
	"github.com/cogniflow/cogniflow/internal/store"
	"github.com/cogniflow/cogniflow/internal/ws"
)

var (
	serveConfig string
	serveDebug  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the acquisition and estimation daemon",
	Long: `serve connects to the sensor gateway, runs the processing pipeline at
its fixed cadence, and exposes the REST API, WebSocket stream, and
metrics endpoint until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "config.yaml", "Path to the YAML config file")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if serveDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("cogniflowd starting", "version", Version, "config", serveConfig)

	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}

	slog.Info("config loaded",
		"gateway", cfg.Sensor.GatewayURL,
		"device", cfg.Sensor.DeviceID,
		"window_sec", cfg.Signal.WindowSizeSec,
		"step_sec", cfg.Signal.WindowStepSec,
		"http_port", cfg.Server.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Session history store.
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// Scorer, pipeline, session manager.
	scorer := estimate.Select(cfg.Scoring)
	pipe := pipeline.New(cfg.Signal, cfg.Scoring, scorer)
	sessions := session.NewManager(st)
	pipe.OnResult(sessions.Record)

	// WebSocket hub — pushes every result to connected UI clients.
	hub := ws.New()
	go hub.Run(ctx)
	pipe.OnResult(hub.Broadcast)

	// Optional MQTT result publishing, on the same broker as the gateway.
	if cfg.Server.ResultsTopic != "" {
		pub := publish.New(cfg.Sensor.GatewayURL, cfg.Server.ResultsTopic)
		go pub.Run(ctx)
		pipe.OnResult(pub.Publish)
	}

	// Sensor link over the MQTT gateway. Samples flow straight into the
	// pipeline's sliding window.
	transport := sensor.NewGatewayTransport(cfg.Sensor.GatewayURL, cfg.Sensor.DeviceID)
	link := sensor.NewLink(cfg.Sensor, transport)
	link.OnSamples(pipe.Ingest)
	go func() {
		if err := link.Connect(ctx); err != nil {
			slog.Error("sensor: connection failed", "err", err)
			return
		}
		if err := link.StartStreaming(ctx); err != nil {
			slog.Error("sensor: streaming failed", "err", err)
		}
	}()

	go pipe.Run(ctx)

	// Hot-reload scoring parameters on config file changes. Signal and
	// sensor parameters need a restart.
	go func() {
		err := config.Watch(ctx, serveConfig, func(next *config.Config) {
			pipe.UpdateScoring(next.Scoring, estimate.Select(next.Scoring))
		})
		if err != nil {
			slog.Error("config: watch failed", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(link, pipe, sessions, analysis.NewService(st), hub),
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("cogniflowd shutting down")
	link.Stop()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	return nil
}
