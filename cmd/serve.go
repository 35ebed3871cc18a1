package cmd

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/api"
	"github.com/spigell/sahara/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the benefit matching HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8080)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting sahara", zap.String("version", version))

	c, err := buildComponents(ctx, config, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Fatal("building components", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("closing components", zap.Error(err))
		}
	}()

	server, err := api.New(c.orchestrator, api.Options{
		Sessions: c.recorder,
		Metrics:  c.metrics,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("building http server", zap.Error(err))
	}

	logger.Info("matching configured",
		zap.Bool("ai_enabled", c.orchestrator.AIEnabled()),
		zap.String("ai_provider", c.orchestrator.AIProvider()),
		zap.String("ai_model", c.orchestrator.AIModel()),
		zap.String("cache_backend", config.Cache.Backend),
		zap.String("sessions_backend", config.Sessions.Backend),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(config.Server.Listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", config.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("http server shutdown", zap.Error(err))
	}
}
