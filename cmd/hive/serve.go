package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cuemby/hive/pkg/adminapi"
	"github.com/cuemby/hive/pkg/config"
	"github.com/cuemby/hive/pkg/httpfront"
	"github.com/cuemby/hive/pkg/log"
	"github.com/cuemby/hive/pkg/metrics"
	"github.com/cuemby/hive/pkg/sandbox"
	"github.com/cuemby/hive/pkg/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hive server: a public front end and an admin API over a shared service pool",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file (if unset, the built-in defaults are used and fail validation for lack of an admin signing key)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return fmt.Errorf("default config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sandboxes, err := sandbox.NewPool(ctx, cfg.SandboxPoolSize, afero.NewOsFs())
	if err != nil {
		return fmt.Errorf("build sandbox pool: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	rootFS := afero.NewBasePathFs(afero.NewOsFs(), cfg.DataDir)

	services := service.NewPool(sandboxes, rootFS)

	metrics.RegisterComponent("sandbox_pool", true, "")
	metrics.RegisterComponent("service_pool", true, "")

	front := httpfront.New(services)
	metrics.RegisterComponent("http_front", true, "")

	admin := adminapi.New(services, cfg.Admin.JWTSigningKey)
	metrics.RegisterComponent("admin_api", true, "")
	admin.Engine().GET("/metrics", gin.WrapH(metrics.Handler()))
	admin.Engine().GET("/health", gin.WrapH(metrics.HealthHandler()))
	admin.Engine().GET("/ready", gin.WrapH(metrics.ReadyHandler()))
	admin.Engine().GET("/live", gin.WrapH(metrics.LivenessHandler()))

	frontSrv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: front.Engine()}
	adminSrv := &http.Server{Addr: cfg.Admin.ListenAddr, Handler: admin.Engine()}

	errCh := make(chan error, 2)
	go func() {
		log.WithComponent("httpfront").Info().Str("addr", cfg.HTTP.ListenAddr).Msg("listening")
		if err := frontSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("public front end: %w", err)
		}
	}()
	go func() {
		log.WithComponent("adminapi").Info().Str("addr", cfg.Admin.ListenAddr).Msg("listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("admin API: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = frontSrv.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)
	services.StopAll(shutdownCtx)

	return nil
}
