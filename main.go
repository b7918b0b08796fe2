// iGuardian — on-device idle-aware background activity anomaly detector.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sd3mir06/iguardian/internal/config"
	"github.com/Sd3mir06/iguardian/internal/engine"
	"github.com/Sd3mir06/iguardian/internal/monitor"
	"github.com/Sd3mir06/iguardian/internal/notify"
	"github.com/Sd3mir06/iguardian/internal/server"
	"github.com/Sd3mir06/iguardian/internal/store"
)

const asciiLogo = `
 ██╗ ██████╗ ██╗   ██╗ █████╗ ██████╗ ██████╗ ██╗ █████╗ ███╗   ██╗
 ██║██╔════╝ ██║   ██║██╔══██╗██╔══██╗██╔══██╗██║██╔══██╗████╗  ██║
 ██║██║  ███╗██║   ██║███████║██████╔╝██║  ██║██║███████║██╔██╗ ██║
 ██║██║   ██║██║   ██║██╔══██║██╔══██╗██║  ██║██║██╔══██║██║╚██╗██║
 ██║╚██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝██║██║  ██║██║ ╚████║
 ╚═╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝
`

const version = "v0.1.0"

func printBanner() {
	fmt.Print(asciiLogo + "\n")
	fmt.Printf("  ► iGuardian %s  |  idle-aware background activity monitor\n\n", version)
}

// setupLogger builds the root zerolog logger from config.
func setupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func main() {
	root := &cobra.Command{
		Use:   "iguardian",
		Short: "iGuardian — on-device idle-aware background activity anomaly detector",
		Long: `iGuardian watches device metrics (network, CPU, battery, thermal state)
while the device is idle, learns the device's own quiet-time baseline, and
scores suspicious background activity into Normal/Warning/Alert/Critical
threat levels with alerting and incident history.`,
		SilenceUsage: true,
	}

	// ── run subcommand ────────────────────────────────────────────────────────
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the iGuardian monitor and its local control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			printBanner()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger := setupLogger(cfg)

			st, err := store.Open(cfg.DBPath, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			if err := st.SeedThresholds(cfg.DefaultThresholds()); err != nil {
				return fmt.Errorf("seeding thresholds: %w", err)
			}

			webhook := notify.NewWebhook(cfg.WebhookURL,
				time.Duration(cfg.WebhookTimeoutSeconds)*time.Second, logger)
			gate := engine.NewGate(cfg.GateConfig(), webhook, st, logger)

			mon := monitor.New(cfg.MonitorConfig(), monitor.NewCollector(), st, gate, logger)
			mon.Start()
			defer mon.Stop()

			auth, err := server.NewAuth(cfg.JWTSecret, cfg.AdminUser, cfg.AdminPass)
			if err != nil {
				return fmt.Errorf("initializing auth: %w", err)
			}

			gin.SetMode(gin.ReleaseMode)
			corsMiddleware := func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				if c.Request.Method == "OPTIONS" {
					c.AbortWithStatus(204)
					return
				}
				c.Next()
			}

			router := gin.New()
			router.Use(gin.Recovery(), corsMiddleware)
			server.New(st, mon, auth, logger).Register(router)

			addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ControlPort)
			fmt.Printf("  ✓ Control API (JWT)  → http://%s\n", addr)
			fmt.Printf("  ✓ Default login: %s / %s\n", cfg.AdminUser, cfg.AdminPass)
			if cfg.WebhookURL != "" {
				fmt.Printf("  ✓ Alert webhook: %s\n", cfg.WebhookURL)
			}
			fmt.Println()

			srv := &http.Server{Addr: addr, Handler: router}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt) // os.Interrupt = SIGINT; works on all platforms

			select {
			case err := <-errCh:
				return err
			case <-quit:
				fmt.Println("\n  → Shutting down gracefully…")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
				return nil
			}
		},
	}

	// ── version subcommand ────────────────────────────────────────────────────
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print iGuardian version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("iGuardian %s\n", version)
		},
	}

	root.AddCommand(runCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
