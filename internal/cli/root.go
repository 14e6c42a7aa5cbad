package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"checkout/internal/control"
	"checkout/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Checkout transaction service",
	Long:  `Checkout is the point-of-sale transaction backend for the business dashboard: carts, stock validation, and resilient sale finalization.`,
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setupLogging installs the tint handler at the level resolved from the
// config and the --debug flag.
func setupLogging(level string) {
	slogLevel := slog.LevelInfo
	if isDebug || level == "debug" {
		slogLevel = slog.LevelDebug
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
}

func runServe(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		setupLogging("")
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	taxRate := decimal.NewFromFloat(*cfg.Sales.TaxRate)
	controlCfg := control.Config{
		Port:          cfg.Server.Port,
		Client:        cfg.Client,
		CatalogURL:    cfg.Catalog.URL,
		Redis:         cfg.Redis,
		Database:      cfg.Database,
		TaxRate:       &taxRate,
		FinalizeRoles: cfg.Sales.FinalizeRoles,
	}

	dash, err := control.NewDashboard(controlCfg)
	if err != nil {
		slog.Error("Failed to initialize dashboard", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dash.Start(ctx); err != nil {
		slog.Error("Dashboard stopped", "error", err)
		os.Exit(1)
	}
}
