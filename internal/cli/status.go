package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"checkout/internal/core/config"
	"checkout/internal/infra/client"
	"checkout/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the persistence endpoint and show recent sales",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		setupLogging("")
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c, err := client.New(cfg.Client)
	if err != nil {
		slog.Error("Invalid client config", "error", err)
		os.Exit(1)
	}

	report := c.TestConnectivity(ctx)
	if report.Success {
		fmt.Printf("persistence endpoint: ok (status %d)\n", report.Status)
	} else if report.Error != "" {
		fmt.Printf("persistence endpoint: unreachable (%s)\n", report.Error)
	} else {
		fmt.Printf("persistence endpoint: unhealthy (status %d)\n", report.Status)
	}

	if cfg.Database.URL == "" {
		fmt.Println("sales journal: in-memory (no database configured)")
		return
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	sales, err := postgres.NewSaleRepo(db).ListRecent(ctx, 10)
	if err != nil {
		slog.Error("Failed to query sales journal", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SALE\tTOTAL\tPAYMENT\tCREATED")
	for _, s := range sales {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Total.StringFixed(2), s.PaymentMethod, s.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
