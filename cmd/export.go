package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/travel-approval/internal/report"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	requestPostgres "github.com/frahmantamala/travel-approval/internal/travelrequest/postgres"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reports",
}

var exportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Write requests and their approval history to an XLSX workbook",
	Run: func(cmd *cobra.Command, args []string) {
		if err := exportHistory(cmd.Context()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	exportOut      string
	exportStatuses string
)

func exportHistory(ctx context.Context) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	gdb, err := initGorm(db)
	if err != nil {
		return err
	}

	var filter travelrequest.ListFilter
	for _, s := range strings.Split(exportStatuses, ",") {
		if s = strings.TrimSpace(s); s != "" {
			filter.Statuses = append(filter.Statuses, s)
		}
	}

	out := exportOut
	if out == "" {
		out = fmt.Sprintf("travel-history-%s.xlsx", time.Now().Format("20060102"))
	}

	n, err := report.NewExporter(requestPostgres.NewRequestRepository(gdb), lg).Save(ctx, out, filter)
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	lg.Info("history exported", "path", out, "requests", n)
	return nil
}

func init() {
	exportHistoryCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default travel-history-YYYYMMDD.xlsx)")
	exportHistoryCmd.Flags().StringVar(&exportStatuses, "status", "", "Comma separated statuses to include")

	exportCmd.AddCommand(exportHistoryCmd)
	rootCmd.AddCommand(exportCmd)
}
