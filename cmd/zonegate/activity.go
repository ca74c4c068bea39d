package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zonegate/zonegate/internal/audit"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the activity log",
	RunE:  runActivity,
}

var (
	activityLimit  int
	activityOffset int
	activityJSON   bool
)

func init() {
	activityCmd.Flags().IntVar(&activityLimit, "limit", 50, "number of entries to show")
	activityCmd.Flags().IntVar(&activityOffset, "offset", 0, "entries to skip")
	activityCmd.Flags().BoolVar(&activityJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log, err := audit.Open(cfg.Storage.ActivityLogPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer log.Close()

	entries, total, err := log.List(activityLimit, activityOffset)
	if err != nil {
		return err
	}

	if activityJSON {
		return outputJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No activity")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSTATUS\tCODE\tSOURCE\tDOMAIN\tDETAIL")
	for _, e := range entries {
		code := e.ErrorCode
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Type, e.Status, code, e.SourceIP, e.Domain, e.Detail)
	}
	w.Flush()

	fmt.Printf("\n%d of %d entries\n", len(entries), total)
	return nil
}
