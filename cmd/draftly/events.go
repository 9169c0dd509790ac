package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftly-ai/draftly/pkg/audit"
	"github.com/draftly-ai/draftly/pkg/models"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query and manage the cache event log",
	}

	cmd.AddCommand(
		newEventsSearchCmd(),
		newEventsStatsCmd(),
		newEventsCleanupCmd(),
	)
	return cmd
}

func newEventsSearchCmd() *cobra.Command {
	var (
		configPath string
		op         string
		docType    string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search cache events",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openEventLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.EventQueryOpts{
				Op:      op,
				DocType: docType,
				Limit:   limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			events, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatEvents(events))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&op, "op", "", "filter by operation (lookup, store, invalidate, prune)")
	cmd.Flags().StringVar(&docType, "doc-type", "", "filter by document type")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max events to return")

	return cmd
}

func newEventsStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show event counts by operation and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openEventLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatEventStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func newEventsCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openEventLogger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d events.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func openEventLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Events.Enabled {
		return nil, nil, fmt.Errorf("event log disabled (set events.enabled in config)")
	}

	l, err := audit.New(cfg.Events)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatEvents(events []models.CacheEvent) string {
	if len(events) == 0 {
		return "No events found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-18s %-18s %10s %8s %-20s\n",
		"OP", "TIER", "DOC TYPE", "SIMILARITY", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 92) + "\n")
	for _, e := range events {
		similarity := "-"
		if e.Similarity > 0 {
			similarity = fmt.Sprintf("%.3f", e.Similarity)
		}
		fmt.Fprintf(&b, "%-12s %-18s %-18s %10s %6dms %-20s\n",
			e.Op, e.Tier, e.DocType, similarity, e.LatencyMs,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatEventStats(stats []models.EventStat) string {
	if len(stats) == 0 {
		return "No event stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-14s %-12s %8s\n", "OP", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 38) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-14s %-12s %8d\n", s.Op, s.Day, s.Count)
	}
	return b.String()
}
