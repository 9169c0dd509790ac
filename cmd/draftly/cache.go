package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/draftly-ai/draftly/pkg/audit"
	cachepkg "github.com/draftly-ai/draftly/pkg/cache/sqlite"
	"github.com/draftly-ai/draftly/pkg/config"
	"github.com/draftly-ai/draftly/pkg/models"
	"github.com/draftly-ai/draftly/pkg/sweep"
)

func newCacheCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the document cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openCacheStore(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := store.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Entries: %d\nHits:    %d\n", stats.Entries, stats.TotalHits)
			if len(stats.ByDocType) > 0 {
				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "DOC TYPE\tENTRIES\tHITS")
				for _, d := range stats.ByDocType {
					fmt.Fprintf(w, "%s\t%d\t%d\n", d.DocType, d.Entries, d.Hits)
				}
				return w.Flush()
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := openCacheStore(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			removed, err := store.Clear(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d cache entries.\n", removed)
			return nil
		},
	}

	var days int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove entries older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = cfg.Cache.MaxAgeDays
			}
			if days <= 0 {
				return fmt.Errorf("--days must be positive (or set cache.max_age_days in config)")
			}

			store, cleanup, err := openStoreFromConfig(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			events, closeEvents := openEventsFromConfig(cfg)
			defer closeEvents()

			removed, err := sweep.New(store, events).Prune(context.Background(), days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries older than %d days.\n", removed, days)
			return nil
		},
	}
	pruneCmd.Flags().IntVar(&days, "days", 0, "age cutoff in days (default: cache.max_age_days)")

	var profilePath string
	invalidateCmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove entries stale relative to a profile snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profilePath == "" {
				return fmt.Errorf("--profile is required")
			}
			profile, err := readProfile(profilePath)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, cleanup, err := openStoreFromConfig(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			events, closeEvents := openEventsFromConfig(cfg)
			defer closeEvents()

			removed := sweep.New(store, events).Sweep(context.Background(),
				profile.PersonalInfo, profile.ContentItems, profile.PromptTemplates)
			fmt.Printf("Removed %d stale entries.\n", removed)
			return nil
		},
	}
	invalidateCmd.Flags().StringVar(&profilePath, "profile", "", "path to profile snapshot JSON")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.AddCommand(statsCmd, clearCmd, pruneCmd, invalidateCmd)
	return cmd
}

// profileSnapshot mirrors the profile fields that feed the content hash.
type profileSnapshot struct {
	PersonalInfo    models.PersonalInfo    `json:"personal_info"`
	ContentItems    []models.ContentItem   `json:"content_items"`
	PromptTemplates models.PromptTemplates `json:"prompt_templates"`
}

func readProfile(path string) (*profileSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p profileSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func openCacheStore(configPath string) (*cachepkg.Store, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return openStoreFromConfig(cfg)
}

// openEventsFromConfig returns a nil logger when the event log is disabled or
// cannot be opened; event logging is best-effort for cache commands.
func openEventsFromConfig(cfg *config.Config) (*audit.Logger, func()) {
	if !cfg.Events.Enabled {
		return nil, func() {}
	}
	l, err := audit.New(cfg.Events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: event log unavailable: %v\n", err)
		return nil, func() {}
	}
	return l, func() { _ = l.Close() }
}

func openStoreFromConfig(cfg *config.Config) (*cachepkg.Store, func(), error) {
	store, err := cachepkg.Open(cfg.DBPath, cachepkg.Options{
		Dimensions:    cfg.Embedding.Dimensions,
		Capacity:      cfg.Cache.MaxEntries,
		EvictionBatch: cfg.Cache.EvictionBatch,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open cache db: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
