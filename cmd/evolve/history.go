package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyApp string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List applied schema versions",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyApp, "app", "", "Also list the evolutions applied for this app")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	records, err := store.ListVersions(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no versions recorded")
	}
	for _, rec := range records {
		fmt.Printf("version %-4d  %s  %s\n",
			rec.Version, rec.CreatedAt.UTC().Format(time.RFC3339), rec.Fingerprint)
	}

	if historyApp != "" {
		labels, err := store.AppliedLabels(ctx, historyApp)
		if err != nil {
			return err
		}
		fmt.Printf("\napplied evolutions for %s:\n", historyApp)
		if len(labels) == 0 {
			fmt.Println("  (none)")
		}
		for _, label := range labels {
			fmt.Printf("  %s\n", label)
		}
	}
	return nil
}
