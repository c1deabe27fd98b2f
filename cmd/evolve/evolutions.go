package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvedb/evolve/internal/evolutions"
)

var evolutionsCmd = &cobra.Command{
	Use:   "evolutions",
	Short: "List authored evolution batches and their status",
	RunE:  runEvolutions,
}

func runEvolutions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Project.EvolutionsDir); os.IsNotExist(err) {
		fmt.Println("no authored evolutions")
		return nil
	}
	batches, err := evolutions.LoadAll(cfg.Project.EvolutionsDir)
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		fmt.Println("no authored evolutions")
		return nil
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	for _, b := range batches {
		applied, err := store.IsApplied(ctx, b.App, b.Label)
		if err != nil {
			return err
		}
		marker := " "
		if applied {
			marker = "x"
		}
		fmt.Printf("[%s] %s/%s (%d operations)\n", marker, b.App, b.Label, len(b.Mutations))
	}
	return nil
}
