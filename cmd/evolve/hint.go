package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evolvedb/evolve/internal/diff"
	"github.com/evolvedb/evolve/internal/evolutions"
	"github.com/evolvedb/evolve/internal/mutations"
	"github.com/evolvedb/evolve/internal/optimizer"
	"github.com/evolvedb/evolve/internal/registry"
	"github.com/evolvedb/evolve/internal/signature"
)

var (
	hintLabel string
	hintWrite bool
)

var hintCmd = &cobra.Command{
	Use:   "hint",
	Short: "Generate evolution batches from the declared schema",
	Long: `Hint diffs the declared schema against the last applied version and
renders the resulting mutations as evolution batch documents, one per
app. With --write the batches are stored under the evolutions directory
and appended to each app's sequence file; otherwise they print to
stdout for review.`,
	RunE: runHint,
}

func init() {
	hintCmd.Flags().StringVar(&hintLabel, "label", "", "Label for the generated batches (default: next sequence number)")
	hintCmd.Flags().BoolVar(&hintWrite, "write", false, "Store the batches in the evolutions directory")
}

func runHint(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, err := registry.LoadFile(cfg.Project.SignaturePath)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	_, base, err := store.LoadLatest(ctx)
	if err != nil {
		return err
	}
	if base == nil {
		base = signature.NewProjectSignature()
	}

	seq := optimizer.Optimize(diff.Diff(base, reg.CurrentSignature()).Mutations())
	if len(seq) == 0 {
		fmt.Println("schema is up to date; nothing to hint")
		return nil
	}

	// One batch per app, apps in first-appearance order.
	byApp := make(map[string][]mutations.Mutation)
	var apps []string
	for _, m := range seq {
		app := m.Target().App
		if byApp[app] == nil {
			apps = append(apps, app)
		}
		byApp[app] = append(byApp[app], m)
	}

	for i, app := range apps {
		label := hintLabel
		if label == "" {
			label, err = nextLabel(cfg.Project.EvolutionsDir, app)
			if err != nil {
				return err
			}
		}
		doc, err := mutations.MarshalBatch(app, label, byApp[app])
		if err != nil {
			return err
		}
		if hintWrite {
			if err := evolutions.WriteBatch(cfg.Project.EvolutionsDir, app, label, doc); err != nil {
				return err
			}
			fmt.Printf("wrote %s/%s\n", app, label)
			continue
		}
		if i > 0 {
			fmt.Println("---")
		}
		os.Stdout.Write(doc)
	}
	return nil
}

// nextLabel numbers a generated batch after the app's existing
// sequence.
func nextLabel(root, app string) (string, error) {
	batches, err := evolutions.LoadApp(root, app)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d_auto", len(batches)+1), nil
}
