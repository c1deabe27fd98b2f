// Package main implements the evolve binary. It tracks applied schema
// versions in a history store, applies authored evolution batches or
// hinted mutations, and generates the statements that carry a database
// from one version to the next.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/evolvedb/evolve/internal/archive"
	"github.com/evolvedb/evolve/internal/config"
	"github.com/evolvedb/evolve/internal/diff"
	"github.com/evolvedb/evolve/internal/evolutions"
	"github.com/evolvedb/evolve/internal/evolver"
	"github.com/evolvedb/evolve/internal/history"
	"github.com/evolvedb/evolve/internal/registry"
	"github.com/evolvedb/evolve/internal/signature"
	"github.com/evolvedb/evolve/internal/sqlgen"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	configFile       string
	dataDir          string
	signaturePath    string
	evolutionsDir    string
	hinted           bool
	dryRun           bool
	trustUnsimulated bool
	reportPath       string
)

var rootCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Apply schema evolutions to a tracked database",
	Long: `Evolve tracks applied schema versions and carries a database from one
version to the next. Without flags it applies the authored evolution
batches that have not run yet; with --hint it diffs the declared schema
against the last applied version and applies the result directly.`,
	RunE: runEvolve,
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&dataDir, "data-dir", "", "Base directory for locally kept state")
	pf.StringVar(&signaturePath, "signature", "", "Path to the declared schema file")
	pf.StringVar(&evolutionsDir, "evolutions-dir", "", "Root directory of authored evolutions")

	rootCmd.Flags().BoolVar(&hinted, "hint", false, "Diff the declared schema and apply the hinted mutations")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate statements without executing them")
	rootCmd.Flags().BoolVar(&trustUnsimulated, "trust-unsimulated", false, "Let raw SQL without simulation metadata pass validation")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "Write the run report JSON to this file")

	rootCmd.AddCommand(hintCmd, historyCmd, evolutionsCmd)
}

// loadConfig builds the effective configuration: file first, then
// environment variables, then command line flags.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if signaturePath != "" {
		cfg.Project.SignaturePath = signaturePath
	}
	if evolutionsDir != "" {
		cfg.Project.EvolutionsDir = evolutionsDir
	}
	if trustUnsimulated {
		cfg.TrustUnsimulated = true
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects the configured history backend.
func openStore(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.History.Backend {
	case "postgres":
		return history.NewPostgresStore(ctx, cfg.History.URL)
	default:
		return history.NewSQLiteStore(cfg.History.Path)
	}
}

func closeStore(store history.Store) {
	if err := store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close history store: %v\n", err)
	}
}

// openArchive builds the configured archive backend.
func openArchive(ctx context.Context, cfg *config.Config) (*archive.Archiver, error) {
	var store archive.ObjectStore
	var err error
	switch cfg.Archive.Type {
	case "s3":
		s3cfg := archive.DefaultS3Config()
		if cfg.Archive.S3.Region != "" {
			s3cfg.Region = cfg.Archive.S3.Region
		}
		s3cfg.Endpoint = cfg.Archive.S3.Endpoint
		s3cfg.UsePathStyle = cfg.Archive.S3.UsePathStyle
		store, err = archive.NewS3Store(ctx, cfg.Archive.S3.Bucket, s3cfg)
	default:
		store, err = archive.NewLocalStore(cfg.Archive.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive.NewArchiver(store), nil
}

func runEvolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
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

	opts := evolver.Options{
		Generator:        sqlgen.New(),
		TrustUnsimulated: cfg.TrustUnsimulated,
	}
	if !dryRun && cfg.Database.Driver != "" {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close target database: %v\n", err)
			}
		}()
		opts.Executor = &statementExecutor{db: db}
	}
	if cfg.Archive.Enabled {
		arch, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		opts.Archive = arch
	}

	ev := evolver.New(store, reg, opts)

	report, runErr := executeRun(ctx, ev, store, cfg, reg.CurrentSignature())
	if report != nil {
		if reportPath != "" {
			if err := writeReport(report, reportPath); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write report: %v\n", err)
			}
		}
		printSummary(report)
	}
	return runErr
}

// executeRun picks the run mode: hinted when asked for, otherwise the
// pending authored batches. With nothing pending the declared schema
// must already match the applied one; evolve refuses to guess.
func executeRun(ctx context.Context, ev *evolver.Evolver, store history.Store,
	cfg *config.Config, target *signature.ProjectSignature) (*evolver.RunReport, error) {
	if hinted {
		return ev.RunHint(ctx)
	}

	var batches []evolutions.Batch
	if _, err := os.Stat(cfg.Project.EvolutionsDir); err == nil {
		batches, err = evolutions.LoadAll(cfg.Project.EvolutionsDir)
		if err != nil {
			return nil, err
		}
	}
	pending, err := evolutions.Unapplied(ctx, store, batches)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return ev.RunBatches(ctx, pending)
	}

	_, base, err := store.LoadLatest(ctx)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = signature.NewProjectSignature()
	}
	cs := diff.Diff(base, target)
	if cs.Empty() {
		fmt.Println("schema is up to date; nothing to apply")
		return nil, nil
	}

	var ops []string
	for _, m := range cs.Mutations() {
		ops = append(ops, m.String())
	}
	return nil, fmt.Errorf("the declared schema has %d pending changes and no authored evolutions cover them;\n"+
		"author an evolution (see 'evolve hint') or run with --hint:\n  %s",
		len(ops), strings.Join(ops, "\n  "))
}

func writeReport(r *evolver.RunReport, path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// printSummary writes a human-readable account of the run to stdout.
func printSummary(r *evolver.RunReport) {
	fmt.Printf("run %s: %s\n", r.RunID, r.State)
	for _, b := range r.Batches {
		fmt.Printf("  batch %s/%s\n", b.App, b.Label)
	}

	switch r.State {
	case evolver.StateExecuted:
		for _, g := range r.Groups {
			fmt.Printf("  %s: executed %d of %d statements\n", g.App, g.Executed, len(g.Statements))
		}
		if r.TargetVersion == r.BaseVersion {
			fmt.Printf("schema is up to date at version %d\n", r.TargetVersion)
		} else {
			fmt.Printf("applied version %d (was %d)\n", r.TargetVersion, r.BaseVersion)
		}
	case evolver.StateValidated:
		if len(r.Groups) == 0 {
			fmt.Println("validated; no statements to run")
			return
		}
		fmt.Println("generated statements (not executed):")
		for _, g := range r.Groups {
			fmt.Printf("-- app %s\n", g.App)
			for _, stmt := range g.Statements {
				fmt.Printf("%s;\n", stmt)
			}
		}
	case evolver.StateAborted:
		for _, g := range r.Groups {
			if g.Failed != "" {
				fmt.Printf("  %s: failed after %d statements on: %s\n", g.App, g.Executed, g.Failed)
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
