// Package evolutions loads authored evolution batches from disk. Each
// app owns a directory under the evolutions root:
//
//	<root>/<app>/sequence.yaml   batch labels in application order
//	<root>/<app>/<label>.sql     raw statement batch, or
//	<root>/<app>/<label>.yaml    mutation documents
//
// A .sql file takes precedence over a .yaml file with the same label.
package evolutions

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evolvedb/evolve/internal/errors"
	"github.com/evolvedb/evolve/internal/mutations"
)

// Batch is one evolution: an ordered list of mutations for an app,
// identified by its label.
type Batch struct {
	App       string
	Label     string
	Mutations []mutations.Mutation
}

// AppliedChecker is the slice of the history store the loader needs to
// split batches into applied and unapplied.
type AppliedChecker interface {
	IsApplied(ctx context.Context, app, label string) (bool, error)
	AppliedLabels(ctx context.Context, app string) ([]string, error)
}

type sequenceDoc struct {
	Sequence []string `yaml:"sequence"`
}

// LoadApp reads all batches for one app in sequence order. An app
// without a sequence file has no evolutions and yields nil.
func LoadApp(root, app string) ([]Batch, error) {
	data, err := os.ReadFile(filepath.Join(root, app, "sequence.yaml"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("evolutions: failed to read sequence for %s: %w", app, err)
	}

	var seq sequenceDoc
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, fmt.Errorf("evolutions: failed to parse sequence for %s: %w", app, err)
	}

	var batches []Batch
	for _, label := range seq.Sequence {
		batch, err := loadBatch(root, app, label)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// LoadAll reads batches for every app directory under root that carries
// a sequence file, apps in sorted order.
func LoadAll(root string) ([]Batch, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("evolutions: failed to read root %s: %w", root, err)
	}

	var apps []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), "sequence.yaml")); err == nil {
			apps = append(apps, entry.Name())
		}
	}
	sort.Strings(apps)

	var batches []Batch
	for _, app := range apps {
		appBatches, err := LoadApp(root, app)
		if err != nil {
			return nil, err
		}
		batches = append(batches, appBatches...)
	}
	return batches, nil
}

// Unapplied filters batches down to those not yet recorded in the
// store. Labels recorded for an app but absent from its authored
// sequence are reported with a warning and otherwise ignored.
func Unapplied(ctx context.Context, checker AppliedChecker, batches []Batch) ([]Batch, error) {
	authored := make(map[string]map[string]bool)
	for _, b := range batches {
		if authored[b.App] == nil {
			authored[b.App] = make(map[string]bool)
		}
		authored[b.App][b.Label] = true
	}
	for app, labels := range authored {
		recorded, err := checker.AppliedLabels(ctx, app)
		if err != nil {
			return nil, err
		}
		for _, label := range recorded {
			if !labels[label] {
				log.Printf("[WARN] evolutions: recorded evolution %s/%s has no definition on disk", app, label)
			}
		}
	}

	var pending []Batch
	for _, b := range batches {
		applied, err := checker.IsApplied(ctx, b.App, b.Label)
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, b)
		}
	}
	return pending, nil
}

// WriteBatch stores an authored batch document under root and appends
// its label to the app's sequence file. Writing a label that is already
// sequenced replaces the document and leaves the sequence untouched.
func WriteBatch(root, app, label string, doc []byte) error {
	dir := filepath.Join(root, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("evolutions: failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, label+".yaml"), doc, 0o644); err != nil {
		return fmt.Errorf("evolutions: failed to write %s/%s: %w", app, label, err)
	}

	seqPath := filepath.Join(dir, "sequence.yaml")
	var seq sequenceDoc
	if data, err := os.ReadFile(seqPath); err == nil {
		if err := yaml.Unmarshal(data, &seq); err != nil {
			return fmt.Errorf("evolutions: failed to parse sequence for %s: %w", app, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("evolutions: failed to read sequence for %s: %w", app, err)
	}
	for _, existing := range seq.Sequence {
		if existing == label {
			return nil
		}
	}
	seq.Sequence = append(seq.Sequence, label)

	data, err := yaml.Marshal(&seq)
	if err != nil {
		return fmt.Errorf("evolutions: failed to encode sequence for %s: %w", app, err)
	}
	if err := os.WriteFile(seqPath, data, 0o644); err != nil {
		return fmt.Errorf("evolutions: failed to write sequence for %s: %w", app, err)
	}
	return nil
}

func loadBatch(root, app, label string) (Batch, error) {
	sqlPath := filepath.Join(root, app, label+".sql")
	if data, err := os.ReadFile(sqlPath); err == nil {
		statements := ParseSQL(string(data))
		return Batch{
			App:   app,
			Label: label,
			Mutations: []mutations.Mutation{
				mutations.RawSQL{App: app, SQL: statements},
			},
		}, nil
	}

	yamlPath := filepath.Join(root, app, label+".yaml")
	data, err := os.ReadFile(yamlPath)
	if os.IsNotExist(err) {
		return Batch{}, errors.NewValidationError(errors.CodeInvalidConfig,
			fmt.Sprintf("evolution %s/%s has neither a .sql nor a .yaml definition", app, label)).
			WithDetails(map[string]interface{}{"app": app, "label": label})
	}
	if err != nil {
		return Batch{}, fmt.Errorf("evolutions: failed to read %s: %w", yamlPath, err)
	}

	docApp, docLabel, muts, err := mutations.UnmarshalBatch(data)
	if err != nil {
		return Batch{}, fmt.Errorf("evolutions: %s/%s: %w", app, label, err)
	}
	if docApp != app {
		return Batch{}, errors.NewValidationError(errors.CodeInvalidConfig,
			fmt.Sprintf("evolution %s/%s declares app %q", app, label, docApp))
	}
	if docLabel != "" && docLabel != label {
		log.Printf("[WARN] evolutions: %s/%s declares label %q, using file name", app, label, docLabel)
	}
	return Batch{App: app, Label: label, Mutations: muts}, nil
}

// ParseSQL splits a raw SQL file into statements. Blank lines and
// whole-line "--" comments are skipped; a statement runs until a line
// ends with a semicolon. Trailing text without one still forms a final
// statement.
func ParseSQL(text string) []string {
	var statements []string
	var buf []string

	flush := func() {
		if len(buf) == 0 {
			return
		}
		statements = append(statements, strings.Join(buf, "\n"))
		buf = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		buf = append(buf, strings.TrimRight(line, " \t\r"))
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return statements
}
