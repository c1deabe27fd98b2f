// Package registry loads the declared target schema from disk. The
// schema file states what the project should look like; the evolver
// diffs it against the last applied signature to find pending changes.
//
// YAML files use an apps document:
//
//	apps:
//	  books:
//	    models:
//	      Author:
//	        table: books_author
//	        fields:
//	          - name: id
//	            type: auto
//	            primary_key: true
//	          - name: name
//	            type: varchar
//	            max_length: 100
//
// JSON files hold a serialized project signature document as produced
// by the signature package, version field included.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evolvedb/evolve/internal/signature"
)

// File is a schema declaration loaded from disk. It serves as the
// model registry for an evolver run.
type File struct {
	path string
	sig  *signature.ProjectSignature
}

type schemaDoc struct {
	Apps map[string]appDoc `yaml:"apps"`
}

type appDoc struct {
	Models map[string]modelDoc `yaml:"models"`
}

type modelDoc struct {
	Table          string                      `yaml:"table"`
	Fields         []*signature.FieldSignature `yaml:"fields"`
	Indexes        []signature.IndexSignature  `yaml:"indexes"`
	UniqueTogether [][]string                  `yaml:"unique_together"`
}

// LoadFile reads and validates a schema declaration. The extension
// selects the format: .yaml or .yml for the apps document, .json for
// a serialized signature.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read schema file %s: %w", path, err)
	}

	var sig *signature.ProjectSignature
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		sig, err = parseYAML(data)
	case ".json":
		sig, err = signature.Deserialize(data)
	default:
		return nil, fmt.Errorf("registry: unsupported schema file extension %q (expected .yaml, .yml, or .json)",
			filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("registry: failed to parse schema file %s: %w", path, err)
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("registry: schema file %s: %w", path, err)
	}
	return &File{path: path, sig: sig}, nil
}

// CurrentSignature returns the declared target signature.
func (f *File) CurrentSignature() *signature.ProjectSignature {
	return f.sig
}

// Path returns the file the schema was loaded from.
func (f *File) Path() string {
	return f.path
}

func parseYAML(data []byte) (*signature.ProjectSignature, error) {
	var doc schemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Apps) == 0 {
		return nil, fmt.Errorf("schema declares no apps")
	}

	sig := signature.NewProjectSignature()
	for label, ad := range doc.Apps {
		app := sig.AddApp(label)
		for name, md := range ad.Models {
			model := &signature.ModelSignature{
				Name:           name,
				TableName:      md.Table,
				Fields:         md.Fields,
				Indexes:        md.Indexes,
				UniqueTogether: md.UniqueTogether,
			}
			// An omitted table name follows the <app>_<model> convention.
			if model.TableName == "" {
				model.TableName = fmt.Sprintf("%s_%s", label, strings.ToLower(name))
			}
			app.SetModel(model)
		}
	}
	return sig, nil
}
