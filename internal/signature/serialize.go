package signature

import (
	"encoding/json"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/evolvedb/evolve/internal/errors"
)

// CurrentFormatVersion is the serialization format produced by Serialize.
// Documents carrying any other version are rejected on load.
const CurrentFormatVersion = 2

type projectDoc struct {
	FormatVersion int               `json:"__version__"`
	Apps          map[string]appDoc `json:"apps"`
}

type appDoc struct {
	Models map[string]modelDoc `json:"models"`
}

type modelDoc struct {
	Table          string            `json:"table"`
	Fields         []*FieldSignature `json:"fields"`
	Indexes        []IndexSignature  `json:"indexes,omitempty"`
	UniqueTogether [][]string        `json:"unique_together,omitempty"`
}

// Serialize renders the project signature as a versioned JSON document.
// Map keys are emitted in sorted order and attributes at their defaults are
// omitted, so equal signatures serialize to identical bytes.
func (p *ProjectSignature) Serialize() ([]byte, error) {
	doc := projectDoc{
		FormatVersion: CurrentFormatVersion,
		Apps:          make(map[string]appDoc, len(p.Apps)),
	}
	for label, app := range p.Apps {
		ad := appDoc{Models: make(map[string]modelDoc, len(app.Models))}
		for name, model := range app.Models {
			ad.Models[name] = modelDoc{
				Table:          model.TableName,
				Fields:         model.Fields,
				Indexes:        model.Indexes,
				UniqueTogether: model.UniqueTogether,
			}
		}
		doc.Apps[label] = ad
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("signature: failed to serialize project signature: %w", err)
	}
	return data, nil
}

// Deserialize parses a JSON document produced by Serialize. App and model
// names are restored from their map keys.
func Deserialize(data []byte) (*ProjectSignature, error) {
	var doc projectDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCategoryValidation, errors.CodeInvalidSignature,
			"failed to parse signature document", err)
	}
	if doc.FormatVersion != CurrentFormatVersion {
		return nil, errors.NewValidationError(errors.CodeInvalidSignature,
			fmt.Sprintf("unsupported signature format version %d (expected %d)",
				doc.FormatVersion, CurrentFormatVersion))
	}

	p := NewProjectSignature()
	for label, ad := range doc.Apps {
		app := NewAppSignature(label)
		for name, md := range ad.Models {
			model := &ModelSignature{
				Name:           name,
				TableName:      md.Table,
				Fields:         md.Fields,
				Indexes:        md.Indexes,
				UniqueTogether: md.UniqueTogether,
			}
			app.Models[name] = model
		}
		p.Apps[label] = app
	}
	return p, nil
}

// Fingerprint returns a stable 128-bit hash of the serialized signature,
// rendered as 32 hex characters. Identical structures always fingerprint
// equal, so a fingerprint match is a cheap pre-check. A mismatch is not
// proof of divergence (field ordering affects the bytes but not Equal),
// so callers fall back to a structural comparison before reporting one.
func (p *ProjectSignature) Fingerprint() (string, error) {
	data, err := p.Serialize()
	if err != nil {
		return "", err
	}
	h := murmur3.New128()
	h.Write(data)
	h1, h2 := h.Sum128()
	return fmt.Sprintf("%016x%016x", h1, h2), nil
}

// StringPtr returns a pointer to the given string, for optional attribute
// values such as field defaults.
func StringPtr(s string) *string {
	return &s
}

// BoolPtr returns a pointer to the given bool, for optional attribute
// overrides.
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to the given int, for optional attribute
// overrides.
func IntPtr(i int) *int {
	return &i
}
