package evolver

import (
	"encoding/json"
	"time"

	"github.com/evolvedb/evolve/internal/signature"
)

// StatementGroup collects the statements generated for one app, with
// execution progress. Failed holds the statement that stopped the run,
// if any.
type StatementGroup struct {
	App        string   `json:"app"`
	Statements []string `json:"statements"`
	Executed   int      `json:"executed"`
	Failed     string   `json:"failed,omitempty"`
}

// BatchRef names one authored batch included in a run.
type BatchRef struct {
	App   string `json:"app"`
	Label string `json:"label"`
}

// RunReport is the archivable record of a single evolution run. Plan
// holds the operations as planned, Optimized the sequence that actually
// ran.
type RunReport struct {
	RunID         string            `json:"run_id"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
	State         State             `json:"state"`
	Hinted        bool              `json:"hinted,omitempty"`
	Trusted       bool              `json:"trusted,omitempty"`
	BaseVersion   int               `json:"base_version"`
	TargetVersion int               `json:"target_version,omitempty"`
	Batches       []BatchRef        `json:"batches,omitempty"`
	Plan          []string          `json:"plan,omitempty"`
	Optimized     []string          `json:"optimized,omitempty"`
	Groups        []*StatementGroup `json:"groups,omitempty"`
	Error         string            `json:"error,omitempty"`

	targetSig *signature.ProjectSignature
}

// Marshal renders the report as indented JSON for archival.
func (r *RunReport) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
