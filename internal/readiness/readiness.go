// Package readiness models the base node's readiness as reported over gRPC:
// either a plain state code or an in-progress database migration.
package readiness

import (
	"encoding/json"
	"fmt"

	"nodewatch/internal/api"
)

// State codes reported by the node.
const (
	CodeNotReady                     int32 = 0
	CodeStartingUp                   int32 = 1
	CodeDatabaseInitializing         int32 = 10
	CodeRecoveringPreparing          int32 = 20
	CodeRecoveringRebuilding         int32 = 21
	CodeRecoveringRebuildingDatabase int32 = 22
	CodeBuildingContextBlockchain    int32 = 32
	CodeBuildingContextBootstrap     int32 = 34
	CodeReady                        int32 = 100

	// CodeMigrating is the representative code reported for a migration.
	CodeMigrating int32 = 50
)

var labels = map[int32]string{
	CodeNotReady:                     "Not Ready",
	CodeStartingUp:                   "Starting Up",
	CodeDatabaseInitializing:         "Database Initializing",
	CodeRecoveringPreparing:          "Recovering - Preparing",
	CodeRecoveringRebuilding:         "Recovering - Rebuilding",
	CodeRecoveringRebuildingDatabase: "Recovering - Rebuilding Database",
	CodeBuildingContextBlockchain:    "Building Context - Blockchain",
	CodeBuildingContextBootstrap:     "Building Context - Bootstrap",
	CodeReady:                        "Ready",
}

// Kind discriminates the two variants of Status.
type Kind uint8

const (
	KindState Kind = iota
	KindMigration
)

// MigrationProgress carries the counters of a database migration.
type MigrationProgress struct {
	CurrentBlock       uint64  `json:"current_block"`
	TotalBlocks        uint64  `json:"total_blocks"`
	ProgressPercentage float64 `json:"progress_percentage"`
	CurrentDbVersion   uint64  `json:"current_db_version"`
	TargetDbVersion    uint64  `json:"target_db_version"`
}

// Status is either a state code or a migration, never both. The zero value
// is NotReady. Status is comparable.
type Status struct {
	kind      Kind
	code      int32
	migration MigrationProgress
}

var (
	NotReady = State(CodeNotReady)
	Ready    = State(CodeReady)
)

func State(code int32) Status {
	return Status{kind: KindState, code: code}
}

func Migration(p MigrationProgress) Status {
	return Status{kind: KindMigration, migration: p}
}

func (s Status) Kind() Kind { return s.kind }

// StateCode returns the state code and true for the state variant.
func (s Status) StateCode() (int32, bool) {
	return s.code, s.kind == KindState
}

// Migration returns the progress and true for the migration variant.
func (s Status) Migration() (MigrationProgress, bool) {
	return s.migration, s.kind == KindMigration
}

// IsReady is true only for state code 100.
func (s Status) IsReady() bool {
	return s.kind == KindState && s.code == CodeReady
}

func (s Status) IsInitializing() bool {
	return !s.IsReady()
}

// Code returns the state code, or CodeMigrating for a migration.
func (s Status) Code() int32 {
	if s.kind == KindMigration {
		return CodeMigrating
	}
	return s.code
}

// Label is the short human readable name.
func (s Status) Label() string {
	if s.kind == KindMigration {
		return "Migrating Database"
	}
	if l, ok := labels[s.code]; ok {
		return l
	}
	return "Unknown State"
}

// String is the detailed label, including migration progress.
func (s Status) String() string {
	if s.kind == KindMigration {
		p := s.migration
		return fmt.Sprintf("Migrating DB v%d -> v%d (%.1f%% - %d/%d)",
			p.CurrentDbVersion, p.TargetDbVersion, p.ProgressPercentage, p.CurrentBlock, p.TotalBlocks)
	}
	if l, ok := labels[s.code]; ok {
		return l
	}
	return fmt.Sprintf("Unknown State (%d)", s.code)
}

// ToWire encodes s with exactly one oneof member set.
func (s Status) ToWire() *api.ReadinessStatus {
	if s.kind == KindMigration {
		p := s.migration
		return &api.ReadinessStatus{Migration: &api.MigrationProgress{
			CurrentBlock:       p.CurrentBlock,
			TotalBlocks:        p.TotalBlocks,
			ProgressPercentage: p.ProgressPercentage,
			CurrentDbVersion:   p.CurrentDbVersion,
			TargetDbVersion:    p.TargetDbVersion,
		}}
	}
	code := s.code
	return &api.ReadinessStatus{State: &code}
}

// FromWire decodes a wire status. A nil message or an unset oneof is NotReady.
func FromWire(w *api.ReadinessStatus) Status {
	switch {
	case w == nil:
		return NotReady
	case w.State != nil:
		return State(*w.State)
	case w.Migration != nil:
		return Migration(MigrationProgress{
			CurrentBlock:       w.Migration.CurrentBlock,
			TotalBlocks:        w.Migration.TotalBlocks,
			ProgressPercentage: w.Migration.ProgressPercentage,
			CurrentDbVersion:   w.Migration.CurrentDbVersion,
			TargetDbVersion:    w.Migration.TargetDbVersion,
		})
	}
	return NotReady
}

type jsonStatus struct {
	State     *int32             `json:"State,omitempty"`
	Migration *MigrationProgress `json:"Migration,omitempty"`
}

// MarshalJSON renders {"State":n} or {"Migration":{...}}.
func (s Status) MarshalJSON() ([]byte, error) {
	if s.kind == KindMigration {
		p := s.migration
		return json.Marshal(jsonStatus{Migration: &p})
	}
	code := s.code
	return json.Marshal(jsonStatus{State: &code})
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var js jsonStatus
	if err := json.Unmarshal(b, &js); err != nil {
		return err
	}
	switch {
	case js.State != nil && js.Migration != nil:
		return fmt.Errorf("readiness: both State and Migration set")
	case js.Migration != nil:
		*s = Migration(*js.Migration)
	case js.State != nil:
		*s = State(*js.State)
	default:
		*s = NotReady
	}
	return nil
}
