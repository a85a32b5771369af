package readiness

import (
	"encoding/json"
	"testing"

	"nodewatch/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleMigration = MigrationProgress{
	CurrentBlock:       1250,
	TotalBlocks:        5000,
	ProgressPercentage: 25.04,
	CurrentDbVersion:   3,
	TargetDbVersion:    4,
}

func TestClassification(t *testing.T) {
	var zero Status
	assert.Equal(t, NotReady, zero)
	assert.False(t, zero.IsReady())

	assert.True(t, Ready.IsReady())
	assert.False(t, Ready.IsInitializing())

	for _, code := range []int32{0, 1, 10, 20, 21, 22, 32, 34, 99, 101, -1} {
		s := State(code)
		assert.False(t, s.IsReady(), "code %d", code)
		assert.True(t, s.IsInitializing(), "code %d", code)
	}

	m := Migration(sampleMigration)
	assert.True(t, m.IsInitializing())
	assert.Equal(t, CodeMigrating, m.Code())
	assert.Equal(t, KindMigration, m.Kind())
	_, ok := m.StateCode()
	assert.False(t, ok)
	p, ok := m.Migration()
	assert.True(t, ok)
	assert.Equal(t, sampleMigration, p)
}

func TestLabels(t *testing.T) {
	tests := []struct {
		status   Status
		label    string
		detailed string
	}{
		{NotReady, "Not Ready", "Not Ready"},
		{State(CodeStartingUp), "Starting Up", "Starting Up"},
		{State(CodeDatabaseInitializing), "Database Initializing", "Database Initializing"},
		{State(CodeRecoveringPreparing), "Recovering - Preparing", "Recovering - Preparing"},
		{State(CodeRecoveringRebuilding), "Recovering - Rebuilding", "Recovering - Rebuilding"},
		{State(CodeRecoveringRebuildingDatabase), "Recovering - Rebuilding Database", "Recovering - Rebuilding Database"},
		{State(CodeBuildingContextBlockchain), "Building Context - Blockchain", "Building Context - Blockchain"},
		{State(CodeBuildingContextBootstrap), "Building Context - Bootstrap", "Building Context - Bootstrap"},
		{Ready, "Ready", "Ready"},
		{State(7), "Unknown State", "Unknown State (7)"},
		{Migration(sampleMigration), "Migrating Database", "Migrating DB v3 -> v4 (25.0% - 1250/5000)"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.label, tt.status.Label())
			assert.Equal(t, tt.detailed, tt.status.String())
		})
	}
}

func TestWireRoundTrip(t *testing.T) {
	for _, s := range []Status{NotReady, State(CodeStartingUp), Ready, State(-5), Migration(sampleMigration), Migration(MigrationProgress{})} {
		w := s.ToWire()
		if _, ok := s.StateCode(); ok {
			assert.NotNil(t, w.State)
			assert.Nil(t, w.Migration)
		} else {
			assert.Nil(t, w.State)
			assert.NotNil(t, w.Migration)
		}

		raw, err := w.Marshal()
		require.NoError(t, err)
		var decoded api.ReadinessStatus
		require.NoError(t, decoded.Unmarshal(raw))
		assert.Equal(t, s, FromWire(&decoded), s.String())
	}
}

func TestFromWireAbsent(t *testing.T) {
	assert.Equal(t, NotReady, FromWire(nil))
	assert.Equal(t, NotReady, FromWire(&api.ReadinessStatus{}))

	var decoded api.ReadinessStatus
	require.NoError(t, decoded.Unmarshal(nil))
	assert.Equal(t, NotReady, FromWire(&decoded))
}

func TestJSON(t *testing.T) {
	raw, err := json.Marshal(Ready)
	require.NoError(t, err)
	assert.JSONEq(t, `{"State":100}`, string(raw))

	raw, err = json.Marshal(NotReady)
	require.NoError(t, err)
	assert.JSONEq(t, `{"State":0}`, string(raw))

	m := Migration(sampleMigration)
	raw, err = json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Migration":{"current_block":1250,"total_blocks":5000,"progress_percentage":25.04,"current_db_version":3,"target_db_version":4}}`, string(raw))

	var got Status
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, m, got)

	assert.Error(t, json.Unmarshal([]byte(`{"State":1,"Migration":{}}`), &got))
}
