package testutil

import (
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogHook captures entries logged through the standard logrus logger,
// which every component logger derives from
type TestLogHook struct {
	mu      sync.RWMutex
	levels  []logrus.Level
	entries []*logrus.Entry
}

// NewTestLogHook installs a hook on the standard logger for the duration of
// the test. With no levels given it captures every level.
func NewTestLogHook(t *testing.T, levels ...logrus.Level) *TestLogHook {
	if len(levels) == 0 {
		levels = logrus.AllLevels
	}
	h := &TestLogHook{
		levels:  levels,
		entries: make([]*logrus.Entry, 0),
	}

	std := logrus.StandardLogger()
	prevLevel := std.GetLevel()
	std.SetLevel(logrus.TraceLevel)
	std.AddHook(h)

	t.Cleanup(func() {
		std.ReplaceHooks(make(logrus.LevelHooks))
		std.SetLevel(prevLevel)
	})
	return h
}

// Levels returns the hook levels
func (h *TestLogHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook
func (h *TestLogHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

// Entries returns the captured log entries
func (h *TestLogHook) Entries() []*logrus.Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*logrus.Entry{}, h.entries...)
}

// Clear clears the captured entries
func (h *TestLogHook) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make([]*logrus.Entry, 0)
}

// Find returns the first entry at level whose message contains substr
func (h *TestLogHook) Find(level logrus.Level, substr string) *logrus.Entry {
	for _, entry := range h.Entries() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			return entry
		}
	}
	return nil
}

// RequireEntry asserts that an entry exists
func (h *TestLogHook) RequireEntry(t *testing.T, level logrus.Level, substr string) *logrus.Entry {
	t.Helper()
	entry := h.Find(level, substr)
	if entry == nil {
		t.Errorf("Log entry not found: [%s] %s", level, substr)
	}
	return entry
}

// RequireNoEntry asserts that an entry does not exist
func (h *TestLogHook) RequireNoEntry(t *testing.T, level logrus.Level, substr string) {
	t.Helper()
	if entry := h.Find(level, substr); entry != nil {
		t.Errorf("Unexpected log entry found: [%s] %s", level, entry.Message)
	}
}
