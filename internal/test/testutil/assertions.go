package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RequireEventually asserts that a condition becomes true within a timeout
func RequireEventually(t *testing.T, condition func() bool, timeout time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}

// RequireNever asserts that a condition never becomes true within a timeout
func RequireNever(t *testing.T, condition func() bool, timeout time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			require.Fail(t, "Condition unexpectedly met", msgAndArgs...)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
