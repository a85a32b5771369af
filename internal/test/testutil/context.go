package testutil

import (
	"context"
	"testing"
	"time"
)

// DefaultTimeout bounds every test context
const DefaultTimeout = 5 * time.Second

// NewTestContext returns a context cancelled when the test ends or after
// DefaultTimeout
func NewTestContext(t *testing.T) context.Context {
	return NewTestContextWithTimeout(t, DefaultTimeout)
}

// NewTestContextWithTimeout returns a context cancelled when the test ends or
// after timeout
func NewTestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
