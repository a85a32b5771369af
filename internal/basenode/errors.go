package basenode

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNodeNotStarted means the node could not be reached at all.
	ErrNodeNotStarted = errors.New("node not started")
	// ErrMissingBlockData means a streamed block came without block or header.
	ErrMissingBlockData = errors.New("block response missing block or header data")
	// ErrVersionTooOld means the node reports a version below the minimum.
	ErrVersionTooOld = errors.New("node version too old")
)

// UnknownError wraps any transport, protocol or decode failure other than an
// unreachable node.
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown error: %v", e.Err)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// classify maps a gRPC error onto the error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Unavailable {
		return fmt.Errorf("%s: %w", op, ErrNodeNotStarted)
	}
	return &UnknownError{Err: fmt.Errorf("%s: %w", op, err)}
}

// IsTimeout reports whether err is a deadline expiry, either from the local
// context or reported by gRPC.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := status.FromError(e); ok && s.Code() == codes.DeadlineExceeded {
			return true
		}
	}
	return false
}
