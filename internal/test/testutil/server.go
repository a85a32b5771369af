package testutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// BufnetTarget is the dial target for servers started by NewTestGRPCServer.
const BufnetTarget = "passthrough:///bufnet"

// TestHTTPServer represents a test HTTP server
type TestHTTPServer struct {
	t      *testing.T
	Server *httptest.Server
}

// NewTestHTTPServer creates a new test HTTP server
func NewTestHTTPServer(t *testing.T, handler http.Handler) *TestHTTPServer {
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})
	return &TestHTTPServer{
		t:      t,
		Server: server,
	}
}

// URL returns the server URL
func (s *TestHTTPServer) URL() string {
	return s.Server.URL
}

// TestGRPCServer represents a test gRPC server listening on an in-memory
// connection
type TestGRPCServer struct {
	t        *testing.T
	Server   *grpc.Server
	listener *bufconn.Listener
}

// NewTestGRPCServer creates and starts a new test gRPC server
func NewTestGRPCServer(t *testing.T, registerServer func(*grpc.Server), opts ...grpc.ServerOption) *TestGRPCServer {
	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer(opts...)
	registerServer(server)

	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("Error serving gRPC: %v", err)
		}
	}()

	t.Cleanup(func() {
		server.Stop()
		lis.Close()
	})

	return &TestGRPCServer{
		t:        t,
		Server:   server,
		listener: lis,
	}
}

// DialOptions return the options that route BufnetTarget to this server.
// Callers supply their own transport credentials.
func (s *TestGRPCServer) DialOptions() []grpc.DialOption {
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return s.listener.DialContext(ctx)
	}
	return []grpc.DialOption{grpc.WithContextDialer(dialer)}
}

// Stop stops the server so that further dials fail
func (s *TestGRPCServer) Stop() {
	s.Server.Stop()
	s.listener.Close()
}
