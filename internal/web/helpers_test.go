package web

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nao1215/reconweb/internal/scope"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bufferLogger returns a logger writing warnings and above to buf.
func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// loopbackGate returns a gate that accepts only 127.0.0.1, where httptest
// servers listen.
func loopbackGate(t *testing.T) scope.Gate {
	t.Helper()

	target, err := scope.NewTarget("127.0.0.1")
	if err != nil {
		t.Fatalf("failed to build scope: %v", err)
	}
	return target
}

// denyGate returns a gate that rejects every target.
func denyGate() scope.Gate {
	return scope.GateFunc(func(string) bool { return false })
}

// countingServer starts a server that counts requests before calling handler.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

// newTestDispatcher creates a Dispatcher for tests using the server's client.
func newTestDispatcher(server *httptest.Server, gate scope.Gate, opts ...Option) *Dispatcher {
	base := []Option{WithHTTPClient(server.Client()), WithLogger(discardLogger())}
	return NewDispatcher(gate, append(base, opts...)...)
}
