package arbiter

import (
	"fmt"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer wraps an in-process NATS server, used both in production
// as the shared-owner transport and in tests in place of an external
// broker.
type EmbeddedServer struct {
	srv *server.Server
	url string
}

// StartEmbeddedServer starts an embedded NATS server on a random local
// port, JetStream disabled (the owner protocol needs only pub/sub and
// request/reply, not persistence, at this layer).
func StartEmbeddedServer() (*EmbeddedServer, error) {
	opts := &server.Options{Host: "127.0.0.1", Port: -1}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("arbiter: create embedded NATS server: %w", err)
	}

	go s.Start()
	if !s.ReadyForConnections(5_000_000_000) {
		return nil, fmt.Errorf("arbiter: embedded NATS server not ready")
	}

	return &EmbeddedServer{srv: s, url: s.ClientURL()}, nil
}

// URL returns the connection URL client endpoints dial.
func (e *EmbeddedServer) URL() string { return e.url }

// Shutdown stops the embedded server and waits for it to fully exit.
func (e *EmbeddedServer) Shutdown() {
	if e.srv == nil {
		return
	}
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
