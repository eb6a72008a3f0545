package nats

import (
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
)

// Embedded is an in-process NATS server with JetStream enabled. It
// backs single-binary deployments that want the event bus and result
// cache without operating a separate NATS installation.
type Embedded struct {
	srv *natsserver.Server
}

// RunEmbedded starts an in-process NATS server on a random port,
// storing JetStream state under storeDir. It blocks until the server
// accepts connections.
func RunEmbedded(storeDir string) (*Embedded, error) {
	opts := &natsserver.Options{
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  storeDir,
	}

	srv, err := natsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("embedded nats server: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready")
	}

	return &Embedded{srv: srv}, nil
}

// ClientURL returns the URL clients use to reach the embedded server.
func (e *Embedded) ClientURL() string {
	return e.srv.ClientURL()
}

// Shutdown stops the server and waits for it to finish.
func (e *Embedded) Shutdown() {
	e.srv.Shutdown()
	e.srv.WaitForShutdown()
}
