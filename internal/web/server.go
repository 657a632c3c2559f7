// Package web is the host's local HTTP endpoint. It listens on a unix socket
// and is the target a second process forwards an address to when the host
// is already running.
package web

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tubestreak/internal/host"
)

// shutdownTimeout bounds graceful shutdown of the endpoint.
const shutdownTimeout = 5 * time.Second

// ErrHostRunning is returned by Listen when another host owns the socket.
var ErrHostRunning = stderrors.New("a host is already listening")

// NewServer creates the HTTP server for the host endpoint. Addresses posted
// to /open are sent on events.
func NewServer(ing *host.Ingestor, events chan<- string, version string) *http.Server {
	h := &Handlers{
		ingestor: ing,
		events:   events,
		version:  version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /open", h.HandleOpen)
	mux.HandleFunc("GET /status", h.HandleStatus)

	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Listen opens the unix socket at socketPath. A socket file left behind by
// a host that is no longer running is removed first; if another host is
// still answering on it, Listen fails.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", socketPath, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("%w on %s", ErrHostRunning, socketPath)
		}
		logrus.WithField("path", socketPath).Debug("removing stale socket")
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", socketPath)
	if stderrors.Is(err, syscall.EADDRINUSE) {
		// Bound by another host between the check above and here.
		return nil, fmt.Errorf("%w on %s", ErrHostRunning, socketPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	// Best-effort, may not work on all platforms
	_ = os.Chmod(socketPath, 0600)
	return ln, nil
}

// Serve runs srv on ln until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logrus.WithField("path", ln.Addr().String()).Info("host endpoint listening")

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logrus.Debug("shutting down host endpoint")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
