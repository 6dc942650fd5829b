package plotview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	documentPath = "/"
	dataPath     = "/plot-data"
	runtimePath  = "/plotly.min.js"

	maxBindAttempts        = 3
	defaultShutdownTimeout = 5 * time.Second
)

// server serves the page, the current figure and the runtime over loopback
// HTTP for DeliveryServer.
type server struct {
	runtime RuntimeSource
	log     *slog.Logger
	listen  func(network, address string) (net.Listener, error)

	mu       sync.RWMutex
	document string
	figure   []byte

	httpServer *http.Server
	addr       string
	done       chan struct{}
}

func newServer(runtime RuntimeSource, logger *slog.Logger) *server {
	return &server{
		runtime: runtime,
		log:     logger,
		listen:  net.Listen,
	}
}

func (s *server) setDocument(doc string) {
	s.mu.Lock()
	s.document = doc
	s.mu.Unlock()
}

func (s *server) setFigure(fig []byte) {
	s.mu.Lock()
	s.figure = fig
	s.mu.Unlock()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	switch r.URL.Path {
	case documentPath:
		s.mu.RLock()
		doc := s.document
		s.mu.RUnlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(doc))

	case dataPath:
		s.mu.RLock()
		fig := s.figure
		s.mu.RUnlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fig)

	case runtimePath:
		src, err := s.runtime.Source(r.Context())
		if err != nil {
			s.log.Error("Failed to load runtime source", "err", err)
			http.Error(w, "runtime unavailable", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(src))

	default:
		http.NotFound(w, r)
	}
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("Incoming request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// start listens on a fresh loopback port, retrying bind failures, and serves
// in a background goroutine.
func (s *server) start() error {
	var (
		ln  net.Listener
		err error
	)
	for attempt := 1; attempt <= maxBindAttempts; attempt++ {
		ln, err = s.listen("tcp", "127.0.0.1:0")
		if err == nil {
			break
		}
		s.log.Warn("Failed to bind local server", "attempt", attempt, "err", err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerBind, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.loggingMiddleware(s),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.addr = ln.Addr().String()
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		s.log.Info("Local server starting", "listen_addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Local server failed", "err", err)
		}
	}(s.httpServer, s.done)

	return nil
}

// URL returns the document URL. It is empty before start.
func (s *server) URL() string {
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr + documentPath
}

// close shuts the server down and waits for the serve goroutine. It is safe to
// call when the server never started and to call more than once.
func (s *server) close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	<-s.done
	s.httpServer = nil
	s.addr = ""
	if err != nil {
		return fmt.Errorf("plotview: shutdown local server: %w", err)
	}
	s.log.Info("Local server stopped")
	return nil
}
