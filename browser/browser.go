// Package browser implements a rendering surface inside an ordinary browser
// tab. The View serves a small shell page that connects back over a
// WebSocket; documents, scripts and bound-function calls travel over that
// connection.
//
// Bindings survive SetHtml, which rewrites the shell document in place, but
// not Navigate, which leaves the shell.
package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abemedia/plotview/internal/binding"
)

//go:embed shell.html
var shell []byte

const (
	shellPath  = "/"
	socketPath = "/ws"

	writeTimeout           = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// message is the wire format in both directions.
type message struct {
	Type   string          `json:"type"`
	Data   string          `json:"data,omitempty"`
	Names  []string        `json:"names,omitempty"`
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Status int             `json:"status,omitempty"`
}

// View is a browser-backed surface. Bound functions and dispatched functions
// run one at a time on the goroutine calling Run.
type View struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	bindings binding.Registry
	conn     *websocket.Conn
	html     string
	url      string

	writeMu sync.Mutex

	queue    chan func()
	done     chan struct{}
	termOnce sync.Once
}

// New returns a view. A nil logger means slog.Default().
func New(logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		log:      logger.With("component", "browser"),
		bindings: binding.Registry{},
		queue:    make(chan func(), 64),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
	}
}

// sameOrigin only admits the shell page served by this view.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Run executes dispatched work until Terminate is called.
func (v *View) Run() {
	for {
		select {
		case f := <-v.queue:
			f()
		case <-v.done:
			return
		}
	}
}

// Terminate stops Run and closes the page connection.
func (v *View) Terminate() {
	v.termOnce.Do(func() {
		close(v.done)
		v.mu.Lock()
		conn := v.conn
		v.conn = nil
		v.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
}

// Dispatch schedules f on the Run goroutine. It is dropped after Terminate.
func (v *View) Dispatch(f func()) {
	select {
	case v.queue <- f:
	case <-v.done:
	}
}

// SetHtml replaces the page document. It is replayed to pages that connect
// later.
func (v *View) SetHtml(html string) {
	v.mu.Lock()
	v.html, v.url = html, ""
	v.mu.Unlock()
	v.send(message{Type: "html", Data: html})
}

// Navigate points the page at url.
func (v *View) Navigate(url string) {
	v.mu.Lock()
	v.html, v.url = "", url
	v.mu.Unlock()
	v.send(message{Type: "navigate", Data: url})
}

// Eval runs js in the page. It is dropped if no page is connected.
func (v *View) Eval(js string) {
	v.send(message{Type: "eval", Data: js})
}

// Bind registers f as window[name] in the page.
func (v *View) Bind(name string, f any) error {
	v.mu.Lock()
	err := v.bindings.Add(name, f)
	names := v.boundNames()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.send(message{Type: "bind", Names: names})
	return nil
}

// Unbind removes window[name] from the page.
func (v *View) Unbind(name string) error {
	v.mu.Lock()
	err := v.bindings.Remove(name)
	names := v.boundNames()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.send(message{Type: "bind", Names: names})
	return nil
}

// boundNames must be called with v.mu held.
func (v *View) boundNames() []string {
	names := make([]string, 0, len(v.bindings))
	for name := range v.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *View) send(m message) {
	v.mu.Lock()
	conn := v.conn
	v.mu.Unlock()
	if conn == nil {
		v.log.Debug("No page connected, dropping message", "type", m.Type)
		return
	}
	if err := v.write(conn, m); err != nil {
		v.log.Warn("Failed to send message to page", "type", m.Type, "err", err)
	}
}

func (v *View) write(conn *websocket.Conn, m message) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}

// ServeHTTP serves the shell page and its WebSocket.
func (v *View) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case shellPath:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(shell)
	case socketPath:
		v.serveSocket(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (v *View) serveSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := v.upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.log.Warn("WebSocket upgrade failed", "err", err)
		return
	}

	select {
	case <-v.done:
		_ = conn.Close()
		return
	default:
	}

	// Only the most recent page is driven; an older tab is disconnected.
	v.mu.Lock()
	prev := v.conn
	v.conn = conn
	names := v.boundNames()
	html, url := v.html, v.url
	v.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	v.log.Info("Page connected", "remote_addr", r.RemoteAddr)

	replay := []message{{Type: "bind", Names: names}}
	switch {
	case html != "":
		replay = append(replay, message{Type: "html", Data: html})
	case url != "":
		replay = append(replay, message{Type: "navigate", Data: url})
	}
	for _, m := range replay {
		if err := v.write(conn, m); err != nil {
			v.log.Warn("Failed to replay page state", "err", err)
			break
		}
	}

	v.readLoop(conn)
}

func (v *View) readLoop(conn *websocket.Conn) {
	defer func() {
		v.mu.Lock()
		if v.conn == conn {
			v.conn = nil
		}
		v.mu.Unlock()
		_ = conn.Close()
		v.log.Info("Page disconnected")
	}()

	for {
		var m message
		if err := conn.ReadJSON(&m); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				v.log.Debug("Read from page failed", "err", err)
			}
			return
		}
		if m.Type != "call" {
			v.log.Debug("Ignoring message from page", "type", m.Type)
			continue
		}
		v.Dispatch(func() { v.call(conn, m) })
	}
}

// call runs a bound function on the Run goroutine and returns its result to
// the page.
func (v *View) call(conn *websocket.Conn, m message) {
	v.mu.Lock()
	fn, ok := v.bindings[m.Name]
	v.mu.Unlock()

	var res any
	var err error
	if ok {
		res, err = fn(string(m.Args))
	} else {
		err = errors.New("browser: " + m.Name + " is not bound")
	}

	reply := message{Type: "return", ID: m.ID}
	if err == nil {
		b, merr := json.Marshal(res)
		if merr == nil {
			reply.Data = string(b)
		} else {
			err = merr
		}
	}
	if err != nil {
		b, _ := json.Marshal(err.Error())
		reply.Status, reply.Data = 1, string(b)
	}
	if err := v.write(conn, reply); err != nil {
		v.log.Debug("Failed to return result to page", "err", err)
	}
}

// ListenAndServe serves the view on addr until ctx is done or Terminate is
// called, then shuts the server down gracefully.
func (v *View) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           v,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		v.log.Info("Browser surface listening", "url", "http://"+ln.Addr().String()+shellPath)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	case <-v.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serverErr
}
