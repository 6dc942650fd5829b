package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"

	"github.com/abemedia/plotview/internal/binding"
	"github.com/abemedia/plotview/internal/config"
	"github.com/abemedia/plotview/plotlyjs"
)

// fakeSurface runs dispatched work inline, one call at a time.
type fakeSurface struct {
	ui sync.Mutex

	mu       sync.Mutex
	bindings binding.Registry
	html     string
	evals    []string
}

func (s *fakeSurface) Dispatch(f func()) {
	s.ui.Lock()
	defer s.ui.Unlock()
	f()
}

func (s *fakeSurface) SetHtml(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

func (s *fakeSurface) Navigate(string) {}

func (s *fakeSurface) Eval(js string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, js)
}

func (s *fakeSurface) Bind(name string, f any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings.Add(name, f)
}

func (s *fakeSurface) Unbind(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings.Remove(name)
}

func (s *fakeSurface) call(t *testing.T, name string, args ...any) {
	t.Helper()
	req, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	s.Dispatch(func() {
		s.mu.Lock()
		fn, ok := s.bindings[name]
		s.mu.Unlock()
		if !ok {
			t.Errorf("%s is not bound", name)
			return
		}
		if _, err := fn(string(req)); err != nil {
			t.Error(err)
		}
	})
}

func (s *fakeSurface) lastEval() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.evals) == 0 {
		return ""
	}
	return s.evals[len(s.evals)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestAppWatchPushesUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure.json")
	if err := os.WriteFile(path, []byte(`{"data":[{"y":[1,2,3]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := newApp(config.Default(), discardLogger(), &flags{watch: true}, []string{path})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &fakeSurface{bindings: binding.Registry{}}
	reg := prometheus.NewRegistry()
	var startErr error
	var closeWidget func() error
	s.Dispatch(func() {
		w, err := a.start(ctx, s, reg)
		startErr = err
		if w != nil {
			closeWidget = w.Close
		}
	})
	if startErr != nil {
		t.Fatal(startErr)
	}
	defer s.Dispatch(func() { _ = closeWidget() })

	s.mu.Lock()
	html := s.html
	s.mu.Unlock()
	if !strings.Contains(html, `[1,2,3]`) {
		t.Fatal("document does not embed the initial figure")
	}

	s.call(t, "notifyReady", "Plot initialized")

	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"data":[{"y":[4,5,6]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(s.lastEval(), `[4,5,6]`) {
		if time.Now().After(deadline) {
			t.Fatalf("update not pushed, last eval: %q", s.lastEval())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if n := testutil.CollectAndCount(reg, "plotview_bridge_updates_total"); n != 1 {
		t.Errorf("updates_total series = %d; want 1", n)
	}
}

func TestAppInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure.json")
	if err := os.WriteFile(path, []byte(`[1,2,3]`), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := newApp(config.Default(), discardLogger(), &flags{}, []string{path})
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeSurface{bindings: binding.Registry{}}
	if _, err := a.start(context.Background(), s, nil); err == nil {
		t.Fatal("expected error for non-object figure")
	}
	if len(s.bindings) != 0 {
		t.Fatalf("bindings left behind: %v", s.bindings)
	}
}

func TestNewAppWatchNeedsInput(t *testing.T) {
	if _, err := newApp(config.Default(), discardLogger(), &flags{watch: true}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppDemoFigure(t *testing.T) {
	a, err := newApp(config.Default(), discardLogger(), &flags{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	fig, err := a.load()
	if err != nil {
		t.Fatal(err)
	}
	if len(fig.Data) != 1 || fig.Data[0]["name"] != "sin(x)" {
		t.Fatalf("demo figure = %v", fig.Data)
	}
}

func TestResolveFlagOverrides(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "plotview.toml")
	if err := os.WriteFile(cfgPath, []byte("delivery = \"cdn\"\nrouting = \"per-type\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &flags{}
	root := &cobra.Command{Use: "plotview"}
	f.register(root)
	var got config.Config
	root.AddCommand(&cobra.Command{
		Use: "check",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			got, _, err = f.resolve(cmd)
			return err
		},
	})
	root.SetArgs([]string{"check", "--config", cfgPath, "--delivery", "server", "--log-level", "warn"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if got.Delivery != "server" || got.Routing != "per-type" || got.LogLevel != "warn" {
		t.Fatalf("resolved config = %+v", got)
	}
}

func TestRuntimeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plotly.min.js")
	if err := os.WriteFile(path, []byte("window.Plotly = {};"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(plotlyjs.EnvPath, path)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"runtime", "--log-level", "error"})
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != plotlyjs.Version {
		t.Fatalf("output = %q", out.String())
	}
}

// countingSurface counts dispatched functions without running them.
type countingSurface struct {
	fakeSurface
	mu         sync.Mutex
	dispatched int
}

func (s *countingSurface) Dispatch(func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched++
}

func (s *countingSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

func TestTerminateOnDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSurface{}
	stop := terminateOnDone(ctx, s, func() {})

	cancel()
	stop()
	if n := s.count(); n != 1 {
		t.Fatalf("dispatched %d times; want 1", n)
	}
	stop()
}

func TestTerminateOnDoneStoppedFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSurface{}
	stop := terminateOnDone(ctx, s, func() {})

	stop()
	cancel()
	time.Sleep(50 * time.Millisecond)
	if n := s.count(); n != 0 {
		t.Fatalf("dispatched %d times after stop; want 0", n)
	}
}

func TestAppWaitStopsWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "figure.json")
	if err := os.WriteFile(path, []byte(`{"data":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := newApp(config.Default(), discardLogger(), &flags{watch: true}, []string{path})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSurface{fakeSurface: fakeSurface{bindings: binding.Registry{}}}
	w, err := a.start(ctx, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cancel()
	a.wait()

	before := s.count()
	if err := os.WriteFile(path, []byte(`{"data":[{"y":[1]}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := s.count(); n != before {
		t.Fatalf("dispatched %d times after wait returned", n-before)
	}
}

// lockedBuffer is an io.Writer safe for concurrent use.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAppLogsServerURLWhenReady(t *testing.T) {
	cfg := config.Default()
	cfg.Delivery = "server"
	var logs lockedBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	a, err := newApp(cfg, logger, &flags{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeSurface{bindings: binding.Registry{}}
	var w interface{ Close() error }
	s.Dispatch(func() {
		ww, err := a.start(context.Background(), s, nil)
		if err != nil {
			t.Error(err)
			return
		}
		w = ww
	})
	if w == nil {
		t.FailNow()
	}

	s.call(t, "notifyReady", "Plot initialized")
	// Closing right away clears the server on the UI thread while the
	// ready log is written.
	s.Dispatch(func() { _ = w.Close() })

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(logs.String(), "Chart ready") {
		if time.Now().After(deadline) {
			t.Fatalf("ready not logged: %s", logs.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(logs.String(), "url=http://127.0.0.1:") {
		t.Fatalf("ready log lacks server URL: %s", logs.String())
	}
}
