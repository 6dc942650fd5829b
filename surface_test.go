package plotview_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/abemedia/plotview/internal/binding"
)

// recordingSurface is an in-memory Surface. Tests play the page by invoking
// bound functions through call.
type recordingSurface struct {
	mu        sync.Mutex
	bindings  binding.Registry
	htmls     []string
	navigates []string
	evals     []string
	bindErr   error
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{bindings: binding.Registry{}}
}

func (s *recordingSurface) SetHtml(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.htmls = append(s.htmls, html)
}

func (s *recordingSurface) Navigate(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigates = append(s.navigates, url)
}

func (s *recordingSurface) Eval(js string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evals = append(s.evals, js)
}

func (s *recordingSurface) Bind(name string, f any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bindErr != nil {
		return s.bindErr
	}
	return s.bindings.Add(name, f)
}

func (s *recordingSurface) Unbind(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindings.Remove(name)
}

func (s *recordingSurface) bound(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bindings[name]
	return ok
}

func (s *recordingSurface) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.htmls) + len(s.navigates)
}

func (s *recordingSurface) evaluated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.evals...)
}

// call invokes a bound function the way page script would.
func (s *recordingSurface) call(t *testing.T, name string, args ...any) any {
	t.Helper()
	s.mu.Lock()
	fn, ok := s.bindings[name]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("%s is not bound", name)
	}
	if args == nil {
		args = []any{}
	}
	req, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	res, err := fn(string(req))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

// pushedFigure extracts the figure JSON from an evaluated pushUpdate script.
func pushedFigure(t *testing.T, js string) map[string]any {
	t.Helper()
	const prefix = `window.plotview && window.plotview.emit("pushUpdate", `
	if len(js) < len(prefix)+2 || js[:len(prefix)] != prefix {
		t.Fatalf("not a pushUpdate script: %s", js)
	}
	var lit string
	if err := json.Unmarshal([]byte(js[len(prefix):len(js)-2]), &lit); err != nil {
		t.Fatal(err)
	}
	var fig map[string]any
	if err := json.Unmarshal([]byte(lit), &fig); err != nil {
		t.Fatal(fmt.Errorf("figure: %w", err))
	}
	return fig
}
