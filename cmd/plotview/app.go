package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abemedia/plotview"
	"github.com/abemedia/plotview/internal/config"
	"github.com/abemedia/plotview/internal/sheet"
	"github.com/abemedia/plotview/internal/watch"
)

// surface is a plotview.Surface that can run work on its UI thread.
type surface interface {
	plotview.Surface
	Dispatch(f func())
}

// app wires a figure source to a widget.
type app struct {
	cfg   config.Config
	log   *slog.Logger
	input string
	sheet string
	watch bool

	wg sync.WaitGroup // file watcher
}

func newApp(cfg config.Config, logger *slog.Logger, f *flags, args []string) (*app, error) {
	a := &app{cfg: cfg, log: logger, sheet: f.sheet, watch: f.watch}
	if len(args) > 0 {
		a.input = args[0]
	}
	if a.watch && a.input == "" {
		return nil, errors.New("--watch needs an input file")
	}
	return a, nil
}

// start creates the widget and shows the first figure. It must run on the
// surface's UI thread. File changes are pushed until ctx is done.
func (a *app) start(ctx context.Context, s surface, reg prometheus.Registerer) (*plotview.Widget, error) {
	fig, err := a.load()
	if err != nil {
		return nil, err
	}

	opts := a.cfg.Options()
	opts.Logger = a.log
	opts.Registerer = reg
	w, err := plotview.New(s, opts)
	if err != nil {
		return nil, err
	}

	b := w.Bridge()
	b.OnEvent(func(e plotview.Envelope) {
		a.log.Info("Chart event", "type", e.Type, "payload", e.Payload)
	})
	b.OnError(func(kind, message string) {
		a.log.Error("Page error", "kind", kind, "message", message)
	})

	if err := w.SetFigure(fig); err != nil {
		_ = w.Close()
		return nil, err
	}

	url := w.URL()
	go func() {
		if err := w.WaitReady(ctx); err != nil {
			a.log.Warn("Chart did not become ready", "err", err)
			return
		}
		a.log.Info("Chart ready", "url", url)
	}()

	if a.watch {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			err := watch.File(ctx, a.input, 0, a.log, func(b []byte) {
				fig, err := a.decode(b)
				if err != nil {
					a.log.Warn("Ignoring invalid figure", "path", a.input, "err", err)
					return
				}
				s.Dispatch(func() {
					if err := w.SetFigure(fig); err != nil {
						a.log.Warn("Failed to update figure", "err", err)
					}
				})
			})
			if err != nil {
				a.log.Error("Watching input failed", "path", a.input, "err", err)
			}
		}()
	}

	return w, nil
}

// wait blocks until the file watcher started by start has returned. Once it
// does, nothing is dispatched to the surface on the watcher's behalf.
func (a *app) wait() {
	a.wg.Wait()
}

// terminateOnDone dispatches terminate to s once ctx is done. After the
// returned stop function returns no further dispatch takes place, so the
// surface can be destroyed.
func terminateOnDone(ctx context.Context, s surface, terminate func()) (stop func()) {
	done := make(chan struct{})
	stopAfter := context.AfterFunc(ctx, func() {
		defer close(done)
		s.Dispatch(terminate)
	})
	var once sync.Once
	return func() {
		once.Do(func() {
			if !stopAfter() {
				<-done
			}
		})
	}
}

func (a *app) load() (plotview.Figure, error) {
	if a.input == "" {
		return demoFigure(), nil
	}
	b, err := os.ReadFile(a.input)
	if err != nil {
		return plotview.Figure{}, err
	}
	return a.decode(b)
}

// decode parses the input as a workbook or a figure JSON document, picked by
// file extension.
func (a *app) decode(b []byte) (plotview.Figure, error) {
	switch strings.ToLower(filepath.Ext(a.input)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return sheet.Read(bytes.NewReader(b), a.sheet)
	default:
		return plotview.ParseFigure(b)
	}
}

// demoFigure is shown when no input file is given.
func demoFigure() plotview.Figure {
	const n = 100
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range n {
		x[i] = float64(i) / 10
		y[i] = math.Sin(x[i])
	}
	return plotview.Figure{
		Data: []plotview.Trace{{"type": "scatter", "mode": "lines", "name": "sin(x)", "x": x, "y": y}},
		Layout: map[string]any{
			"title": map[string]any{"text": "plotview"},
		},
	}
}
