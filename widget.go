// Package plotview embeds interactive Plotly charts in a web-rendering
// surface, forwards chart events to Go and pushes figure updates into the
// rendered page without reloading it.
//
// A Widget's methods must be called from the surface's UI thread. Background
// producers should hand figures over with the surface's Dispatch.
package plotview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Widget renders figures into a Surface. The first SetFigure loads the page;
// later calls update the chart in place.
type Widget struct {
	surface Surface
	bridge  *Bridge
	opts    Options
	log     *slog.Logger

	bound       []string
	initialized bool
	closed      bool
	server      *server
	detachPage  func()

	mu         sync.Mutex
	ready      bool
	readyCh    chan struct{}
	pending    string
	hasPending bool
	loaded     string // figure embedded in the loaded document
	latest     string // figure most recently set
}

// New binds the bridge entry points on surface and returns a widget drawing
// into it.
func New(surface Surface, opts Options) (*Widget, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}

	w := &Widget{
		surface: surface,
		opts:    opts,
		log:     opts.Logger.With("component", "plotview", "delivery", string(opts.Delivery)),
		readyCh: make(chan struct{}),
	}
	w.bridge = NewBridge(opts.Runtime, w.log)
	w.bridge.fetchTimeout = opts.HandshakeTimeout

	if err := w.bind(); err != nil {
		_ = w.unbind()
		return nil, err
	}
	if opts.Registerer != nil {
		if err := opts.Registerer.Register(w.bridge); err != nil {
			_ = w.unbind()
			return nil, err
		}
	}
	w.bridge.OnReady(w.onReady)

	return w, nil
}

// bind registers the bridge entry points with the surface.
func (w *Widget) bind() error {
	type entry struct {
		name string
		fn   any
	}
	b := w.bridge
	bindings := []entry{
		{"notifyReady", b.NotifyReady},
		{"notifyError", b.NotifyError},
		{"fetchRuntimeSource", b.FetchRuntimeSource},
	}
	switch w.opts.Routing {
	case RoutingSingle:
		bindings = append(bindings, entry{"notifyEvent", b.NotifyEvent})
	case RoutingPerType:
		for _, e := range Events {
			eventType := string(e)
			bindings = append(bindings, entry{e.DOMEvent(), func(payload string) { b.NotifyEvent(eventType, payload) }})
		}
	}

	for _, bnd := range bindings {
		if err := w.surface.Bind(bnd.name, bnd.fn); err != nil {
			return err
		}
		w.bound = append(w.bound, bnd.name)
	}
	return nil
}

func (w *Widget) unbind() error {
	var errs []error
	for _, name := range w.bound {
		if err := w.surface.Unbind(name); err != nil {
			errs = append(errs, err)
		}
	}
	w.bound = nil
	return errors.Join(errs...)
}

// Bridge returns the widget's bridge for subscribing to chart events.
func (w *Widget) Bridge() *Bridge {
	return w.bridge
}

// Initialized reports whether the page has been loaded.
func (w *Widget) Initialized() bool {
	return w.initialized
}

// URL returns the local server address for DeliveryServer, or "".
func (w *Widget) URL() string {
	if w.server == nil {
		return ""
	}
	return w.server.URL()
}

// SetFigure shows fig. The first call loads the page; later calls push the
// figure into the page already loaded. Updates sent before the page reports
// ready are coalesced and the latest one is pushed once it does.
//
// Serialization and load failures are returned with the widget unchanged, so
// the call can be retried.
func (w *Widget) SetFigure(fig any) error {
	if w.closed {
		return ErrClosed
	}
	data, err := Marshal(fig)
	if err != nil {
		return err
	}
	if !w.initialized {
		return w.initialize(data)
	}
	w.update(string(data))
	return nil
}

func (w *Widget) initialize(data []byte) error {
	doc := newDocument(w.opts.Routing, w.opts.HandshakeTimeout)

	switch w.opts.Delivery {
	case DeliveryInline:
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.HandshakeTimeout)
		src, err := w.opts.Runtime.Source(ctx)
		cancel()
		if err != nil {
			return err
		}
		doc.RuntimeInline = escapeScript(src)
		doc.Figure = string(data)
	case DeliveryFetch:
		doc.FetchRuntime = true
		doc.Figure = string(data)
	case DeliveryCDN:
		doc.RuntimeURL = w.opts.CDNURL
		doc.Figure = string(data)
	case DeliveryServer:
		doc.RuntimeURL = runtimePath
		doc.DataURL = dataPath
	}

	html, err := doc.render()
	if err != nil {
		return err
	}

	if w.opts.Delivery == DeliveryServer {
		srv := newServer(w.opts.Runtime, w.log)
		srv.setDocument(html)
		srv.setFigure(data)
		if err := srv.start(); err != nil {
			return err
		}
		w.server = srv
		w.surface.Navigate(srv.URL())
	} else {
		w.surface.SetHtml(html)
	}

	w.initialized = true
	w.mu.Lock()
	w.loaded, w.latest = string(data), string(data)
	w.mu.Unlock()
	w.log.Debug("Page loaded")
	return nil
}

func (w *Widget) update(figure string) {
	if w.server != nil {
		w.server.setFigure([]byte(figure))
	}

	w.mu.Lock()
	w.latest = figure
	if !w.ready {
		w.pending, w.hasPending = figure, true
		w.mu.Unlock()
		w.log.Debug("Page not ready, coalescing update")
		return
	}
	w.mu.Unlock()

	w.bridge.PushUpdate(figure)
}

// onReady attaches the page as an update listener and flushes any update
// coalesced while the page was loading. A page that reports ready again was
// reloaded from the original document and gets the latest figure pushed.
func (w *Widget) onReady(string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.ready {
		latest, stale := w.latest, w.opts.Delivery != DeliveryServer && w.latest != w.loaded
		w.mu.Unlock()
		if stale {
			w.log.Debug("Page reloaded, pushing latest figure")
			w.bridge.PushUpdate(latest)
		}
		return
	}
	w.ready = true
	pending, hasPending := w.pending, w.hasPending
	w.pending, w.hasPending = "", false
	w.detachPage = w.bridge.AttachPage(func(figure string) {
		w.surface.Eval(pushUpdateScript(figure))
	})
	close(w.readyCh)
	w.mu.Unlock()

	if hasPending {
		w.bridge.PushUpdate(pending)
	}
}

// WaitReady blocks until the page reported ready. It gives up with
// ErrHandshakeTimeout after Options.HandshakeTimeout or when ctx is done.
func (w *Widget) WaitReady(ctx context.Context) error {
	timer := time.NewTimer(w.opts.HandshakeTimeout)
	defer timer.Stop()

	select {
	case <-w.readyCh:
		return nil
	case <-timer.C:
		return ErrHandshakeTimeout
	case <-ctx.Done():
		return errors.Join(ErrHandshakeTimeout, ctx.Err())
	}
}

// Close unbinds the bridge and stops the local server if one is running. It is
// safe to call more than once.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	detach := w.detachPage
	w.mu.Unlock()

	if detach != nil {
		detach()
	}
	errs := []error{w.unbind()}
	if w.server != nil {
		errs = append(errs, w.server.close())
		w.server = nil
	}
	if w.opts.Registerer != nil {
		w.opts.Registerer.Unregister(w.bridge)
	}
	return errors.Join(errs...)
}
