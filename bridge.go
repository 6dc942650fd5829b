package plotview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bridge is the host-side object reachable from page script. Inbound calls
// (NotifyReady, NotifyEvent, NotifyError, FetchRuntimeSource) come from the
// page; PushUpdate goes to it. Host code subscribes with On, OnEvent, OnReady,
// OnUpdate and OnError.
//
// Subscribers are called synchronously on the goroutine delivering the
// notification, which for every surface in this module is the UI thread.
//
// Bridge implements prometheus.Collector.
type Bridge struct {
	runtime      RuntimeSource
	fetchTimeout time.Duration
	log          *slog.Logger
	metrics      *metrics

	mu      sync.Mutex
	perType [len(Events)][]func(payload string)
	all     []func(Envelope)
	ready   []func(message string)
	update  []func(figure string)
	errs    []func(kind, message string)
	pages   map[uint64]func(figure string)
	pageSeq uint64
}

// NewBridge returns a bridge serving the given runtime source. A nil logger
// means slog.Default().
func NewBridge(runtime RuntimeSource, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		runtime: runtime,
		log:     logger,
		metrics: newMetrics(),
		pages:   make(map[uint64]func(string)),
	}
}

// On subscribes fn to a single chart event type. Only types in Events can be
// subscribed individually; use OnEvent for everything else.
func (b *Bridge) On(e EventType, fn func(payload string)) error {
	i, ok := e.index()
	if !ok {
		return errors.New("plotview: unknown event type " + string(e))
	}
	b.mu.Lock()
	b.perType[i] = append(b.perType[i], fn)
	b.mu.Unlock()
	return nil
}

// OnEvent subscribes fn to every event the page forwards, known or not.
func (b *Bridge) OnEvent(fn func(Envelope)) {
	b.mu.Lock()
	b.all = append(b.all, fn)
	b.mu.Unlock()
}

// OnReady subscribes fn to the page's ready notification.
func (b *Bridge) OnReady(fn func(message string)) {
	b.mu.Lock()
	b.ready = append(b.ready, fn)
	b.mu.Unlock()
}

// OnUpdate subscribes fn to every figure pushed to the page.
func (b *Bridge) OnUpdate(fn func(figure string)) {
	b.mu.Lock()
	b.update = append(b.update, fn)
	b.mu.Unlock()
}

// OnError subscribes fn to failures reported by the page script.
func (b *Bridge) OnError(fn func(kind, message string)) {
	b.mu.Lock()
	b.errs = append(b.errs, fn)
	b.mu.Unlock()
}

// AttachPage registers a page-side listener for PushUpdate. The returned
// function detaches it.
func (b *Bridge) AttachPage(fn func(figure string)) (detach func()) {
	b.mu.Lock()
	id := b.pageSeq
	b.pageSeq++
	b.pages[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.pages, id)
			b.mu.Unlock()
		})
	}
}

// NotifyReady is called by the page once the first render completed.
func (b *Bridge) NotifyReady(message string) {
	b.mu.Lock()
	subs := append([]func(string){}, b.ready...)
	b.mu.Unlock()

	b.log.Debug("Page ready", "message", message)
	if len(subs) == 0 {
		b.metrics.dropped.WithLabelValues(dropNoSubscriber).Inc()
		return
	}
	for _, fn := range subs {
		fn(message)
	}
}

// NotifyEvent is called by the page for every intercepted chart event. The
// event is delivered to the subscribers of its type, if it has one, and to
// every OnEvent subscriber.
func (b *Bridge) NotifyEvent(eventType, payload string) {
	e := EventType(eventType)
	payload = Redact(payload)

	b.mu.Lock()
	var typed []func(string)
	i, known := e.index()
	if known {
		typed = append(typed, b.perType[i]...)
	}
	all := append([]func(Envelope){}, b.all...)
	b.mu.Unlock()

	if known {
		b.metrics.events.WithLabelValues(eventType).Inc()
	} else {
		b.metrics.events.WithLabelValues("unknown").Inc()
		b.log.Debug("Unknown chart event", "event_type", eventType)
	}
	if len(typed) == 0 && len(all) == 0 {
		b.metrics.dropped.WithLabelValues(dropNoSubscriber).Inc()
		return
	}

	for _, fn := range typed {
		fn(payload)
	}
	env := Envelope{Type: e, Payload: payload}
	for _, fn := range all {
		fn(env)
	}
}

// NotifyError is called by the page when its handshake or runtime fetch fails.
func (b *Bridge) NotifyError(kind, message string) {
	b.mu.Lock()
	subs := append([]func(string, string){}, b.errs...)
	b.mu.Unlock()

	b.log.Warn("Page reported an error", "kind", kind, "message", message)
	for _, fn := range subs {
		fn(kind, message)
	}
}

// FetchRuntimeSource returns the charting runtime for pages that load it
// through the bridge instead of a script tag.
func (b *Bridge) FetchRuntimeSource() (string, error) {
	if b.runtime == nil {
		return "", errors.New("plotview: no runtime source configured")
	}
	ctx := context.Background()
	if b.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.fetchTimeout)
		defer cancel()
	}
	src, err := b.runtime.Source(ctx)
	if err != nil {
		b.log.Error("Failed to load runtime source", "err", err)
		return "", err
	}
	return src, nil
}

// PushUpdate sends a serialized figure to every attached page listener.
func (b *Bridge) PushUpdate(figure string) {
	b.mu.Lock()
	pages := make([]func(string), 0, len(b.pages))
	for _, fn := range b.pages {
		pages = append(pages, fn)
	}
	subs := append([]func(string){}, b.update...)
	b.mu.Unlock()

	if len(pages) == 0 {
		b.metrics.dropped.WithLabelValues(dropNoPage).Inc()
		b.log.Debug("Dropping update, no page attached")
	} else {
		b.metrics.updates.Inc()
	}
	for _, fn := range pages {
		fn(figure)
	}
	for _, fn := range subs {
		fn(figure)
	}
}

// Describe implements prometheus.Collector.
func (b *Bridge) Describe(ch chan<- *prometheus.Desc) {
	b.metrics.describe(ch)
}

// Collect implements prometheus.Collector.
func (b *Bridge) Collect(ch chan<- prometheus.Metric) {
	b.metrics.collect(ch)
}
