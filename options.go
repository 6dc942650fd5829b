package plotview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abemedia/plotview/plotlyjs"
)

// Surface is the embeddable web-rendering surface a Widget draws into.
// webview.WebView and *browser.View both implement it.
type Surface interface {
	SetHtml(html string)
	Navigate(url string)
	Eval(js string)
	Bind(name string, f any) error
	Unbind(name string) error
}

// RuntimeSource supplies the Plotly.js runtime source code.
type RuntimeSource interface {
	Source(ctx context.Context) (string, error)
}

// RuntimeFunc adapts a function to RuntimeSource.
type RuntimeFunc func(ctx context.Context) (string, error)

// Source implements RuntimeSource.
func (f RuntimeFunc) Source(ctx context.Context) (string, error) { return f(ctx) }

// Delivery selects how the page obtains the charting runtime.
type Delivery string

const (
	// DeliveryInline embeds the runtime in the generated document.
	DeliveryInline Delivery = "inline"
	// DeliveryFetch has the page fetch the runtime through the bridge.
	DeliveryFetch Delivery = "fetch"
	// DeliveryCDN loads the runtime from Options.CDNURL.
	DeliveryCDN Delivery = "cdn"
	// DeliveryServer serves document, figure and runtime from a local HTTP
	// server and navigates the surface to it.
	DeliveryServer Delivery = "server"
)

// ParseDelivery parses a delivery mode name.
func ParseDelivery(s string) (Delivery, error) {
	switch d := Delivery(s); d {
	case DeliveryInline, DeliveryFetch, DeliveryCDN, DeliveryServer:
		return d, nil
	}
	return "", fmt.Errorf("invalid delivery %q: must be one of inline, fetch, cdn, server", s)
}

// Routing selects how page script invokes the bridge for chart events.
type Routing string

const (
	// RoutingSingle binds one notifyEvent(type, payload) entry point.
	RoutingSingle Routing = "single"
	// RoutingPerType binds one plotly_<type>(payload) entry point per event.
	RoutingPerType Routing = "per-type"
)

// ParseRouting parses an event routing name.
func ParseRouting(s string) (Routing, error) {
	switch r := Routing(s); r {
	case RoutingSingle, RoutingPerType:
		return r, nil
	}
	return "", fmt.Errorf("invalid routing %q: must be one of single, per-type", s)
}

const defaultHandshakeTimeout = 10 * time.Second

// Options configures a Widget. The zero value is usable.
type Options struct {
	// Delivery defaults to DeliveryFetch.
	Delivery Delivery
	// Routing defaults to RoutingSingle.
	Routing Routing
	// Runtime defaults to plotlyjs.Default.
	Runtime RuntimeSource
	// CDNURL is the runtime URL for DeliveryCDN, defaulting to the pinned
	// Plotly.js release.
	CDNURL string
	// HandshakeTimeout bounds the page-side channel handshake and runtime
	// fetch, and WaitReady. Defaults to 10s.
	HandshakeTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Registerer, if set, gets the widget's bridge metrics registered.
	Registerer prometheus.Registerer
}

func (o *Options) setDefaults() error {
	if o.Delivery == "" {
		o.Delivery = DeliveryFetch
	} else if _, err := ParseDelivery(string(o.Delivery)); err != nil {
		return err
	}
	if o.Routing == "" {
		o.Routing = RoutingSingle
	} else if _, err := ParseRouting(string(o.Routing)); err != nil {
		return err
	}
	if o.Runtime == nil {
		o.Runtime = plotlyjs.Default
	}
	if o.CDNURL == "" {
		o.CDNURL = plotlyjs.CDNURL(plotlyjs.Version)
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return nil
}
