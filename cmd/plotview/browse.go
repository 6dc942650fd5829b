package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/abemedia/plotview"
	"github.com/abemedia/plotview/browser"
)

func newBrowseCmd(f *flags) *cobra.Command {
	var listen, metricsListen string
	cmd := &cobra.Command{
		Use:   "browse [figure.json|workbook.xlsx]",
		Short: "Serve the figure to a browser tab",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Browser.Listen = listen
			}
			if cmd.Flags().Changed("metrics-listen") {
				cfg.Metrics.Listen = metricsListen
			}
			a, err := newApp(cfg, logger, f, args)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.browse(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address for the browser page (default from config: 127.0.0.1:8765)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Listen address for Prometheus metrics (disabled when empty)")
	return cmd
}

func (a *app) browse(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := browser.New(a.log)
	serveErr := make(chan error, 2)
	go func() {
		serveErr <- v.ListenAndServe(ctx, a.cfg.Browser.Listen)
		v.Terminate()
	}()
	if a.cfg.Metrics.Listen != "" {
		go func() {
			serveErr <- serveMetrics(ctx, a.cfg.Metrics.Listen, reg)
			v.Terminate()
		}()
	}

	var w *plotview.Widget
	var startErr error
	v.Dispatch(func() {
		if w, startErr = a.start(ctx, v, reg); startErr != nil {
			v.Terminate()
		}
	})
	v.Run()
	cancel()
	a.wait()

	if w != nil {
		if err := w.Close(); err != nil {
			a.log.Warn("Failed to close widget", "err", err)
		}
	}
	if startErr != nil {
		return startErr
	}
	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
