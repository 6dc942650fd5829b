package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.design/x/mainthread"

	"github.com/abemedia/plotview/webview"
)

func newShowCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [figure.json|workbook.xlsx]",
		Short: "Show the figure in a native window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, logger, f, args)
			if err != nil {
				return err
			}
			if err := webview.Load(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			// The window must be owned by the main OS thread.
			var runErr error
			mainthread.Init(func() {
				mainthread.Call(func() { runErr = a.show(ctx) })
			})
			return runErr
		},
	}
}

func (a *app) show(ctx context.Context) error {
	wv := webview.New(a.cfg.Debug)
	if wv == nil {
		return errors.New("webview: failed to create window")
	}
	defer wv.Destroy()
	wv.SetTitle(a.cfg.Title)
	wv.SetSize(a.cfg.Width, a.cfg.Height, webview.HintNone)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := a.start(ctx, wv, nil)
	if err != nil {
		return err
	}
	stop := terminateOnDone(ctx, wv, wv.Terminate)

	wv.Run()

	// The handle is destroyed on return; nothing may dispatch to it after.
	stop()
	cancel()
	a.wait()
	return w.Close()
}
