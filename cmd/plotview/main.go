// Command plotview shows a Plotly figure in a native window or a browser tab
// and keeps it up to date while the source file changes.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/common/promslog"
	"github.com/spf13/cobra"

	"github.com/abemedia/plotview/internal/config"
)

type flags struct {
	config   string
	logLevel string
	delivery string
	routing  string
	sheet    string
	watch    bool
	debug    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "plotview",
		Short: "Show interactive Plotly charts",
		Long: `plotview renders a Plotly figure read from a JSON file or an Excel
workbook, forwards chart events to its log and pushes updates into the
chart when the file changes.`,
		SilenceUsage: true,
	}

	f.register(root)
	root.AddCommand(newShowCmd(f), newBrowseCmd(f), newRuntimeCmd(f))
	return root
}

// register adds the flags shared by every subcommand to cmd.
func (f *flags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "Path to a TOML configuration file")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&f.delivery, "delivery", "", "Runtime delivery: inline, fetch, cdn, server")
	pf.StringVar(&f.routing, "routing", "", "Event routing: single, per-type")
	pf.StringVar(&f.sheet, "sheet", "", "Worksheet to plot when the input is a workbook (default: first sheet)")
	pf.BoolVarP(&f.watch, "watch", "w", false, "Reload the figure when the input file changes")
	pf.BoolVar(&f.debug, "debug", false, "Enable developer tools")
}

// resolve loads the configuration and applies command line overrides.
func (f *flags) resolve(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return config.Config{}, nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("delivery") {
		cfg.Delivery = f.delivery
	}
	if changed("routing") {
		cfg.Routing = f.routing
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	logger, err := configureLogging(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// configureLogging sets up the slog logger with the specified log level
func configureLogging(levelStr string) (*slog.Logger, error) {
	level := promslog.NewLevel()
	if err := level.Set(levelStr); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	format := promslog.NewFormat()
	if err := format.Set("logfmt"); err != nil {
		return nil, err
	}

	logger := promslog.New(&promslog.Config{
		Level:  level,
		Format: format,
		Style:  promslog.GoKitStyle,
	})
	slog.SetDefault(logger)
	return logger, nil
}
