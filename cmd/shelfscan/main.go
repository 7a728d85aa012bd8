package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/shelfscan/internal/config"
	"github.com/bamsammich/shelfscan/internal/history"
	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/scan"
	"github.com/bamsammich/shelfscan/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds every flag value. Scanner and backend flags are persistent
// so that subcommands such as replay and search share them.
type options struct {
	// global
	backendURL string
	rate       float64
	timeout    time.Duration
	verbose    bool
	quiet      bool
	logFile    string
	history    string
	noHistory  bool

	// scanner
	idleTimeout time.Duration
	terminator  string
	suppress    bool
	mode        string
	library     string

	// listen
	device      string
	grab        bool
	tui         bool
	record      string
	noProgress  bool
	showVersion bool

	cfg      config.Config
	logLevel slog.LevelVar
	closers  []func() error

	// stdout and stderr translate newlines while the terminal is raw.
	stdout *ui.LineWriter
	stderr *ui.LineWriter
}

func (o *options) close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]() //nolint:errcheck // best-effort close on exit
	}
	o.closers = nil
}

func run(args []string) int {
	o := &options{}
	defer o.close()

	rootCmd := newRootCmd(o)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shelfscan [flags]",
		Short: "Catalogue books with a barcode scanner",
		Long: `shelfscan listens for a keyboard-wedge barcode scanner and looks every
scanned code up in your book library, or adds it to a library.

Scanner input is told apart from typing by timing: keys that follow each
other within the idle timeout and end with the terminator key form a scan.
Slower keys are discarded.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "path", config.Path(), "error", err)
			}
			o.cfg = cfg
			applyConfigDefaults(cmd.Flags(), cfg, o)
			o.stdout = ui.NewLineWriter(cmd.OutOrStdout())
			o.stderr = ui.NewLineWriter(cmd.ErrOrStderr())
			return o.setupLogging()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "shelfscan %s\n", version)
				return nil
			}
			return runListen(cmd, o)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.backendURL, "backend", library.DefaultBaseURL, "library backend URL")
	pf.Float64Var(&o.rate, "rate", 0, "max backend requests per second (0 = unlimited)")
	pf.DurationVar(&o.timeout, "timeout", library.DefaultTimeout, "backend request timeout")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&o.quiet, "quiet", "q", false, "suppress all output except errors")
	pf.StringVar(&o.logFile, "log", "", "write structured JSON log to FILE")
	pf.StringVar(&o.history, "history", "", "scan history database (default: per backend under $XDG_STATE_HOME/shelfscan)")
	pf.BoolVar(&o.noHistory, "no-history", false, "do not record resolved scans")
	pf.DurationVar(&o.idleTimeout, "idle-timeout", scan.DefaultIdleTimeout,
		"max gap between scanner keystrokes (e.g. 100ms, 500ms)")
	pf.StringVar(&o.terminator, "terminator", scan.DefaultTerminator, "key that ends a scan: Enter or Tab (any case)")
	pf.BoolVar(&o.suppress, "suppress-when-focused", true, "ignore keys typed into a text field")
	pf.StringVarP(&o.mode, "mode", "m", "lookup", "what to do with a scan: lookup or add")
	pf.StringVarP(&o.library, "library", "l", "", "library (name or ID) that add mode stores into")

	f := rootCmd.Flags()
	f.BoolVar(&o.showVersion, "version", false, "print version and exit")
	f.StringVar(&o.device, "device", "", "read the scanner from an input device (/dev/input/eventN, Linux)")
	f.BoolVar(&o.grab, "grab", false, "take exclusive access to --device")
	f.BoolVar(&o.tui, "tui", false, "full-screen TUI (Bubble Tea)")
	f.StringVar(&o.record, "record", "", "record keys to a journal FILE for replay")
	f.BoolVar(&o.noProgress, "no-progress", false, "disable progress display")

	rootCmd.AddCommand(
		newLibrariesCmd(o),
		newBooksCmd(o),
		newSearchCmd(o),
		newExportCmd(o),
		newReplayCmd(o),
		newHistoryCmd(o),
		newDocsCmd(),
	)
	return rootCmd
}

// applyConfigDefaults applies config file values for flags not explicitly
// set on the CLI.
func applyConfigDefaults(flags *pflag.FlagSet, cfg config.Config, o *options) {
	unset := func(name string) bool {
		return !flags.Changed(name)
	}

	if unset("idle-timeout") && cfg.Scanner.IdleTimeout != nil {
		o.idleTimeout = cfg.Scanner.IdleTimeout.Std()
	}
	if unset("terminator") && cfg.Scanner.Terminator != nil {
		o.terminator = *cfg.Scanner.Terminator
	}
	if unset("suppress-when-focused") && cfg.Scanner.SuppressWhenFocused != nil {
		o.suppress = *cfg.Scanner.SuppressWhenFocused
	}
	if unset("device") && cfg.Scanner.Device != nil {
		o.device = *cfg.Scanner.Device
	}
	if unset("grab") && cfg.Scanner.Grab != nil {
		o.grab = *cfg.Scanner.Grab
	}
	if unset("backend") && cfg.Backend.URL != nil {
		o.backendURL = *cfg.Backend.URL
	}
	if unset("rate") && cfg.Backend.Rate != nil {
		o.rate = *cfg.Backend.Rate
	}
	if unset("timeout") && cfg.Backend.Timeout != nil {
		o.timeout = cfg.Backend.Timeout.Std()
	}
	if unset("library") && cfg.Defaults.Library != nil {
		o.library = *cfg.Defaults.Library
	}
	if unset("mode") && cfg.Defaults.Mode != nil {
		o.mode = *cfg.Defaults.Mode
	}
	if unset("history") && cfg.Defaults.History != nil {
		o.history = *cfg.Defaults.History
	}
	if unset("tui") && cfg.Defaults.TUI != nil {
		o.tui = *cfg.Defaults.TUI
	}
}

// setupLogging installs the default logger: text on stderr, plus a JSON
// file at debug level when --log is set.
func (o *options) setupLogging() error {
	o.logLevel.Set(ui.LogLevel(o.verbose, o.quiet))
	var file io.Writer
	if o.logFile != "" {
		lf, err := os.Create(o.logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.closers = append(o.closers, lf.Close)
		file = lf
	}
	slog.SetDefault(ui.NewLogger(o.stderr, &o.logLevel, file))
	return nil
}

func (o *options) scanConfig() (scan.Config, error) {
	terminator, err := scan.ParseTerminator(o.terminator)
	if err != nil {
		return scan.Config{}, err
	}
	cfg := scan.Config{
		IdleTimeout:         o.idleTimeout,
		Terminator:          terminator,
		SuppressWhenFocused: o.suppress,
	}
	if err := cfg.Validate(); err != nil {
		return scan.Config{}, err
	}
	return cfg, nil
}

func (o *options) newClient() (*library.Client, error) {
	return library.New(library.Options{
		BaseURL:           o.backendURL,
		Timeout:           o.timeout,
		RequestsPerSecond: o.rate,
	})
}

func (o *options) historyPath() string {
	if o.history != "" {
		return o.history
	}
	return history.DefaultPath(o.backendURL)
}

// openHistory opens the scan history for recording. It returns nil when
// recording is disabled; the database is closed on exit.
func (o *options) openHistory() (*history.DB, error) {
	if o.noHistory {
		return nil, nil
	}
	h, err := history.Open(o.historyPath())
	if err != nil {
		return nil, err
	}
	o.closers = append(o.closers, h.Close)
	return h, nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
