package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/config"
	"github.com/bamsammich/shelfscan/internal/keysource"
	"github.com/bamsammich/shelfscan/internal/scan"
	"github.com/bamsammich/shelfscan/internal/ui"
)

func newReplayCmd(o *options) *cobra.Command {
	var resolve, realtime bool
	cmd := &cobra.Command{
		Use:   "replay JOURNAL",
		Short: "Feed a recorded key journal through the scan capture",
		Long: `Feed a key journal (recorded with --record, or written by hand) through the
scan capture using its recorded timing, and print every completed scan.

Journal lines are "<offset> <key>", e.g. "12ms 7" or "40ms Enter". Use "-"
to read the journal from stdin. With --dispatch, completed scans are looked
up or added exactly as a live session would.

By default the journal is fed at once, each key stamped with its recorded
time. With --realtime the keys are played back at recorded speed through
the same loop and timer a live session uses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readJournal(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			feed := func(c *scan.Capture) error {
				if realtime {
					return playJournal(ctx, c, entries, nil)
				}
				feedJournal(c, entries)
				return nil
			}
			if !resolve {
				return replayCodes(cmd.OutOrStdout(), o, feed)
			}
			return replayDispatch(ctx, cmd, o, len(entries), feed)
		},
	}
	cmd.Flags().BoolVar(&resolve, "dispatch", false, "resolve completed scans against the backend")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "play keys back at recorded speed")
	return cmd
}

func readJournal(path string, stdin io.Reader) ([]keysource.Entry, error) {
	if path == "-" {
		return keysource.ParseJournal(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	entries, err := keysource.ParseJournal(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// feedJournal drives c through the journal, then lets the last deadline
// pass so that a trailing partial scan is discarded.
func feedJournal(c *scan.Capture, entries []keysource.Entry) {
	events := keysource.Events(entries, time.Now())
	for _, ev := range events {
		c.OnKeyEvent(ev)
	}
	if n := len(events); n > 0 {
		c.Expire(events[n-1].Time.Add(c.Config().IdleTimeout))
	}
}

// playJournal plays entries through the journal source and a scan.Loop,
// as a live key source would be, then discards any trailing partial scan.
// The Capture must not be used elsewhere until playJournal returns.
func playJournal(ctx context.Context, c *scan.Capture, entries []keysource.Entry, clock clockwork.Clock) error {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	keys, srcDone := startSource(ctx, keysource.NewJournal(entries, clock), nil)
	loopErr := scan.NewLoop(c, clock).Run(ctx, keys)
	srcErr := <-srcDone
	c.Expire(clock.Now().Add(c.Config().IdleTimeout))
	return errors.Join(loopErr, srcErr)
}

// discardLogger reports the partial scans a replay throws away.
type discardLogger struct{}

func (discardLogger) KeySuppressed(scan.KeyEvent) {}

func (discardLogger) BufferExpired(partial string, _ time.Time) {
	slog.Info("partial scan expired", "partial", partial)
}

func (discardLogger) BufferReset(partial string) {
	slog.Info("partial scan reset", "partial", partial)
}

func replayCodes(w io.Writer, o *options, feed func(*scan.Capture) error) error {
	cfg, err := o.scanConfig()
	if err != nil {
		return err
	}
	c, err := scan.New(cfg, scan.NewBuffer(), func(code string) {
		fmt.Fprintln(w, code)
	}, scan.WithObserver(discardLogger{}))
	if err != nil {
		return err
	}
	return feed(c)
}

func replayDispatch(ctx context.Context, cmd *cobra.Command, o *options, backlog int, feed func(*scan.Capture) error) error {
	s, err := newSession(ctx, o, config.State{}, backlog)
	if err != nil {
		return err
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:     cmd.OutOrStdout(),
		ErrWriter:  cmd.ErrOrStderr(),
		Stats:      s.collector,
		Quiet:      o.quiet,
		NoProgress: true,
	})
	presented := make(chan error, 1)
	go func() { presented <- presenter.Run(s.teeEvents()) }()

	dispatched := make(chan error, 1)
	go func() { dispatched <- s.dispatcher.Run(context.WithoutCancel(ctx)) }()

	feedErr := feed(s.capture)
	finishErr := s.finish(dispatched)
	if err := <-presented; err != nil {
		return err
	}
	if err := errors.Join(feedErr, finishErr); err != nil {
		return err
	}
	if !o.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), presenter.Summary())
	}
	return s.exitCode()
}
