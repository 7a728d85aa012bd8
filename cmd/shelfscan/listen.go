package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/config"
	"github.com/bamsammich/shelfscan/internal/dispatch"
	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/history"
	"github.com/bamsammich/shelfscan/internal/keysource"
	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/scan"
	"github.com/bamsammich/shelfscan/internal/stats"
	"github.com/bamsammich/shelfscan/internal/ui"
	"github.com/bamsammich/shelfscan/internal/ui/tui"
)

const eventBuffer = 256

// session is the scan pipeline shared by listen and replay:
// capture -> listener -> dispatcher -> events -> collector -> presenter.
type session struct {
	client     *library.Client
	dispatcher *dispatch.Dispatcher
	capture    *scan.Capture
	mode       *dispatch.ModeVar
	collector  *stats.Collector
	history    *history.DB // nil when recording is disabled
	events     chan event.Event
}

// newSession builds the pipeline. backlog sizes the dispatch queue for
// callers that feed scans faster than the backend resolves them.
func newSession(ctx context.Context, o *options, state config.State, backlog int) (*session, error) {
	scanCfg, err := o.scanConfig()
	if err != nil {
		return nil, err
	}
	mode, err := dispatch.ParseMode(o.mode)
	if err != nil {
		return nil, err
	}
	client, err := o.newClient()
	if err != nil {
		return nil, err
	}

	s := &session{
		client:    client,
		mode:      &dispatch.ModeVar{},
		collector: stats.NewCollector(),
		events:    make(chan event.Event, max(eventBuffer, 3*backlog)),
	}
	s.mode.Store(mode)
	if s.history, err = o.openHistory(); err != nil {
		slog.Warn("scan history disabled", "path", o.historyPath(), "error", err)
	}
	s.dispatcher = dispatch.New(dispatch.Config{
		Backend:   client,
		Events:    s.events,
		QueueSize: backlog,
		Logger:    slog.Default().With("component", "dispatch"),
	})

	ref := o.library
	if ref == "" && state.LibraryID != 0 {
		ref = strconv.Itoa(state.LibraryID)
	}
	if ref != "" {
		lib, err := client.FindLibrary(ctx, ref)
		if err != nil {
			slog.Warn("library not available", "library", ref, "error", err)
		} else {
			s.dispatcher.SetLibrary(lib)
		}
	}
	if _, ok := s.dispatcher.Library(); mode == dispatch.Add && !ok {
		slog.Warn("add mode without a library: scans fail until one is selected")
	}

	listener := dispatch.NewListener(s.dispatcher, s.events, s.mode.Load)
	s.capture, err = scan.New(scanCfg, scan.NewBuffer(), listener.Handle, scan.WithObserver(listener))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// teeEvents logs every event and feeds the collector before forwarding it
// to the presenter. The returned channel closes after in closes.
func (s *session) teeEvents() <-chan event.Event {
	out := make(chan event.Event, cap(s.events))
	go func() {
		defer close(out)
		for ev := range s.events {
			s.collector.Observe(ev)
			if s.history != nil {
				s.history.Observe(ev)
			}
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("code", ev.Code),
				slog.String("mode", ev.Mode),
			}
			if ev.Title != "" {
				attrs = append(attrs, slog.String("title", ev.Title))
			}
			if ev.Library != "" {
				attrs = append(attrs, slog.String("library", ev.Library))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelInfo, "shelfscan.event", attrs...)
			out <- ev
		}
	}()
	return out
}

// finish resolves the queued scans, then closes the event stream. Nothing
// may feed the capture once finish is called.
func (s *session) finish(dispatched <-chan error) error {
	s.capture.Reset()
	s.dispatcher.Close()
	err := <-dispatched
	close(s.events)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *session) saveState() {
	st := config.State{Mode: s.mode.Load().String()}
	if lib, ok := s.dispatcher.Library(); ok {
		st.LibraryID = lib.ID
		st.LibraryName = lib.Name
	}
	if err := config.WriteState(st); err != nil {
		slog.Warn("failed to save session state", "error", err)
	}
}

func (s *session) exitCode() error {
	if s.collector.Snapshot().DispatchFailed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

//nolint:revive // cyclomatic: wires the key source, presenter and dispatcher for both UI modes
func runListen(cmd *cobra.Command, o *options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state, err := config.ReadState()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read session state", "path", config.StatePath(), "error", err)
	}
	if !cmd.Flags().Changed("mode") && o.cfg.Defaults.Mode == nil && state.Mode != "" {
		o.mode = state.Mode
	}

	s, err := newSession(ctx, o, state, 0)
	if err != nil {
		return err
	}

	var rec *keysource.Recorder
	if o.record != "" {
		rf, err := os.Create(o.record)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		o.closers = append(o.closers, rf.Close)
		rec = keysource.NewRecorder(rf)
	}

	tty := ui.DetectTerminal()
	useTUI := o.tui && tty.CanTUI()
	if o.tui && !useTUI {
		slog.Warn("--tui requires a terminal, falling back to inline output")
	}

	var src keysource.Source
	switch {
	case o.device != "":
		src = keysource.NewDevice(o.device, o.grab)
	case !useTUI:
		src = keysource.NewTerminal(os.Stdin)
	case rec != nil:
		slog.Warn("--record needs --device when the TUI reads the keyboard")
		rec = nil
	}

	presenterEvents := s.teeEvents()

	dispatched := make(chan error, 1)
	go func() { dispatched <- s.dispatcher.Run(ctx) }()

	slog.Debug("listening",
		"mode", s.mode.Load(),
		"idle_timeout", o.idleTimeout,
		"terminator", o.terminator,
		"backend", s.client.BaseURL(),
		"device", o.device,
	)

	var sourceErr error
	if useTUI {
		srcCtx, srcCancel := context.WithCancel(ctx)
		defer srcCancel()

		var keys <-chan scan.KeyEvent
		var srcDone <-chan error
		if src != nil {
			keys, srcDone = startSource(srcCtx, src, rec)
		}

		presenter := tui.NewPresenter(tui.Config{
			Stats:      s.collector,
			Capture:    s.capture,
			Dispatcher: s.dispatcher,
			Libraries:  s.client,
			Mode:       s.mode,
			Keys:       keys,
		}, o.cfg.Theme)

		// TUI runs in foreground until the user quits.
		if err := presenter.Run(presenterEvents); err != nil {
			slog.Error("tui failed", "error", err)
		}
		// Nothing reads the events once the TUI has exited.
		go func() {
			for range presenterEvents {
			}
		}()

		srcCancel()
		if srcDone != nil {
			sourceErr = <-srcDone
		}
		if err := s.finish(dispatched); err != nil {
			slog.Warn("dispatcher stopped", "error", err)
		}
		if !o.quiet {
			fmt.Fprintln(o.stderr, presenter.Summary())
		}
	} else {
		if o.device == "" && tty.Stdin {
			// The terminal key source puts stdin in raw mode.
			o.stdout.SetRaw(true)
			o.stderr.SetRaw(true)
		}
		presenter := ui.NewPresenter(ui.Config{
			Writer:     o.stdout,
			ErrWriter:  o.stderr,
			Stats:      s.collector,
			IsTTY:      tty.Stderr,
			Quiet:      o.quiet,
			Verbose:    o.verbose,
			NoProgress: o.noProgress,
		})

		var presenterErr error
		var presenterWg sync.WaitGroup
		presenterWg.Add(1)
		go func() {
			defer presenterWg.Done()
			presenterErr = presenter.Run(presenterEvents)
		}()

		keys, srcDone := startSource(ctx, src, rec)
		loopErr := scan.NewLoop(s.capture, nil).Run(ctx, keys)
		sourceErr = <-srcDone
		o.stdout.SetRaw(false)
		o.stderr.SetRaw(false)
		if errors.Is(loopErr, context.Canceled) {
			loopErr = nil
		}

		finishErr := s.finish(dispatched)
		presenterWg.Wait()
		if presenterErr != nil {
			slog.Error("presenter failed", "error", presenterErr)
		}
		if err := errors.Join(loopErr, finishErr); err != nil {
			slog.Error("scan session failed", "error", err)
		}
		if !o.quiet {
			fmt.Fprintln(o.stderr, presenter.Summary())
		}
	}

	s.saveState()

	if sourceErr != nil && !errors.Is(sourceErr, keysource.ErrInterrupted) &&
		!errors.Is(sourceErr, context.Canceled) {
		return fmt.Errorf("key source: %w", sourceErr)
	}
	return s.exitCode()
}

// startSource runs src in the background, optionally recording every key.
// The key channel closes when the source stops; its error is then sent on
// the returned error channel.
func startSource(
	ctx context.Context,
	src keysource.Source,
	rec *keysource.Recorder,
) (<-chan scan.KeyEvent, <-chan error) {
	keys := make(chan scan.KeyEvent, 64)
	done := make(chan error, 1)

	go func() {
		defer close(keys)
		if rec == nil {
			done <- src.Run(ctx, keys)
			return
		}

		srcCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		raw := make(chan scan.KeyEvent, 64)
		teeDone := make(chan error, 1)
		go func() {
			err := keysource.Tee(srcCtx, raw, keys, rec)
			if err != nil {
				cancel()
			}
			teeDone <- err
		}()
		err := src.Run(srcCtx, raw)
		close(raw)
		teeErr := <-teeDone
		if errors.Is(teeErr, context.Canceled) {
			teeErr = nil
		}
		done <- errors.Join(err, teeErr)
	}()

	return keys, done
}
