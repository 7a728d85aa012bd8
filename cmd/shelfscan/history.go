package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/history"
	"github.com/bamsammich/shelfscan/internal/ui"
)

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit   int
		outcome string
		code    string
		since   time.Duration
		counts  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently resolved scans",
		Long: `Show the scans resolved by earlier sessions, newest first.

Every lookup or add outcome is recorded in a SQLite database kept per
backend under $XDG_STATE_HOME/shelfscan, unless --no-history is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := history.Query{Limit: limit, Code: code}
			if outcome != "" {
				typ, ok := event.ParseType(outcome)
				if !ok || !typ.Terminal() {
					return fmt.Errorf("unknown outcome %q (use %s)", outcome, strings.Join(outcomeNames(), ", "))
				}
				q.Outcome = typ.String()
			}
			if since > 0 {
				q.Since = time.Now().Add(-since)
			}

			h, err := history.Open(o.historyPath())
			if err != nil {
				return err
			}
			defer h.Close()

			w := cmd.OutOrStdout()
			if counts {
				c, err := h.Counts()
				if err != nil {
					return err
				}
				names := make([]string, 0, len(c))
				for name := range c {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(w, "%-20s %s\n", name, ui.FormatCount(c[name]))
				}
				return nil
			}

			recs, err := h.Recent(q)
			if err != nil {
				return err
			}
			for _, r := range recs {
				ev := r.Event()
				fmt.Fprintf(w, "%s  %-6s  %-9s  %-13s  %s\n",
					r.Time.Local().Format(time.DateTime), r.Mode, ui.Outcome(ev), r.Code, ui.Detail(ev))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most N scans (0 = all)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only scans with this outcome (e.g. BookNotFound)")
	cmd.Flags().StringVar(&code, "code", "", "only scans of this code")
	cmd.Flags().DurationVar(&since, "since", 0, "only scans newer than this (e.g. 24h)")
	cmd.Flags().BoolVar(&counts, "counts", false, "print the number of scans per outcome")
	return cmd
}

func outcomeNames() []string {
	var names []string
	for t := event.KeySuppressed; t <= event.DispatchFailed; t++ {
		if t.Terminal() {
			names = append(names, t.String())
		}
	}
	return names
}
