package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/dispatch"
	"github.com/bamsammich/shelfscan/internal/ui"
)

func newSearchCmd(o *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search the catalogue by ISBN, title or author",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if len(args) == 1 {
				query = dispatch.NormalizeCode(query)
			}
			client, err := o.newClient()
			if err != nil {
				return err
			}
			books, err := client.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(books) == 0 {
				fmt.Fprintf(w, "no results for %q\n", query)
				return nil
			}
			if limit > 0 && len(books) > limit {
				books = books[:limit]
			}
			for _, b := range books {
				fmt.Fprintf(w, "%-13s  %-48s  %s\n", b.ISBN, ui.Truncate(b.Title, 48), b.Byline())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show at most N results (0 = all)")
	return cmd
}

func newExportCmd(o *options) *cobra.Command {
	var (
		output   string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every library as CSV",
		Long: `Export every library as CSV, to stdout or to --output.

With --zstd, or when --output ends in .zst, the CSV is zstd-compressed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			client, err := o.newClient()
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, createErr := os.Create(output) //nolint:gosec // user-chosen output path
				if createErr != nil {
					return fmt.Errorf("create %s: %w", output, createErr)
				}
				defer func() {
					err = errors.Join(err, f.Close())
				}()
				w = f
				if strings.HasSuffix(output, ".zst") {
					compress = true
				}
			}

			if compress {
				enc, encErr := zstd.NewWriter(w)
				if encErr != nil {
					return fmt.Errorf("zstd: %w", encErr)
				}
				defer func() {
					err = errors.Join(err, enc.Close())
				}()
				w = enc
			}

			n, err := client.Export(cmd.Context(), w)
			if err != nil {
				return err
			}
			slog.Info("export complete", "bytes", n, "output", output, "zstd", compress)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to FILE instead of stdout")
	cmd.Flags().BoolVar(&compress, "zstd", false, "compress the export with zstd")
	return cmd
}
