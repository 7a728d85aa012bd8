package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/config"
	"github.com/bamsammich/shelfscan/internal/library"
)

func newLibrariesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "libraries",
		Aliases: []string{"libs"},
		Short:   "List and manage libraries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listLibraries(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List libraries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listLibraries(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	var tags []string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.newClient()
			if err != nil {
				return err
			}
			msg, err := client.CreateLibrary(cmd.Context(), args[0], tags)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	create.Flags().StringSliceVarP(&tags, "tag", "t", nil, "library tag (repeatable)")

	del := &cobra.Command{
		Use:   "delete LIBRARY",
		Short: "Delete a library and all its books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.newClient()
			if err != nil {
				return err
			}
			lib, err := client.FindLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msg, err := client.DeleteLibrary(cmd.Context(), lib.ID)
			if err != nil {
				return err
			}
			// The next session must not resume into a deleted library.
			if st, err := config.ReadState(); err == nil && st.LibraryID == lib.ID {
				config.ClearState()
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.AddCommand(list, create, del)
	return cmd
}

func listLibraries(ctx context.Context, o *options, w io.Writer) error {
	client, err := o.newClient()
	if err != nil {
		return err
	}
	libs, err := client.Libraries(ctx)
	if err != nil {
		return err
	}
	if len(libs) == 0 {
		fmt.Fprintln(w, "no libraries")
		return nil
	}
	for _, l := range libs {
		writeLibrary(w, l)
	}
	return nil
}

func writeLibrary(w io.Writer, l library.Library) {
	line := fmt.Sprintf("%4d  %-24s  %5d books", l.ID, l.Name, l.BookCount)
	if len(l.Tags) > 0 {
		line += "  " + strings.Join(l.Tags, ", ")
	}
	fmt.Fprintln(w, line)
}
