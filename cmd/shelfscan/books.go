package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bamsammich/shelfscan/internal/library"
	"github.com/bamsammich/shelfscan/internal/ui"
)

func newBooksCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List and edit the books of a library",
	}

	var (
		filter library.BookFilter
		read   bool
		unread bool
	)
	list := &cobra.Command{
		Use:   "list LIBRARY",
		Short: "List the books of a library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if read && unread {
				return fmt.Errorf("--read and --unread are mutually exclusive")
			}
			switch {
			case read:
				filter.Read = &read
			case unread:
				isRead := false
				filter.Read = &isRead
			}

			client, err := o.newClient()
			if err != nil {
				return err
			}
			lib, err := client.FindLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			books, err := client.LibraryBooks(cmd.Context(), lib.ID, filter)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(books) == 0 {
				fmt.Fprintf(w, "no books in %s\n", lib.Name)
				return nil
			}
			for _, b := range books {
				writeBook(w, b)
			}
			return nil
		},
	}
	list.Flags().StringVarP(&filter.Search, "search", "s", "", "only books whose title or author matches")
	list.Flags().StringVar(&filter.Genre, "genre", "", "only books of this genre")
	list.Flags().IntVar(&filter.Rating, "rating", 0, "only books with this star rating")
	list.Flags().BoolVar(&read, "read", false, "only books marked read")
	list.Flags().BoolVar(&unread, "unread", false, "only books not marked read")
	list.Flags().StringVar(&filter.Sort, "sort", "", "sort order (title, author, rating, added)")

	remove := &cobra.Command{
		Use:   "remove LIBRARY BOOK_ID",
		Short: "Remove a book from a library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := parseBookID(args[1])
			if err != nil {
				return err
			}
			client, err := o.newClient()
			if err != nil {
				return err
			}
			lib, err := client.FindLibrary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msg, err := client.RemoveBook(cmd.Context(), lib.ID, bookID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	tag := &cobra.Command{
		Use:   "tag BOOK_ID [TAG...]",
		Short: "Replace the tags of a book",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return bookUpdate(cmd, o, args[0], func(c *library.Client, id int) (string, error) {
				return c.UpdateTags(cmd.Context(), id, args[1:])
			})
		},
	}

	rate := &cobra.Command{
		Use:   "rate BOOK_ID STARS",
		Short: fmt.Sprintf("Rate a book from 0 to %d stars", library.MaxRating),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stars, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q", args[1])
			}
			return bookUpdate(cmd, o, args[0], func(c *library.Client, id int) (string, error) {
				return c.UpdateRating(cmd.Context(), id, stars)
			})
		},
	}

	var markUnread bool
	markRead := &cobra.Command{
		Use:   "read BOOK_ID",
		Short: "Mark a book as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return bookUpdate(cmd, o, args[0], func(c *library.Client, id int) (string, error) {
				return c.UpdateReadStatus(cmd.Context(), id, !markUnread)
			})
		},
	}
	markRead.Flags().BoolVar(&markUnread, "unread", false, "mark the book as not read")

	refresh := &cobra.Command{
		Use:   "refresh-image BOOK_ID",
		Short: "Refetch the cover image of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return bookUpdate(cmd, o, args[0], func(c *library.Client, id int) (string, error) {
				return c.RefreshImage(cmd.Context(), id)
			})
		},
	}

	cmd.AddCommand(list, remove, tag, rate, markRead, refresh)
	return cmd
}

func bookUpdate(
	cmd *cobra.Command,
	o *options,
	rawID string,
	fn func(c *library.Client, id int) (string, error),
) error {
	id, err := parseBookID(rawID)
	if err != nil {
		return err
	}
	client, err := o.newClient()
	if err != nil {
		return err
	}
	msg, err := fn(client, id)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	return nil
}

func parseBookID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid book ID %q", s)
	}
	return id, nil
}

func writeBook(w io.Writer, b library.Book) {
	stars := strings.Repeat("*", b.Rating)
	read := " "
	if b.IsRead {
		read = "r"
	}
	fmt.Fprintf(w, "%5d  %s %-5s  %-13s  %-40s  %s\n",
		b.ID, read, stars, b.ISBN, ui.Truncate(b.Title, 40), b.Byline())
}
