package ui

import (
	"fmt"

	"github.com/bamsammich/shelfscan/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  scans 48  found 40  added 37  duplicate 3  not found 8  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.Failures() > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  scans %s  found %s",
		icon,
		FormatCount(snap.ScansCompleted),
		FormatCount(snap.BooksFound+snap.BooksAdded+snap.BooksDuplicate),
	)

	if snap.BooksAdded > 0 || snap.BooksDuplicate > 0 {
		base += fmt.Sprintf("  added %s  duplicate %s",
			FormatCount(snap.BooksAdded), FormatCount(snap.BooksDuplicate))
	}

	base += fmt.Sprintf("  not found %s  time %s  errors %d",
		FormatCount(snap.BooksNotFound),
		FormatDuration(snap.Elapsed),
		snap.DispatchFailed,
	)

	return base
}
