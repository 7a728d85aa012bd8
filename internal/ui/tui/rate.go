package tui

import (
	"fmt"
	"strings"

	"github.com/bamsammich/shelfscan/internal/stats"
	"github.com/bamsammich/shelfscan/internal/ui"
)

// rateView renders the scan-rate panel shared by both views.
type rateView struct{}

func (r rateView) view(width int, snap stats.Snapshot, collector stats.ReadTicker) string {
	if width < 20 {
		width = 20
	}

	var b strings.Builder

	// Big scans-per-minute number.
	b.WriteString("  " + styleBigNumber.Render(ui.FormatPerMinute(collector.ScansPerMinute(1))))
	b.WriteString("  ")

	// Sparkline of the last minute.
	sparkWidth := max(min(width-24, 60), 10)
	spark := ui.Sparkline(collector.SparklineData(sparkWidth), sparkWidth)
	b.WriteString(styleSparkline.Render(spark))
	b.WriteByte('\n')

	statLine := fmt.Sprintf("  found %s   added %s   duplicate %s   not found %s   expired %s   suppressed %s",
		ui.FormatCount(snap.BooksFound),
		ui.FormatCount(snap.BooksAdded),
		ui.FormatCount(snap.BooksDuplicate),
		ui.FormatCount(snap.BooksNotFound),
		ui.FormatCount(snap.ScansExpired),
		ui.FormatCount(snap.KeysSuppressed),
	)
	b.WriteString(styleKeybindLabel.Render(statLine))
	b.WriteByte('\n')

	return b.String()
}
