package model

import "fmt"

// FormatDuration renders a millisecond duration for display.
// Sub-second values render as milliseconds, everything below a minute
// as seconds with two decimals, longer values as minutes and seconds.
func FormatDuration(ms int64) string {
	switch {
	case ms < 0:
		return "0ms"
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	default:
		mins := ms / 60_000
		secs := float64(ms%60_000) / 1000

		return fmt.Sprintf("%dm%.0fs", mins, secs)
	}
}
