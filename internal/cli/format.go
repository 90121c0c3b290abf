package cli

import (
	"fmt"
	"time"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatRemaining renders an ETA the way the progress display expects it.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		return "あと0秒"
	}
	totalSeconds := int(d.Seconds())
	switch {
	case totalSeconds >= 3600:
		return fmt.Sprintf("あと%d時間%d分", totalSeconds/3600, (totalSeconds%3600)/60)
	case totalSeconds >= 60:
		return fmt.Sprintf("あと%d分%d秒", totalSeconds/60, totalSeconds%60)
	default:
		return fmt.Sprintf("あと%d秒", totalSeconds)
	}
}
