package stats

import (
	"fmt"
	"time"
)

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatBitrate formats bits per second with kbps/Mbps suffixes.
func FormatBitrate(bps float64) string {
	switch {
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", bps/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.0f kbps", bps/1_000)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMillis formats a latency in milliseconds. Nil renders as "N/A".
func FormatMillis(ms *float64) string {
	if ms == nil {
		return "N/A"
	}
	if *ms < 1 && *ms > 0 {
		return fmt.Sprintf("%.0f µs", *ms*1000)
	}
	return fmt.Sprintf("%.2f ms", *ms)
}

// FormatOptional formats an optional float with the given precision.
func FormatOptional(v *float64, precision int) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.*f", precision, *v)
}

// FormatPercent formats a [0,1] ratio as a percentage.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
