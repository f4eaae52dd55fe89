package reservation

import (
	"fmt"
	"time"
)

// FormatRemaining renders d as M:SS (minutes unpadded, seconds zero-padded). Fractions of a
// second are dropped and negative durations render as 0:00.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// Urgent reports whether the remaining time is strictly below the threshold.
func Urgent(remaining, threshold time.Duration) bool {
	return remaining < threshold
}
