// Package utils holds small formatting helpers shared by the manager and
// the concrete clients: hashrate/duration display for logging, and hex
// nonce formatting for the wire clients. Kept from the teacher's
// pkg/utils almost verbatim — generic formatting has no domain
// dependency to replace.
package utils

import (
	"fmt"
	"strconv"
	"time"
)

// FormatHashrate formats a hashrate value into a human-readable string.
func FormatHashrate(hashrate float64) string {
	switch {
	case hashrate < 1000:
		return fmt.Sprintf("%.2f H/s", hashrate)
	case hashrate < 1000000:
		return fmt.Sprintf("%.2f KH/s", hashrate/1000)
	case hashrate < 1000000000:
		return fmt.Sprintf("%.2f MH/s", hashrate/1000000)
	default:
		return fmt.Sprintf("%.2f GH/s", hashrate/1000000000)
	}
}

// FormatDuration formats a duration into a human-readable string.
func FormatDuration(d time.Duration) string {
	switch {
	case d.Hours() >= 24:
		days := int(d.Hours() / 24)
		hours := int(d.Hours()) % 24
		return fmt.Sprintf("%dd %dh", days, hours)
	case d.Hours() >= 1:
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case d.Minutes() >= 1:
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

// FormatHexUint64 formats uint64 to a "0x"-prefixed hex string.
func FormatHexUint64(val uint64) string {
	return "0x" + strconv.FormatUint(val, 16)
}

// TruncateString truncates a string to the specified length with an
// ellipsis, used when logging long URIs/headers.
func TruncateString(str string, length int) string {
	if len(str) <= length {
		return str
	}
	if length <= 3 {
		return str[:length]
	}
	return str[:length-3] + "..."
}
