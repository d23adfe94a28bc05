// SPDX-License-Identifier: MIT
package tui

import "fmt"

// FormatElapsed renders a recording timer as "mm:ss". Past one hour the
// fields become hours and minutes. While recording, the colon is blanked
// for the second half of every second.
func FormatElapsed(seconds float64, recording bool) string {
	if seconds < 0 {
		seconds = 0
	}
	frac := seconds - float64(int64(seconds))
	if seconds > 60*60 {
		seconds /= 60
	}

	a, b := int64(seconds)/60, int64(seconds)%60
	if recording && frac >= 0.5 {
		return fmt.Sprintf("%02d %02d", a, b)
	}
	return fmt.Sprintf("%02d:%02d", a, b)
}
