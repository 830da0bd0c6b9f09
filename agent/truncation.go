package agent

import (
	"fmt"
	"unicode/utf8"
)

// TruncateOutput shortens output to roughly maxChars by keeping its head and
// tail and noting how much was removed from the middle. Cuts fall on rune
// boundaries. A non-positive maxChars disables truncation.
func TruncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	headEnd := half
	for headEnd > 0 && !utf8.RuneStart(output[headEnd]) {
		headEnd--
	}
	tailStart := len(output) - half
	for tailStart < len(output) && !utf8.RuneStart(output[tailStart]) {
		tailStart++
	}
	removed := tailStart - headEnd
	return output[:headEnd] +
		fmt.Sprintf("\n\n[WARNING: Action output was truncated. %d characters were removed from the middle. "+
			"If you need specific parts, call the action again with more targeted arguments.]\n\n", removed) +
		output[tailStart:]
}
