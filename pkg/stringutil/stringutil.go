// Package stringutil provides utility functions for string manipulation.
package stringutil

import "strings"

// Ellipsis shortens a string to a maximum length, adding "..." if truncated.
// Leading and trailing spaces are removed and newlines are flattened so the
// result fits on a single log line. A maxLength of 3 or less returns the bare
// truncation without an ellipsis.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
