// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// CollapseWhitespace trims s and replaces every run of whitespace with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
