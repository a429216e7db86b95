package parser

import "strings"

// Normalize trims text and collapses every run of whitespace, newlines
// included, into a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
