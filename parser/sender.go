package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var senderPunctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// CleanSenderName strips punctuation, collapses whitespace and title-cases each
// word. Applying it to an already clean name returns the name unchanged.
func CleanSenderName(name string) string {
	cleaned := senderPunctuation.ReplaceAllString(name, " ")
	words := strings.Fields(cleaned)

	// a Caser keeps state, so one per call
	caser := cases.Title(language.Und)
	for i, word := range words {
		words[i] = caser.String(word)
	}
	return strings.Join(words, " ")
}
