package service

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// sectionEnd marks where a labelled section stops: the next numbered item
// or the next "Word:" heading on a new line.
var sectionEnd = regexp.MustCompile(`\n\d+\.|\n[A-Z][a-z]+:`)

// extractSection returns the text following the first occurrence of label,
// up to the next section boundary or the end of text. A missing label
// yields "".
func extractSection(text, label string) string {
	if label == "" {
		return ""
	}
	idx := strings.Index(text, label)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeftFunc(text[idx+len(label):], func(r rune) bool {
		return r == ':' || isRegexSpace(r)
	})
	if loc := sectionEnd.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest)
}

func isRegexSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// extractSections pulls every label out of text in order.
func extractSections(text string, labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = extractSection(text, label)
	}
	return out
}

// confidence is the share of sections with more than 50 characters,
// as a whole percentage.
func confidence(sections []string) int {
	if len(sections) == 0 {
		return 0
	}
	complete := 0
	for _, s := range sections {
		if utf8.RuneCountInString(s) > 50 {
			complete++
		}
	}
	return int(math.Round(100 * float64(complete) / float64(len(sections))))
}
