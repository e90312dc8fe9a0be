package extract

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Email returns the first address in text, lowercased.
func Email(text string) (string, bool) {
	m := emailPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(strings.Trim(m, ".")), true
}

// MergeEmail keeps the first address a session saw.
func MergeEmail(held, found string) (string, bool) {
	if held != "" || found == "" {
		return held, false
	}
	return found, true
}
