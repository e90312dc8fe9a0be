// Package extract pulls contact details (phone, email, personal name) out of free text.
// Every rule is a pure function; a miss is a normal outcome, never an error.
package extract

import (
	"regexp"
	"strings"
)

const (
	countryCode = "7"
	trunkPrefix = "8"
)

// phoneFamily is one group of phone patterns; families are tried in order and the
// first family with any match decides the candidate.
type phoneFamily struct {
	name    string
	pattern *regexp.Regexp
}

var phoneFamilies = []phoneFamily{
	{
		name:    "national",
		pattern: regexp.MustCompile(`(?:^|[^\d+])(8[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2})(?:\D|$)`),
	},
	{
		name:    "international",
		pattern: regexp.MustCompile(`(?:^|\D)((?:\+7|7)[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2})(?:\D|$)`),
	},
	{
		name:    "bare",
		pattern: regexp.MustCompile(`(?:^|\D)(\d{10,11})(?:\D|$)`),
	},
}

var nonDigits = regexp.MustCompile(`\D`)

// PhoneMatch is a phone candidate together with its byte offset in the text.
type PhoneMatch struct {
	Phone  string
	Raw    string
	Offset int
	Family string
}

// FindPhone returns the first acceptable phone of the first matching family.
func FindPhone(text string) (PhoneMatch, bool) {
	for _, fam := range phoneFamilies {
		loc := fam.pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		raw := text[loc[2]:loc[3]]
		phone, ok := NormalizePhone(raw)
		if !ok {
			// the family decided; an unusable match is discarded silently
			return PhoneMatch{}, false
		}
		return PhoneMatch{Phone: phone, Raw: raw, Offset: loc[2], Family: fam.name}, true
	}
	return PhoneMatch{}, false
}

// Phone returns the canonical phone found in text, if any.
func Phone(text string) (string, bool) {
	m, ok := FindPhone(text)
	return m.Phone, ok
}

// HasPhoneLike reports whether any phone family matches text, even if the digits
// would later be rejected.
func HasPhoneLike(text string) bool {
	for _, fam := range phoneFamilies {
		if fam.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// NormalizePhone strips non-digits and rewrites the number into the canonical
// country-code form. Only 10 or 11 digit results are accepted.
func NormalizePhone(raw string) (string, bool) {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 10:
		digits = countryCode + digits
	case len(digits) == 11 && strings.HasPrefix(digits, trunkPrefix):
		digits = countryCode + digits[1:]
	}
	if len(digits) < 10 || len(digits) > 11 {
		return "", false
	}
	return digits, true
}
