package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
)

// maxBareNameWords limits the capitalized-word fallback to short messages
// unless a phone is present or the dialog asked for a name.
const maxBareNameWords = 4

// nameMarkers are explicit "my name is X" rules, tried in order.
var nameMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)меня\s+зовут\s*[:\-–—]?\s*(\p{L}{2,})`),
	regexp.MustCompile(`(?i)мо[её]\s+имя\s*[:\-–—]?\s*(\p{L}{2,})`),
	regexp.MustCompile(`(?i)зовите\s+меня\s+(\p{L}{2,})`),
	regexp.MustCompile(`(?i)(?:^|[^\p{L}])имя\s*[:\-–—]?\s*(\p{L}{2,})`),
	regexp.MustCompile(`(?i)my\s+name\s+is\s+(\p{L}{2,})`),
	regexp.MustCompile(`(?i)i'?m\s+called\s+(\p{L}{2,})`),
	regexp.MustCompile(`(?i)call\s+me\s+(\p{L}{2,})`),
}

// NameHint carries context from the rest of the turn.
type NameHint struct {
	// PhoneOffset is the byte offset of a phone found in the same message, or -1.
	PhoneOffset int
	// ExpectingName is set when the dialog just asked the visitor for a name.
	ExpectingName bool
}

// NoPhone is a hint for messages without a phone number.
var NoPhone = NameHint{PhoneOffset: -1}

// minStemRunes is the length from which a rejected word also rejects
// every word it prefixes ("чистк" rejects "Чистку"). Shorter words such as
// "да" are matched exactly so they do not reject names like "Дарья".
const minStemRunes = 4

// NameMatch is an extracted name. Marked is set when an explicit marker
// ("меня зовут ...") or the external extractor produced it; a bare
// capitalized word is only a guess.
type NameMatch struct {
	Name   string
	Marked bool
}

// NameFinder applies marker rules, then a filtered capitalized-word scan.
type NameFinder struct {
	greetings map[string]bool
	exact     map[string]bool
	stems     []string
}

// NewNameFinder builds a finder from the catalog name rules. vocabulary holds
// further keyword stems (procedures, details, intent phrases) that are never
// names; multi-word entries contribute each word.
func NewNameFinder(rules catalog.NameRules, vocabulary ...string) *NameFinder {
	f := &NameFinder{
		greetings: make(map[string]bool, len(rules.Greetings)),
		exact:     make(map[string]bool),
	}
	for _, g := range rules.Greetings {
		f.greetings[strings.TrimSpace(g)] = true
		f.reject(g)
	}
	for _, list := range [][]string{rules.Stopwords, rules.Denylist, vocabulary} {
		for _, w := range list {
			f.reject(w)
		}
	}
	return f
}

func (f *NameFinder) reject(entry string) {
	for _, w := range strings.Fields(catalog.Fold(entry)) {
		if utf8.RuneCountInString(w) >= minStemRunes {
			f.stems = append(f.stems, w)
		} else {
			f.exact[w] = true
		}
	}
}

// Find returns the best name candidate in text.
func (f *NameFinder) Find(text string, hint NameHint) (NameMatch, bool) {
	if name, ok := f.FindMarked(text); ok {
		return NameMatch{Name: name, Marked: true}, true
	}
	if name, ok := f.findCapitalized(text, hint); ok {
		return NameMatch{Name: name}, true
	}
	return NameMatch{}, false
}

// FindMarked only applies the explicit marker rules.
func (f *NameFinder) FindMarked(text string) (string, bool) {
	for _, re := range nameMarkers {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if word := m[1]; f.acceptable(word) {
				return TitleCase(word), true
			}
		}
	}
	return "", false
}

// HasMarker reports whether text contains an explicit name marker.
func (f *NameFinder) HasMarker(text string) bool {
	_, ok := f.FindMarked(text)
	return ok
}

// IsPlaceholder reports whether a held name is a known-bad value (a greeting
// picked up by mistake) that a later extraction may replace.
func (f *NameFinder) IsPlaceholder(name string) bool {
	return f.greetings[catalog.Fold(name)]
}

// Validate checks a name suggested by an external collaborator.
func (f *NameFinder) Validate(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if strings.ContainsFunc(name, func(r rune) bool { return !unicode.IsLetter(r) && r != '-' }) {
		return "", false
	}
	if !f.acceptable(name) {
		return "", false
	}
	return TitleCase(name), true
}

// Merge applies write-once-wins: the first marked name is kept. found
// replaces held when held is empty, a placeholder, or only a guess while
// found is marked. Reports whether the name changed.
func (f *NameFinder) Merge(held, found NameMatch) (NameMatch, bool) {
	if found.Name == "" {
		return held, false
	}
	if held.Name == "" || f.IsPlaceholder(held.Name) || (!held.Marked && found.Marked) {
		return found, held.Name != found.Name
	}
	return held, false
}

// MergePhone applies write-once-wins to phones.
func MergePhone(held, found string) (string, bool) {
	if held != "" || found == "" {
		return held, false
	}
	return found, true
}

func (f *NameFinder) findCapitalized(text string, hint NameHint) (string, bool) {
	words := tokenize(text)
	if len(words) > maxBareNameWords && hint.PhoneOffset < 0 && !hint.ExpectingName {
		return "", false
	}

	best, bestDist := "", -1
	for _, w := range words {
		if !isCapitalized(w.text) || !f.acceptable(w.text) {
			continue
		}
		if hint.PhoneOffset < 0 {
			return TitleCase(w.text), true
		}
		dist := w.offset - hint.PhoneOffset
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = w.text, dist
		}
	}
	if best == "" {
		return "", false
	}
	return TitleCase(best), true
}

func (f *NameFinder) acceptable(word string) bool {
	if utf8.RuneCountInString(word) < 2 {
		return false
	}
	folded := catalog.Fold(word)
	if f.exact[folded] {
		return false
	}
	for _, stem := range f.stems {
		if strings.HasPrefix(folded, stem) {
			return false
		}
	}
	return true
}

type token struct {
	text   string
	offset int
}

// tokenize splits text into letter runs with their byte offsets
func tokenize(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || (r == '-' && start >= 0) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, token{text: strings.TrimRight(text[start:i], "-"), offset: start})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, token{text: strings.TrimRight(text[start:], "-"), offset: start})
	}
	return out
}

func isCapitalized(word string) bool {
	first, size := utf8.DecodeRuneInString(word)
	if !unicode.IsUpper(first) {
		return false
	}
	for _, r := range word[size:] {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

// TitleCase upper-cases the first letter and lower-cases the rest.
func TitleCase(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	if first == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}
