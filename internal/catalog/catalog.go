// Package catalog holds the clinic's data-driven rules: the ordered topic
// catalog, detail slots, intent phrases, name filters and canned replies.
package catalog

import (
	_ "embed"
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the full rule set used by the dialog engine.
type Catalog struct {
	Clinic  Clinic          `yaml:"clinic"`
	Topics  []Topic         `yaml:"topics"`
	Slots   map[string]Slot `yaml:"slots"`
	Intent  IntentRules     `yaml:"intent"`
	Names   NameRules       `yaml:"names"`
	Replies Replies         `yaml:"replies"`
	FAQ     []FAQEntry      `yaml:"faq"`
}

// Clinic is the static business information quoted in replies.
type Clinic struct {
	Name            string `yaml:"name"`
	Phone           string `yaml:"phone"`
	AddressSochi    string `yaml:"address_sochi"`
	AddressAdler    string `yaml:"address_adler"`
	Hours           string `yaml:"hours"`
	InstallmentNote string `yaml:"installment_note"`
	Site            string `yaml:"site"`
}

// Topic is one service category visitors can be interested in.
type Topic struct {
	ID         string   `yaml:"id"`
	Label      string   `yaml:"label"`
	Category   string   `yaml:"category"`
	Keywords   []string `yaml:"keywords"`
	Slots      []string `yaml:"slots"`
	MinDetails int      `yaml:"min_details"`
}

// Slot is an optional free-text detail gathered for a topic (zone, skin type...).
type Slot struct {
	Label    string       `yaml:"label"`
	Question string       `yaml:"question"`
	Options  []SlotOption `yaml:"options"`
}

// SlotOption maps keywords to the value recorded for a slot.
type SlotOption struct {
	Value    string   `yaml:"value"`
	Keywords []string `yaml:"keywords"`
}

// IntentRules are the phrase sets used by the intent detector.
type IntentRules struct {
	Ready     []string `yaml:"ready"`
	Interest  []string `yaml:"interest"`
	Questions []string `yaml:"questions"`
	Urgent    []string `yaml:"urgent"`
}

// NameRules filter words that look like names but are not.
type NameRules struct {
	Greetings []string `yaml:"greetings"`
	Stopwords []string `yaml:"stopwords"`
	Denylist  []string `yaml:"denylist"`
}

// Replies are the canned texts. Placeholders: {name} {phone} {clinic}
// {address} {address_adler} {hours} {installment}.
type Replies struct {
	Greeting            string `yaml:"greeting"`
	Clarify             string `yaml:"clarify"`
	Consultation        string `yaml:"consultation"`
	AskContacts         string `yaml:"ask_contacts"`
	AskPhone            string `yaml:"ask_phone"`
	AskName             string `yaml:"ask_name"`
	Submitted           string `yaml:"submitted"`
	SubmittedIncomplete string `yaml:"submitted_incomplete"`
	DispatchFailed      string `yaml:"dispatch_failed"`
	InternalError       string `yaml:"internal_error"`
	Closing             string `yaml:"closing"`
	Emergency           string `yaml:"emergency"`
}

// FAQEntry is a keyword triggered answer for the rule based fallback.
type FAQEntry struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes, normalizes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog is usable by the dialog engine.
func (c *Catalog) Validate() error {
	if c.Clinic.Phone == "" {
		return eris.New("catalog: clinic phone is required")
	}
	if len(c.Topics) == 0 {
		return eris.New("catalog: at least one topic is required")
	}
	seen := make(map[string]bool, len(c.Topics))
	for _, t := range c.Topics {
		if t.ID == "" || t.Label == "" {
			return eris.New("catalog: topic id and label are required")
		}
		if seen[t.ID] {
			return eris.Errorf("catalog: duplicate topic %q", t.ID)
		}
		seen[t.ID] = true
		if len(t.Keywords) == 0 {
			return eris.Errorf("catalog: topic %q has no keywords", t.ID)
		}
		for _, s := range t.Slots {
			if _, ok := c.Slots[s]; !ok {
				return eris.Errorf("catalog: topic %q references unknown slot %q", t.ID, s)
			}
		}
		if t.MinDetails > len(t.Slots) {
			return eris.Errorf("catalog: topic %q needs %d details but has %d slots", t.ID, t.MinDetails, len(t.Slots))
		}
	}
	r := c.Replies
	for name, v := range map[string]string{
		"clarify":         r.Clarify,
		"ask_contacts":    r.AskContacts,
		"ask_phone":       r.AskPhone,
		"ask_name":        r.AskName,
		"submitted":       r.Submitted,
		"dispatch_failed": r.DispatchFailed,
		"internal_error":  r.InternalError,
	} {
		if strings.TrimSpace(v) == "" {
			return eris.Errorf("catalog: reply %q is required", name)
		}
	}
	return nil
}

// Topic looks a topic up by id
func (c *Catalog) Topic(id string) (Topic, bool) {
	for _, t := range c.Topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// Vocabulary returns every folded topic, detail and intent keyword. Words of
// the catalog are never visitor names.
func (c *Catalog) Vocabulary() []string {
	var out []string
	for _, t := range c.Topics {
		out = append(out, t.Keywords...)
	}
	for _, s := range c.Slots {
		for _, opt := range s.Options {
			out = append(out, opt.Keywords...)
		}
	}
	out = append(out, c.Intent.Ready...)
	out = append(out, c.Intent.Interest...)
	out = append(out, c.Intent.Urgent...)
	return out
}

// Render fills reply placeholders with clinic data and the given name.
func (c *Catalog) Render(tmpl, name string) string {
	r := strings.NewReplacer(
		"{name}", name,
		"{phone}", c.Clinic.Phone,
		"{clinic}", c.Clinic.Name,
		"{address}", c.Clinic.AddressSochi,
		"{address_adler}", c.Clinic.AddressAdler,
		"{hours}", c.Clinic.Hours,
		"{installment}", c.Clinic.InstallmentNote,
	)
	return r.Replace(tmpl)
}

// normalize folds every keyword list once so matching can use plain substring checks
func (c *Catalog) normalize() {
	for i := range c.Topics {
		c.Topics[i].Keywords = foldAll(c.Topics[i].Keywords)
	}
	for name, s := range c.Slots {
		for i := range s.Options {
			s.Options[i].Keywords = foldAll(s.Options[i].Keywords)
		}
		c.Slots[name] = s
	}
	c.Intent.Ready = foldAll(c.Intent.Ready)
	c.Intent.Interest = foldAll(c.Intent.Interest)
	c.Intent.Questions = foldAll(c.Intent.Questions)
	c.Intent.Urgent = foldAll(c.Intent.Urgent)
	c.Names.Greetings = foldAll(c.Names.Greetings)
	c.Names.Stopwords = foldAll(c.Names.Stopwords)
	c.Names.Denylist = foldAll(c.Names.Denylist)
	for i := range c.FAQ {
		c.FAQ[i].Keywords = foldAll(c.FAQ[i].Keywords)
	}
}

// Fold case-folds s for keyword matching and treats "ё" as "е".
// A new caser is built per call because cases.Caser is not goroutine safe.
func Fold(s string) string {
	return strings.ReplaceAll(cases.Fold().String(s), "ё", "е")
}

// Normalize folds text, turns punctuation into spaces and pads both ends with a
// space, so keywords with a trailing space match whole word endings.
func Normalize(text string) string {
	folded := Fold(text)
	var b strings.Builder
	b.Grow(len(folded) + 2)
	b.WriteByte(' ')
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'', r == '+':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	return b.String()
}

// ContainsAny reports whether normalized text contains any of the folded
// keywords at the start of a word. Keywords are stems, so "чистк" matches
// "чистку" but "ready" does not match "already".
func ContainsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, " "+kw) {
			return true
		}
	}
	return false
}

func foldAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		// keep deliberate trailing spaces ("губ ") so they still act as word ends
		if f := Fold(w); strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}
