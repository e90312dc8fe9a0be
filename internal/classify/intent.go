package classify

import (
	"strings"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/extract"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// DefaultMessageThreshold is the message count after which a conversation is
// treated as intent on its own.
const DefaultMessageThreshold = 5

// Reason names the signal that made the detector fire.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonReadyPhrase      Reason = "ready_phrase"
	ReasonContact          Reason = "contact_pattern"
	ReasonTopicInterest    Reason = "topic_interest"
	ReasonLongConversation Reason = "long_conversation"
)

// Signal is the detector's verdict for one message.
type Signal struct {
	Ready  bool
	Reason Reason
}

// Detector decides whether a visitor is ready to be handed to a manager.
// It is a monotone OR of independent signals.
type Detector struct {
	rules     catalog.IntentRules
	names     *extract.NameFinder
	threshold int
}

// NewDetector creates an intent detector. A threshold <= 0 uses the default.
func NewDetector(rules catalog.IntentRules, names *extract.NameFinder, threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultMessageThreshold
	}
	return &Detector{rules: rules, names: names, threshold: threshold}
}

// Detect evaluates text against the session's accumulated signals. The
// session must already include the current message in MessageCount and
// TopicMentioned.
func (d *Detector) Detect(text string, s *models.Session) Signal {
	normalized := catalog.Normalize(text)

	switch {
	case catalog.ContainsAny(normalized, d.rules.Ready):
		return Signal{Ready: true, Reason: ReasonReadyPhrase}
	case extract.HasPhoneLike(text) || d.names.HasMarker(text):
		return Signal{Ready: true, Reason: ReasonContact}
	case s.TopicMentioned && catalog.ContainsAny(normalized, d.rules.Interest):
		return Signal{Ready: true, Reason: ReasonTopicInterest}
	case s.MessageCount >= d.threshold:
		return Signal{Ready: true, Reason: ReasonLongConversation}
	}
	return Signal{}
}

// IsQuestion reports whether text reads like a general question.
func (d *Detector) IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	return catalog.ContainsAny(catalog.Normalize(text), d.rules.Questions)
}

// IsUrgent reports whether text describes a complaint that needs a person.
func (d *Detector) IsUrgent(text string) bool {
	return catalog.ContainsAny(catalog.Normalize(text), d.rules.Urgent)
}
