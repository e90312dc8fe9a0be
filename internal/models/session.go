package models

import (
	"time"
)

// Stage is a phase of the lead dialog. Stages are ordered and only move forward.
type Stage int

const (
	StageNeedsAnalysis Stage = iota
	StageConsultation
	StageDetailsClarification
	StageContactCollection
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageNeedsAnalysis:
		return "needs_analysis"
	case StageConsultation:
		return "consultation"
	case StageDetailsClarification:
		return "details_clarification"
	case StageContactCollection:
		return "contact_collection"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EscalationKind records which path handed the lead over to a manager
type EscalationKind int

const (
	EscalationNone EscalationKind = iota
	EscalationComplete
	EscalationIncompleteTimeout
)

func (k EscalationKind) String() string {
	switch k {
	case EscalationComplete:
		return "complete"
	case EscalationIncompleteTimeout:
		return "incomplete_timeout"
	default:
		return "none"
	}
}

// Channel identifies the inbound transport a visitor came from
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Session is the volatile dialog state of one visitor.
type Session struct {
	Key         string  `json:"key"`
	Channel     Channel `json:"channel"`
	Source      string  `json:"source"`       // human readable origin, e.g. "Telegram (личка боту)"
	ReplyTarget string  `json:"reply_target"` // channel specific address for outbound replies

	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`

	Stage Stage  `json:"stage"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	// NameMarked is set when Name came from an explicit "my name is" phrase;
	// a guessed name may still be replaced by a marked one
	NameMarked bool `json:"name_marked,omitempty"`

	// Topic is a catalog topic id; the latest detected topic wins
	Topic          string            `json:"topic,omitempty"`
	TopicMentioned bool              `json:"topic_mentioned"`
	Slots          map[string]string `json:"slots,omitempty"`
	ClarifyTurns   int               `json:"clarify_turns"`

	Transcript   []string `json:"transcript"`
	MessageCount int      `json:"message_count"`

	Escalated      bool           `json:"escalated"`
	EscalationKind EscalationKind `json:"escalation_kind"`
	EscalatedAt    *time.Time     `json:"escalated_at,omitempty"`
}

// NewSession creates a session in the initial stage
func NewSession(key string, now time.Time) *Session {
	return &Session{
		Key:        key,
		CreatedAt:  now,
		LastActive: now,
		Stage:      StageNeedsAnalysis,
		Slots:      make(map[string]string),
	}
}

// Advance moves the session to stage to if that is a forward move.
// Completed is terminal. Reports whether the stage changed.
func (s *Session) Advance(to Stage) bool {
	if s.Stage == StageCompleted || to <= s.Stage {
		return false
	}
	s.Stage = to
	return true
}

// HasContacts reports whether both name and phone are known
func (s *Session) HasContacts() bool {
	return s.Name != "" && s.Phone != ""
}

// Record appends an inbound message to the transcript
func (s *Session) Record(text string, now time.Time) {
	s.Transcript = append(s.Transcript, text)
	s.MessageCount++
	s.LastActive = now
}

// Age returns how long ago the session was created
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Idle returns how long the visitor has been silent
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActive)
}

// Clone returns a deep copy safe to mutate without touching the original
func (s *Session) Clone() *Session {
	c := *s
	if s.Transcript != nil {
		c.Transcript = make([]string, len(s.Transcript))
		copy(c.Transcript, s.Transcript)
	}
	c.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		c.Slots[k] = v
	}
	if s.EscalatedAt != nil {
		t := *s.EscalatedAt
		c.EscalatedAt = &t
	}
	return &c
}
