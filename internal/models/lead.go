package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead is the journal row written for every dispatched lead.
// Sessions themselves are never persisted.
type Lead struct {
	gorm.Model
	LeadID       string    `json:"lead_id" gorm:"uniqueIndex;size:36"`
	SessionKey   string    `json:"session_key" gorm:"index"`
	Channel      string    `json:"channel"`
	Source       string    `json:"source"`
	Kind         string    `json:"kind"` // "complete" or "incomplete_timeout"
	Name         string    `json:"name"`
	Phone        string    `json:"phone" gorm:"index"`
	Email        string    `json:"email,omitempty"`
	Topic        string    `json:"topic"`
	Details      string    `json:"details"`    // JSON encoded slot values
	Transcript   string    `json:"transcript"` // newline joined inbound messages
	MessageCount int       `json:"message_count"`
	DispatchedAt time.Time `json:"dispatched_at"`
}
