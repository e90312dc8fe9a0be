package storage

import (
	"github.com/rotisserie/eris"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// ErrSessionNotFound is returned when a session key is unknown.
var ErrSessionNotFound = eris.New("session not found")

// MutateFunc changes a session inside a store mutation. Returning an error
// discards every change made by the function.
type MutateFunc func(s *models.Session) error

// Store defines the interface for session storage.
//
// Mutations of one key are serialized; a function passed to Update or Modify
// works on a private copy which is committed only when it returns nil.
type Store interface {
	// Update runs fn on the session for key, creating it first if needed,
	// and returns a snapshot of the committed state.
	Update(key string, fn MutateFunc) (*models.Session, error)

	// Modify is Update for existing sessions only. It never creates one.
	Modify(key string, fn MutateFunc) (*models.Session, error)

	// Get returns a snapshot of the session for key.
	Get(key string) (*models.Session, error)

	// DeleteIf removes the session when pred holds. pred runs under the
	// session lock.
	DeleteIf(key string, pred func(s *models.Session) bool) bool

	// Delete removes the session unconditionally.
	Delete(key string) bool

	// Keys lists the current session keys.
	Keys() []string

	// Len returns the number of live sessions.
	Len() int
}
