package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

type entry struct {
	mu      sync.Mutex
	session *models.Session
	removed bool
	// fresh until the first successful mutation; a fresh entry is dropped when fn fails
	fresh bool
}

// MemoryStore holds all sessions in memory. Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	nowFunc func() time.Time
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		nowFunc:  time.Now,
	}
}

// WithClock overrides the clock used to stamp new sessions.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.nowFunc = now
	return m
}

func (m *MemoryStore) Update(key string, fn MutateFunc) (*models.Session, error) {
	for {
		e := m.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			// deleted between lookup and lock, start over with a fresh entry
			e.mu.Unlock()
			continue
		}
		return m.apply(e, fn)
	}
}

func (m *MemoryStore) Modify(key string, fn MutateFunc) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	if e.removed || e.fresh {
		e.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return m.apply(e, fn)
}

// apply runs fn on a copy of the session and commits it on success.
// The caller holds e.mu; apply releases it, also when fn panics.
func (m *MemoryStore) apply(e *entry, fn MutateFunc) (*models.Session, error) {
	committed := false
	defer func() {
		if !committed && e.fresh {
			m.drop(e)
		}
		e.mu.Unlock()
	}()

	working := e.session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	e.session = working
	e.fresh = false
	committed = true
	return working.Clone(), nil
}

// drop unlinks e from the map. The caller holds e.mu.
func (m *MemoryStore) drop(e *entry) {
	e.removed = true
	m.mu.Lock()
	if m.sessions[e.session.Key] == e {
		delete(m.sessions, e.session.Key)
	}
	m.mu.Unlock()
}

func (m *MemoryStore) getOrCreate(key string) *entry {
	m.mu.RLock()
	e, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[key]; ok {
		return e
	}
	e = &entry{session: models.NewSession(key, m.nowFunc()), fresh: true}
	m.sessions[key] = e
	return e
}

func (m *MemoryStore) Get(key string) (*models.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.fresh {
		return nil, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

func (m *MemoryStore) DeleteIf(key string, pred func(s *models.Session) bool) bool {
	m.mu.RLock()
	e, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || (pred != nil && !pred(e.session)) {
		return false
	}
	m.drop(e)
	return true
}

func (m *MemoryStore) Delete(key string) bool {
	return m.DeleteIf(key, nil)
}

func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
