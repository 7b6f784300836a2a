package room

import "sync"

// Membership is the concurrency-safe set of player userIds currently
// present in the room. It is the single source of truth for "who is
// here" and is shared by every connection handler.
type Membership struct {
	mu      sync.RWMutex
	players map[string]string // userId → username
}

// NewMembership creates an empty Membership set.
func NewMembership() *Membership {
	return &Membership{
		players: make(map[string]string),
	}
}

// Add inserts a userId if it is not already present. The check and the
// insert happen under one lock so two concurrent joins for the same id
// observe exactly one insertion.
//
// Precondition: userID must be non-empty.
// Postcondition: Returns true when the id was newly inserted, false
// when it was already present (the username is left untouched in that
// case).
func (m *Membership) Add(userID, username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, present := m.players[userID]; present {
		return false
	}
	m.players[userID] = username
	return true
}

// Remove deletes a userId from the set.
//
// Postcondition: Returns true when the id was present and has been
// removed, false when it was not a member. Removing an absent id is a
// no-op either way.
func (m *Membership) Remove(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, present := m.players[userID]; !present {
		return false
	}
	delete(m.players, userID)
	return true
}

// Contains reports whether userID is currently present.
func (m *Membership) Contains(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, present := m.players[userID]
	return present
}

// Usernames returns the display names of all present players.
//
// Postcondition: Returns a slice of usernames (may be empty), in no
// particular order.
func (m *Membership) Usernames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.players))
	for _, name := range m.players {
		names = append(names, name)
	}
	return names
}

// Count returns the number of present players.
func (m *Membership) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
