package room

import "sync"

// Player is the identity bound to a session by an accepted roomHello.
// It is never mutated after binding.
type Player struct {
	// UserID is the stable, globally unique player identity.
	UserID string
	// Username is the display name; it may repeat across players.
	Username string
}

// Session associates a transport connection with an authenticated
// player identity. The player field is set exactly once, by the first
// accepted roomHello on the connection; later roomHellos on the same
// connection are ignored.
//
// A session is owned by its connection's handler chain. The mutex only
// guards the bind-once invariant against a transport that delivers
// messages for one connection from changing goroutines.
type Session struct {
	// ConnID is the transport connection identifier.
	ConnID string

	mu     sync.Mutex
	player *Player
}

// NewSession creates an unbound session for a connection.
func NewSession(connID string) *Session {
	return &Session{ConnID: connID}
}

// BindPlayer binds the player identity to this session if no player is
// bound yet.
//
// Postcondition: Returns true when this call performed the binding,
// false when a player was already bound (duplicate-join guard).
func (s *Session) BindPlayer(userID, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player != nil {
		return false
	}
	s.player = &Player{UserID: userID, Username: username}
	return true
}

// Player returns the bound player identity.
//
// Postcondition: Returns (player, true) after a successful bind, or
// (Player{}, false) on an unbound session.
func (s *Session) Player() (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return Player{}, false
	}
	return *s.player, true
}
