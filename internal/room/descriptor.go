// Package room implements the room itself: the static descriptor, the
// membership set, per-connection sessions, the bookmark-stamping
// broadcaster, and the verb handlers that tie them together.
package room

import "fmt"

// DoorDirections are the six door slots the directory accepts, in the
// order n, s, e, w, u, d.
var DoorDirections = []string{"n", "s", "e", "w", "u", "d"}

// Descriptor is the static, process-wide description of this room.
// It is read-only after startup.
type Descriptor struct {
	// Name is the short room identifier used for directory lookup.
	Name string
	// FullName is the display name shown to players.
	FullName string
	// Description is the text sent in location replies.
	Description string
	// Doors maps a direction code (n, s, e, w, u, d) to the doorway
	// text the directory shows when wiring this room to neighbours.
	Doors map[string]string
}

// Validate checks descriptor invariants.
//
// Postcondition: Returns nil if the descriptor is usable, or an error
// describing the first violation.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("room name must not be empty")
	}
	if d.FullName == "" {
		return fmt.Errorf("room %q: full_name must not be empty", d.Name)
	}
	if d.Description == "" {
		return fmt.Errorf("room %q: description must not be empty", d.Name)
	}
	for dir := range d.Doors {
		if !isDoorDirection(dir) {
			return fmt.Errorf("room %q: unknown door direction %q", d.Name, dir)
		}
	}
	return nil
}

func isDoorDirection(dir string) bool {
	for _, d := range DoorDirections {
		if dir == d {
			return true
		}
	}
	return false
}
