package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound message type tags.
const (
	TypeLocation = "location"
	TypeEvent    = "event"
	TypeChat     = "chat"
)

// HelloPayload is the payload of a roomHello envelope.
type HelloPayload struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// GoodbyePayload is the payload of a roomGoodbye envelope.
type GoodbyePayload struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// CommandPayload is the payload of a room envelope: a chat line or a
// slash command from a player.
type CommandPayload struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Content  string `json:"content"`
}

// LocationMessage is the direct reply describing the room. It is sent
// in response to roomHello and /look and is never bookmark-stamped.
type LocationMessage struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	FullName    string `json:"fullName,omitempty"`
	Description string `json:"description"`
}

// EventMessage is a bookmark-stamped room event. Content maps a
// recipient key ("*" or a userId) to the text that recipient sees.
type EventMessage struct {
	Type     string            `json:"type"`
	Content  map[string]string `json:"content"`
	Bookmark uint64            `json:"bookmark"`
}

// ChatMessage is a bookmark-stamped chat line visible to the whole room.
type ChatMessage struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Content  string `json:"content"`
	Bookmark uint64 `json:"bookmark"`
}

// ParseHello decodes and validates a roomHello payload.
//
// Postcondition: Returns a payload with non-empty UserID and Username,
// or a non-nil error.
func ParseHello(raw json.RawMessage) (HelloPayload, error) {
	var p HelloPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return HelloPayload{}, fmt.Errorf("decoding roomHello payload: %w", err)
	}
	if p.UserID == "" {
		return HelloPayload{}, fmt.Errorf("roomHello payload missing userId")
	}
	if p.Username == "" {
		return HelloPayload{}, fmt.Errorf("roomHello payload missing username")
	}
	return p, nil
}

// ParseGoodbye decodes and validates a roomGoodbye payload.
//
// Postcondition: Returns a payload with a non-empty UserID, or a
// non-nil error. Username may legitimately be empty on some mediator
// versions and is not required.
func ParseGoodbye(raw json.RawMessage) (GoodbyePayload, error) {
	var p GoodbyePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return GoodbyePayload{}, fmt.Errorf("decoding roomGoodbye payload: %w", err)
	}
	if p.UserID == "" {
		return GoodbyePayload{}, fmt.Errorf("roomGoodbye payload missing userId")
	}
	return p, nil
}

// ParseCommand decodes and validates a room payload.
//
// Postcondition: Returns a payload with non-empty UserID and Username.
// Content may be empty; empty content is treated as chat by the
// dispatcher.
func ParseCommand(raw json.RawMessage) (CommandPayload, error) {
	var p CommandPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return CommandPayload{}, fmt.Errorf("decoding room payload: %w", err)
	}
	if p.UserID == "" {
		return CommandPayload{}, fmt.Errorf("room payload missing userId")
	}
	if p.Username == "" {
		return CommandPayload{}, fmt.Errorf("room payload missing username")
	}
	return p, nil
}
