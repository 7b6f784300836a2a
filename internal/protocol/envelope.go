// Package protocol implements the GameOn room wire protocol: the
// comma-delimited routing envelope and the typed JSON payloads it
// carries.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Inbound verbs routed by the mediator to a room.
const (
	VerbRoomHello   = "roomHello"
	VerbRoom        = "room"
	VerbRoomGoodbye = "roomGoodbye"
)

// VerbPlayer is the verb on every outbound room message.
const VerbPlayer = "player"

// TargetAll is the wildcard recipient target.
const TargetAll = "*"

// ErrMalformed reports an envelope that does not follow the
// verb,target,{json} wire format.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is the three-part routing message exchanged on a room
// connection. Payload is the raw JSON document after the second comma;
// it may itself contain commas.
type Envelope struct {
	Verb    string
	Target  string
	Payload json.RawMessage
}

// Decode parses a wire message into an Envelope.
//
// The routing prefix is split on commas that appear strictly before the
// first '{'; the remainder is the payload. Exactly three logical fields
// are required. Input with no '{', or with fewer than two routing
// tokens before it, fails with ErrMalformed instead of panicking on a
// short slice.
//
// Postcondition: Returns an Envelope with a non-empty Verb and a
// syntactically JSON-shaped Payload, or a non-nil error.
func Decode(message string) (Envelope, error) {
	brace := strings.IndexByte(message, '{')
	if brace < 0 {
		return Envelope{}, fmt.Errorf("%w: no payload object in %q", ErrMalformed, truncate(message))
	}

	var tokens []string
	start := 0
	for {
		comma := strings.IndexByte(message[start:], ',')
		if comma < 0 || start+comma >= brace {
			break
		}
		tokens = append(tokens, message[start:start+comma])
		start += comma + 1
	}

	if len(tokens) != 2 {
		return Envelope{}, fmt.Errorf("%w: expected verb,target,payload, got %d routing tokens", ErrMalformed, len(tokens))
	}
	if tokens[0] == "" {
		return Envelope{}, fmt.Errorf("%w: empty verb", ErrMalformed)
	}

	payload := message[start:]
	if !json.Valid([]byte(payload)) {
		return Envelope{}, fmt.Errorf("%w: payload is not valid JSON", ErrMalformed)
	}

	return Envelope{
		Verb:    tokens[0],
		Target:  tokens[1],
		Payload: json.RawMessage(payload),
	}, nil
}

// Encode serializes an outbound message as verb,target,payload with the
// payload JSON-marshalled.
//
// Precondition: verb must be non-empty and payload must be marshallable.
func Encode(verb, target string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", verb, err)
	}
	var b strings.Builder
	b.Grow(len(verb) + len(target) + len(body) + 2)
	b.WriteString(verb)
	b.WriteByte(',')
	b.WriteString(target)
	b.WriteByte(',')
	b.Write(body)
	return []byte(b.String()), nil
}

// EncodeAck builds the two-field ack greeting sent when a connection
// opens: ack,{"version":[...]}.
func EncodeAck(versions []int) ([]byte, error) {
	body, err := json.Marshal(struct {
		Version []int `json:"version"`
	}{Version: versions})
	if err != nil {
		return nil, fmt.Errorf("marshalling ack: %w", err)
	}
	return append([]byte("ack,"), body...), nil
}

// truncate limits quoted wire text in error messages.
func truncate(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
