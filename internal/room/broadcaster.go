package room

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/protocol"
)

// Sender is the outbound half of a room connection. Send must preserve
// the order in which it is called for a given connection; the websocket
// client satisfies this with its buffered write queue.
type Sender interface {
	// ID returns the connection identifier.
	ID() string
	// Send queues one wire message for delivery.
	Send(data []byte) error
}

// Broadcaster tracks attached connections and stamps every event and
// chat message with a bookmark from a single process-wide counter.
//
// The counter assignment and the fan-out enqueue happen under one
// mutex, so bookmark values observed on any connection are strictly
// increasing in emit order.
type Broadcaster struct {
	logger *zap.Logger

	mu       sync.Mutex
	conns    map[string]Sender // connID → sender
	users    map[string]string // userId → connID
	bookmark uint64
}

// NewBroadcaster creates a Broadcaster with no attached connections.
//
// Precondition: logger must be non-nil.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		conns:  make(map[string]Sender),
		users:  make(map[string]string),
	}
}

// Attach registers a connection for fan-out delivery.
func (b *Broadcaster) Attach(conn Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[conn.ID()] = conn
}

// BindUser associates a userId with a connection so user-targeted
// events can be routed. Called when a roomHello is accepted.
func (b *Broadcaster) BindUser(userID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[userID] = connID
}

// Detach removes a connection and any userId bound to it.
func (b *Broadcaster) Detach(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(connID)
}

// dropLocked removes a connection and its user bindings.
// Caller must hold b.mu.
func (b *Broadcaster) dropLocked(connID string) {
	delete(b.conns, connID)
	for uid, cid := range b.users {
		if cid == connID {
			delete(b.users, uid)
		}
	}
}

// ConnCount returns the number of attached connections.
func (b *Broadcaster) ConnCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// SendEvent emits a bookmark-stamped event message.
//
// The content object carries "*" → roomText when roomText is non-empty
// and userID → userText when userText is non-empty. When roomText is
// present the message targets "*" and fans out to every attached
// connection except excludeConnID; otherwise it targets userID and is
// delivered only to that user's connection.
//
// Precondition: At least one of roomText and userText must be non-empty.
func (b *Broadcaster) SendEvent(excludeConnID, roomText, userID, userText string) error {
	content := make(map[string]string, 2)
	if roomText != "" {
		content[protocol.TargetAll] = roomText
	}
	if userText != "" {
		content[userID] = userText
	}
	if len(content) == 0 {
		return fmt.Errorf("event with no content")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	msg := protocol.EventMessage{
		Type:     protocol.TypeEvent,
		Content:  content,
		Bookmark: b.bookmark,
	}
	b.bookmark++

	if roomText != "" {
		data, err := protocol.Encode(protocol.VerbPlayer, protocol.TargetAll, msg)
		if err != nil {
			return err
		}
		b.fanOut(data, excludeConnID)
		return nil
	}

	data, err := protocol.Encode(protocol.VerbPlayer, userID, msg)
	if err != nil {
		return err
	}
	b.sendToUser(userID, data)
	return nil
}

// SendChat emits a bookmark-stamped chat message to every attached
// connection, including the sender's.
func (b *Broadcaster) SendChat(username, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg := protocol.ChatMessage{
		Type:     protocol.TypeChat,
		Username: username,
		Content:  content,
		Bookmark: b.bookmark,
	}
	b.bookmark++

	data, err := protocol.Encode(protocol.VerbPlayer, protocol.TargetAll, msg)
	if err != nil {
		return err
	}
	b.fanOut(data, "")
	return nil
}

// SendTo encodes a direct reply and delivers it to one connection only.
// Direct replies (ack, location) bypass the bookmark counter.
func (b *Broadcaster) SendTo(connID, target string, payload any) error {
	data, err := protocol.Encode(protocol.VerbPlayer, target, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	conn, ok := b.conns[connID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("connection %q not attached", connID)
	}
	if err := conn.Send(data); err != nil {
		b.Detach(connID)
		return fmt.Errorf("sending to connection %q: %w", connID, err)
	}
	return nil
}

// fanOut queues data on every attached connection except excludeConnID.
// A connection whose send fails is detached; the others are unaffected.
// Caller must hold b.mu.
func (b *Broadcaster) fanOut(data []byte, excludeConnID string) {
	for id, conn := range b.conns {
		if id == excludeConnID {
			continue
		}
		if err := conn.Send(data); err != nil {
			b.logger.Warn("detaching connection after failed send",
				zap.String("conn_id", id),
				zap.Error(err),
			)
			b.dropLocked(id)
		}
	}
}

// sendToUser queues data on the connection bound to userID, if any.
// Caller must hold b.mu.
func (b *Broadcaster) sendToUser(userID string, data []byte) {
	connID, ok := b.users[userID]
	if !ok {
		b.logger.Debug("no connection bound for user",
			zap.String("user_id", userID),
		)
		return
	}
	if conn, ok := b.conns[connID]; ok {
		if err := conn.Send(data); err != nil {
			b.logger.Warn("detaching connection after failed send",
				zap.String("conn_id", connID),
				zap.Error(err),
			)
			b.dropLocked(connID)
		}
	}
}
