package room

import (
	"strings"

	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/protocol"
)

// Text shown to players on membership transitions and unknown commands.
const (
	enteredRoomText = "You have entered the room"
	unknownCmdText  = "Unrecognised command - sorry :-("
)

// Room is one GameOn room: the static descriptor plus the shared
// membership set and broadcaster, with one handler per protocol verb.
// Handlers for different connections run concurrently; Membership and
// the Broadcaster carry their own locking.
type Room struct {
	desc    Descriptor
	logger  *zap.Logger
	members *Membership
	bcast   *Broadcaster
}

// New creates a Room for the given descriptor.
//
// Precondition: desc must be validated; logger must be non-nil.
func New(desc Descriptor, logger *zap.Logger) *Room {
	return &Room{
		desc:    desc,
		logger:  logger,
		members: NewMembership(),
		bcast:   NewBroadcaster(logger),
	}
}

// Descriptor returns the room's static descriptor.
func (r *Room) Descriptor() Descriptor {
	return r.desc
}

// Members returns the shared membership set.
func (r *Room) Members() *Membership {
	return r.members
}

// Broadcaster returns the room's broadcaster.
func (r *Room) Broadcaster() *Broadcaster {
	return r.bcast
}

// Attach registers a new connection and greets it with the protocol
// ack. Called when a transport connection opens, before any envelope
// is routed.
func (r *Room) Attach(conn Sender) error {
	r.bcast.Attach(conn)

	ack, err := protocol.EncodeAck([]int{1})
	if err != nil {
		return err
	}
	return conn.Send(ack)
}

// HandleHello processes an accepted roomHello: it inserts the player
// into membership, binds the session and the routing entry, announces
// the arrival, and sends the joiner its location.
//
// The membership insert is the admission gate. A duplicate roomHello on
// an already-bound session is a no-op, and a hello for a userId that is
// already present through another connection leaves this session
// unbound: it must not steal the live connection's routing, and its
// later disconnect must not evict the player.
func (r *Room) HandleHello(sess *Session, p protocol.HelloPayload) {
	if _, bound := sess.Player(); bound {
		r.logger.Debug("duplicate roomHello ignored",
			zap.String("conn_id", sess.ConnID),
			zap.String("user_id", p.UserID),
		)
		return
	}

	if !r.members.Add(p.UserID, p.Username) {
		r.logger.Debug("player already present, join suppressed",
			zap.String("user_id", p.UserID),
			zap.String("conn_id", sess.ConnID),
		)
		return
	}
	if !sess.BindPlayer(p.UserID, p.Username) {
		// Lost a race with a concurrent hello on this same session.
		r.members.Remove(p.UserID)
		return
	}
	r.bcast.BindUser(p.UserID, sess.ConnID)

	r.logger.Info("player entered",
		zap.String("user_id", p.UserID),
		zap.String("username", p.Username),
		zap.Int("present", r.members.Count()),
	)

	// One event for the whole room: others render the "*" text, the
	// joiner renders the text keyed by their own userId.
	if err := r.bcast.SendEvent("",
		"Player "+p.Username+" has entered the room",
		p.UserID, enteredRoomText,
	); err != nil {
		r.logger.Warn("broadcasting entry", zap.Error(err))
	}

	// The location reply is the required direct response to roomHello.
	// It bypasses the bookmark counter.
	loc := protocol.LocationMessage{
		Type:        protocol.TypeLocation,
		Name:        r.desc.Name,
		FullName:    r.desc.FullName,
		Description: r.desc.Description,
	}
	if err := r.bcast.SendTo(sess.ConnID, p.UserID, loc); err != nil {
		r.logger.Warn("sending location reply", zap.Error(err))
	}
}

// HandleCommand dispatches on the lower-cased content of a room
// envelope: /look yields a direct location reply, any other slash
// command yields an event visible only to the requester, and everything
// else is chat for the whole room.
func (r *Room) HandleCommand(sess *Session, p protocol.CommandPayload) {
	content := strings.ToLower(p.Content)

	switch {
	case content == "/look":
		loc := protocol.LocationMessage{
			Type:        protocol.TypeLocation,
			Name:        r.desc.Name,
			Description: r.desc.Description,
		}
		if err := r.bcast.SendTo(sess.ConnID, p.UserID, loc); err != nil {
			r.logger.Warn("sending look reply", zap.Error(err))
		}

	case strings.HasPrefix(content, "/"):
		r.logger.Debug("unrecognised command",
			zap.String("user_id", p.UserID),
			zap.String("content", content),
		)
		if err := r.bcast.SendEvent("", "", p.UserID, unknownCmdText); err != nil {
			r.logger.Warn("sending command rejection", zap.Error(err))
		}

	default:
		if err := r.bcast.SendChat(p.Username, p.Content); err != nil {
			r.logger.Warn("broadcasting chat", zap.Error(err))
		}
	}
}

// HandleGoodbye removes the player from membership and, when the id was
// actually present, announces the departure to everyone except the
// leaver. The leaver receives nothing.
func (r *Room) HandleGoodbye(sess *Session, p protocol.GoodbyePayload) {
	if !r.members.Remove(p.UserID) {
		return
	}

	r.logger.Info("player left",
		zap.String("user_id", p.UserID),
		zap.String("username", p.Username),
		zap.Int("present", r.members.Count()),
	)

	username := p.Username
	if username == "" {
		if player, ok := sess.Player(); ok {
			username = player.Username
		}
	}
	if err := r.bcast.SendEvent(sess.ConnID,
		"Player "+username+" has left the room", "", "",
	); err != nil {
		r.logger.Warn("broadcasting departure", zap.Error(err))
	}
}

// HandleDisconnect cleans up after a connection closes. A bound player
// that never sent roomGoodbye is removed from membership and the
// departure is announced, so abrupt disconnects do not leave orphaned
// membership entries. After an explicit goodbye the removal is a no-op.
func (r *Room) HandleDisconnect(sess *Session) {
	defer r.bcast.Detach(sess.ConnID)

	player, bound := sess.Player()
	if !bound {
		return
	}
	r.HandleGoodbye(sess, protocol.GoodbyePayload{
		Username: player.Username,
		UserID:   player.UserID,
	})
}
