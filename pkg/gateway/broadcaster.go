package gateway

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/drorm/vmpilot/pkg/stream"
)

// UnitBroadcaster pushes output units to all connected clients with a
// strictly increasing sequence number.
type UnitBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewUnitBroadcaster creates a broadcaster over the given registry
func NewUnitBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *UnitBroadcaster {
	return &UnitBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// BroadcastUnit delivers one output unit to every connected client
func (b *UnitBroadcaster) BroadcastUnit(requestID string, unit stream.Unit) {
	b.send(EventMessage{
		Type:      EventUnit,
		RequestID: requestID,
		Unit:      &unit,
	})
}

// BroadcastEvent delivers a lifecycle signal (done, error) to every client
func (b *UnitBroadcaster) BroadcastEvent(eventType, requestID, text string) {
	b.send(EventMessage{
		Type:      eventType,
		RequestID: requestID,
		Message:   text,
	})
}

func (b *UnitBroadcaster) send(msg EventMessage) {
	msg.Seq = b.nextSeq()
	msg.Timestamp = time.Now().UnixMilli()

	clients := b.clients.GetAll()
	if len(clients) == 0 {
		b.logger.Debug().
			Str("type", msg.Type).
			Int64("seq", msg.Seq).
			Msg("No clients to broadcast to")
		return
	}

	for _, client := range clients {
		if err := client.WriteJSON(msg); err != nil {
			b.logger.Warn().
				Err(err).
				Str("clientId", client.ID).
				Str("type", msg.Type).
				Int64("seq", msg.Seq).
				Msg("Failed to broadcast to client")
		}
	}
}

func (b *UnitBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
