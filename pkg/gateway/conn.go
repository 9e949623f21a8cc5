package gateway

import "github.com/google/uuid"

// Conn is one connected viewer as the gateway core sees it: an outbound
// message queue plus the subscription state driving cleanup on disconnect.
// The transport (websocket handler or a test) drains Outbound.
//
// ownedStreams and namespaces are guarded by the gateway mutex, never
// touched directly by transports.
type Conn struct {
	ID string

	send         chan Message
	ownedStreams map[string]struct{}
	namespaces   map[string]struct{}
}

func newConn(sendBuffer int) *Conn {
	return &Conn{
		ID:           uuid.New().String(),
		send:         make(chan Message, sendBuffer),
		ownedStreams: make(map[string]struct{}),
		namespaces:   make(map[string]struct{}),
	}
}

// Outbound returns the channel the transport drains. The channel is never
// closed; transports stop draining when the connection goes away.
func (c *Conn) Outbound() <-chan Message {
	return c.send
}
