package session

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"lanshare/internal/wire"
)

const sendQueueSize = 16

// handle ties one accepted connection to its outbound queue. All writes
// go through the queue and a single writer goroutine, so one stuck peer
// cannot stall updates to the rest. Handles stay inside this package
// and never appear in wire payloads.
type handle struct {
	id   string
	conn net.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once
}

func newHandle(conn net.Conn) *handle {
	return &handle{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		quit: make(chan struct{}),
	}
}

// enqueue never blocks: a full queue drops this update for this peer.
func (h *handle) enqueue(payload []byte) bool {
	select {
	case h.send <- payload:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue onto the socket. A write error closes the
// connection, which ends the peer's read loop and with it the
// registration.
func (h *handle) writeLoop() {
	for {
		select {
		case <-h.quit:
			return
		case payload := <-h.send:
			if err := wire.WriteLine(h.conn, payload); err != nil {
				h.conn.Close()
				return
			}
		}
	}
}

func (h *handle) close() {
	h.once.Do(func() {
		close(h.quit)
		h.conn.Close()
	})
}
