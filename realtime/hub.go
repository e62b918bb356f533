// Package realtime pushes events to the connected dashboards of a user. Every
// websocket joins the room of its authenticated user, and emitting to a user
// reaches all of that user's devices.
package realtime

import (
	"context"
	"sync"

	"github.com/Luismorlan/pagemux/metrics"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/google/uuid"
)

// Outbound frames buffered per connection before new ones are dropped.
const sendBufferSize = 32

// Conn is one joined connection. Frames emitted to its user arrive on Send.
type Conn struct {
	Id     string
	UserId string

	send chan []byte
}

func (c *Conn) Send() <-chan []byte {
	return c.send
}

// Hub is the room registry. Joining and leaving take the write lock, emitting
// takes the read lock.
type Hub struct {
	// rooms maps a user id to the user's connections keyed by connection id,
	// so a closing connection is removed in O(1). A user's entry is removed
	// with its last connection.
	rooms map[string]map[string]*Conn
	mu    sync.RWMutex

	metrics *metrics.Reporter
}

func NewHub(m *metrics.Reporter) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Conn),
		metrics: m,
	}
}

// Join registers a connection for userId. The connection leaves the room
// when ctx is done.
func (h *Hub) Join(ctx context.Context, userId string) *Conn {
	conn := &Conn{
		Id:     "conn_" + uuid.New().String(),
		UserId: userId,
		send:   make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if _, ok := h.rooms[userId]; !ok {
		h.rooms[userId] = make(map[string]*Conn)
	}
	h.rooms[userId][conn.Id] = conn
	h.mu.Unlock()

	go h.leave(ctx, conn)
	return conn
}

func (h *Hub) leave(ctx context.Context, conn *Conn) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[conn.UserId], conn.Id)
	if len(h.rooms[conn.UserId]) == 0 {
		delete(h.rooms, conn.UserId)
	}
}

// EmitToUser delivers the event to every connection of userId without
// blocking and returns how many connections got it. A connection whose buffer
// is full misses the event.
func (h *Hub) EmitToUser(userId string, event string, payload interface{}) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		Log.WithField("event", event).Errorln("cannot encode realtime event: ", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, conn := range h.rooms[userId] {
		if offer(conn, frame) {
			delivered++
		}
	}
	if delivered == 0 {
		h.metrics.Incr(metrics.RealtimeDroppedCounter, "event:"+event)
	} else {
		h.metrics.Count(metrics.RealtimeDeliveredCounter, int64(delivered), "event:"+event)
	}
	return delivered
}

// emitToConn replies on a single connection, used for per-connection errors.
func (h *Hub) emitToConn(conn *Conn, event string, payload interface{}) bool {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return false
	}
	return offer(conn, frame)
}

func offer(conn *Conn, frame []byte) bool {
	select {
	case conn.send <- frame:
		return true
	default:
		return false
	}
}

func (h *Hub) ActiveConnectionsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, room := range h.rooms {
		count += len(room)
	}
	return count
}

func (h *Hub) IsOnline(userId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userId]) > 0
}
