package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
)

const sendBuffer = 8

type envelope struct {
	to      string
	payload []byte
}

// Hub routes events to live connections by correlation id. All connection
// bookkeeping happens on the Run goroutine.
type Hub struct {
	register   chan *conn
	unregister chan *conn
	notify     chan envelope
	done       chan struct{}
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		register:   make(chan *conn),
		unregister: make(chan *conn),
		notify:     make(chan envelope, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run blocks until ctx is cancelled, then closes every connection's send
// queue.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	conns := make(map[string]*conn)
	for {
		select {
		case <-ctx.Done():
			for id, c := range conns {
				close(c.send)
				delete(conns, id)
			}
			return
		case c := <-h.register:
			conns[c.id] = c
		case c := <-h.unregister:
			if cur, ok := conns[c.id]; ok && cur == c {
				close(c.send)
				delete(conns, c.id)
			}
		case env := <-h.notify:
			c, ok := conns[env.to]
			if !ok {
				h.log.Debug("realtime target gone", slog.String("correlation_id", env.to))
				continue
			}
			select {
			case c.send <- env.payload:
			default:
				h.log.Warn("realtime send queue full, dropping event", slog.String("correlation_id", env.to))
			}
		}
	}
}

// Notify queues event for the connection with the given correlation id.
// Delivery is best-effort: unknown ids and a saturated hub drop the event.
func (h *Hub) Notify(correlationID string, event any) {
	if correlationID == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal realtime event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.notify <- envelope{to: correlationID, payload: payload}:
	default:
		h.log.Warn("realtime hub busy, dropping event", slog.String("correlation_id", correlationID))
	}
}
