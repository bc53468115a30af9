package devtools

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/reactor/pkg/reactor"
)

// clientBuffer is the number of events queued per client before new
// events are dropped for it.
const clientBuffer = 256

// StepEvent is sent to feed clients when a scheduler step finishes.
type StepEvent struct {
	Kind       string  `json:"kind"`
	Tick       uint64  `json:"tick"`
	Instance   uint64  `json:"instance"`
	Position   int     `json:"position"`
	Name       string  `json:"name,omitempty"`
	DurationMs float64 `json:"durationMs"`
	Error      string  `json:"error,omitempty"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed broadcasts finished steps to websocket clients. It implements
// reactor.Middleware; sends never block the scheduler.
type Feed struct {
	clients  map[*feedClient]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	dropped  atomic.Uint64
}

// NewFeed creates a feed with no clients.
func NewFeed() *Feed {
	return &Feed{
		clients: make(map[*feedClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local inspection tool
			},
		},
	}
}

// Handle implements reactor.Middleware.
func (f *Feed) Handle(ctx context.Context, step reactor.Step, next func(context.Context) error) error {
	start := time.Now()
	err := next(ctx)

	if f.ClientCount() > 0 {
		ev := StepEvent{
			Kind:       step.Kind.String(),
			Tick:       step.Tick,
			Instance:   uint64(step.Instance),
			Position:   step.Position,
			Name:       step.Name,
			DurationMs: float64(time.Since(start).Microseconds()) / 1000,
		}
		if err != nil {
			ev.Error = err.Error()
		}
		f.Publish(ev)
	}
	return err
}

// Publish queues ev for every client.
func (f *Feed) Publish(ev StepEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for client := range f.clients {
		select {
		case client.send <- data:
		default:
			f.dropped.Add(1)
		}
	}
}

// HandleWebSocket upgrades the request and streams events until the
// client disconnects.
func (f *Feed) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := f.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, clientBuffer)}
	f.mu.Lock()
	f.clients[client] = true
	f.mu.Unlock()

	done := make(chan struct{})
	go f.writeLoop(client, done)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	f.remove(client)
	<-done
}

func (f *Feed) writeLoop(client *feedClient, done chan<- struct{}) {
	defer close(done)
	for data := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.remove(client)
			// Drain until remove closes send.
			for range client.send {
			}
			return
		}
	}
}

// remove unregisters client and closes its connection once.
func (f *Feed) remove(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.clients[client] {
		return
	}
	delete(f.clients, client)
	close(client.send)
	client.conn.Close()
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Dropped returns the number of events dropped for slow clients.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Close closes all client connections.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for client := range f.clients {
		delete(f.clients, client)
		close(client.send)
		client.conn.Close()
	}
}
