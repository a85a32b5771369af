package node

import (
	"net/http"
	"sync"
	"time"

	"nodewatch/internal/protocol"
	"nodewatch/internal/util"

	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer   = 32
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSManager fans events out to websocket subscribers
type WSManager struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool

	// snapshot is sent to every new subscriber before live events
	snapshot func() (*protocol.Event, error)

	upgrader websocket.Upgrader

	// Connection tracking
	activeConns sync.WaitGroup
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// NewWSManager creates a new WebSocket manager
func NewWSManager(snapshot func() (*protocol.Event, error)) *WSManager {
	return &WSManager{
		clients:  make(map[*wsClient]struct{}),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the feed is read-only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of connected subscribers
func (wm *WSManager) ClientCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.clients)
}

// Broadcast sends event to every subscriber. Subscribers that cannot keep up
// are disconnected.
func (wm *WSManager) Broadcast(event *protocol.Event) {
	data, err := event.Encode()
	if err != nil {
		log.WithError(err).WithField("type", event.Type).Warn("Failed to encode websocket event")
		return
	}

	var slow []*wsClient
	wm.mu.RLock()
	for c := range wm.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	wm.mu.RUnlock()

	for _, c := range slow {
		log.WithField("remote", c.remote).Warn("Dropping slow websocket subscriber")
		wm.unregister(c)
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (wm *WSManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	c := &wsClient{
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		remote: util.GetRemoteIP(r),
	}
	if !wm.register(c, wm.snapshotData()) {
		conn.Close()
		return
	}
	defer wm.activeConns.Done()

	log.WithField("remote", c.remote).Debug("WebSocket subscriber connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump()

	wm.unregister(c)
	<-done
	log.WithField("remote", c.remote).Debug("WebSocket subscriber disconnected")
}

func (wm *WSManager) snapshotData() []byte {
	if wm.snapshot == nil {
		return nil
	}
	event, err := wm.snapshot()
	if err != nil {
		log.WithError(err).Debug("No websocket snapshot")
		return nil
	}
	data, err := event.Encode()
	if err != nil {
		return nil
	}
	return data
}

// register queues first (if any) ahead of live events
func (wm *WSManager) register(c *wsClient, first []byte) bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if wm.closed {
		return false
	}
	if first != nil {
		c.send <- first
	}
	wm.clients[c] = struct{}{}
	wm.activeConns.Add(1)
	return true
}

func (wm *WSManager) unregister(c *wsClient) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, ok := wm.clients[c]; !ok {
		return
	}
	delete(wm.clients, c)
	close(c.send)
}

// Close disconnects every subscriber and waits for their handlers to return
func (wm *WSManager) Close() {
	wm.mu.Lock()
	wm.closed = true
	for c := range wm.clients {
		delete(wm.clients, c)
		close(c.send)
	}
	wm.mu.Unlock()

	wm.activeConns.Wait()
}

// readPump discards client messages and returns once the connection fails
func (c *wsClient) readPump() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump owns all writes and closes the connection when send is closed
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
