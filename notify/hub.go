package notify

import (
	"sync"

	"vidserve/logger"
	"vidserve/models"

	"github.com/gorilla/websocket"
)

const sendQueueSize = 32

type client struct {
	conn  *websocket.Conn
	owner string
	send  chan models.ProgressMessage
}

var (
	mu      sync.Mutex
	clients = make(map[*client]struct{})
)

// Publish forwards a progress message to every live listener registered for
// owner. Best effort by contract: no listener, a dead connection or a
// saturated send queue silently drops the message, and the publishing job is
// never blocked beyond a buffered channel send.
func Publish(owner string, msg models.ProgressMessage) {
	mu.Lock()
	defer mu.Unlock()
	for c := range clients {
		if c.owner != owner {
			continue
		}
		select {
		case c.send <- msg:
		default:
			logger.Debugf("dropping progress message for slow listener: owner=%s video=%s", owner, msg.VideoID)
		}
	}
}

// Serve registers conn as a live listener for owner and blocks until the
// connection drops, then unregisters it. A listener only sees messages
// published after registration; nothing is replayed. The channel is
// server-push only, inbound frames are read solely to notice the disconnect.
func Serve(conn *websocket.Conn, owner string) {
	c := &client{
		conn:  conn,
		owner: owner,
		send:  make(chan models.ProgressMessage, sendQueueSize),
	}

	mu.Lock()
	clients[c] = struct{}{}
	mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					// Kicks the read loop below out of its block.
					_ = conn.Close()
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	mu.Lock()
	delete(clients, c)
	mu.Unlock()
	close(done)
	_ = conn.Close()
	logger.Debugf("live listener disconnected: owner=%s", owner)
}

// listenerCount reports registered listeners, for tests.
func listenerCount() int {
	mu.Lock()
	defer mu.Unlock()
	return len(clients)
}
