package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
)

// Dispatch handles one decoded inbound event for a connection.
type Dispatch func(ctx context.Context, c Client, ev Event)

// Conn represents ONE browser-tab websocket.
type Conn struct {
	id       string
	ws       *websocket.Conn
	out      chan []byte
	dispatch Dispatch
	onClose  func(Client)

	mu     sync.Mutex
	closed bool
}

func (c *Conn) ID() string { return c.id }

// Send queues an event for the write loop. A slow or closed connection
// never blocks the caller: a full buffer drops the event, a closed
// connection swallows it.
func (c *Conn) Send(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.out <- b:
	default: // channel full – drop rather than stall other connections
	}
	return nil
}

// ----------------------------------------------------------
// private loops
// ----------------------------------------------------------

func (c *Conn) readLoop() {
	defer c.close()

	ctx := context.Background()
	for {
		var ev Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			return // closed
		}
		c.dispatch(ctx, c, ev)
	}
}

func (c *Conn) writeLoop() {
	tick := time.NewTicker(25 * time.Second)
	defer tick.Stop()

	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.ws.WriteMessage(websocket.TextMessage, msg)

		case <-tick.C:
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ----------------------------------------------------------

func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.out)
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose(c)
	}
	_ = c.ws.Close()
}

// ------------------------------------------------------------------
// Helper – called from the HTTP upgrader
// ------------------------------------------------------------------

func NewConn(ws *websocket.Conn, bufferSize int, dispatch Dispatch, onClose func(Client)) *Conn {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	conn := &Conn{
		id:       xid.New().String(),
		ws:       ws,
		out:      make(chan []byte, bufferSize),
		dispatch: dispatch,
		onClose:  onClose,
	}

	go conn.writeLoop()
	go conn.readLoop()

	return conn
}
