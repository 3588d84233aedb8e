// Package websocket implements the §6 long-lived event-subscribe route as a
// WebSocket upgrade, generalized from the teacher's hub-and-broadcast
// transport into one connection per subscriber bound directly to
// events.Journal.Subscribe, since each subscriber is already scoped to a
// single queue rather than a global broadcast domain.
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// clientIDEnvelope is the first frame sent on connect (§6 "returns
// {client_id} then streams envelopes").
type clientIDEnvelope struct {
	ClientID string `json:"client_id"`
}

// eventEnvelope is every subsequent frame.
type eventEnvelope struct {
	Sequence  int64              `json:"sequence"`
	Timestamp time.Time          `json:"timestamp"`
	Event     *events.EventRecord `json:"event"`
}

// Client pumps one queue's event stream to one WebSocket connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	events <-chan *events.EventRecord
	cancel func()
}

func newClient(id string, conn *websocket.Conn, ch <-chan *events.EventRecord, cancel func()) *Client {
	return &Client{id: id, conn: conn, events: ch, cancel: cancel}
}

// ReadPump drains (and discards) client frames purely to detect
// disconnects and keep pong deadlines current; the stream is one-way.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug().Err(err).Str("client_id", c.id).Msg("event stream read error")
			}
			return
		}
	}
}

// WritePump sends the client_id envelope, then every journal event as it
// arrives, pinging to keep the connection alive between events.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	if err := c.writeJSON(clientIDEnvelope{ClientID: c.id}); err != nil {
		return
	}

	for {
		select {
		case rec, ok := <-c.events:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeJSON(eventEnvelope{Sequence: rec.Sequence, Timestamp: rec.Timestamp, Event: rec}); err != nil {
				return
			}
			metrics.RecordEventStreamed(string(rec.EntityType))

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Str("client_id", c.id).Msg("failed to encode event envelope")
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
