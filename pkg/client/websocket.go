package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maumercado/task-queue-go/internal/events"
)

// EventEnvelope is one frame of the §6 event stream after the initial
// client_id handshake frame.
type EventEnvelope struct {
	Sequence  int64               `json:"sequence"`
	Timestamp time.Time           `json:"timestamp"`
	Event     *events.EventRecord `json:"event"`
}

// SubscribeEvents opens the long-lived WebSocket event stream (§6 "GET
// /queues/me/events") and returns a channel of decoded envelopes plus a
// cancel func that closes the connection. The channel is closed when the
// connection drops or cancel is called.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan *EventEnvelope, func(), error) {
	wsURL := strings.Replace(c.baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/api/v1/queues/me/events"

	header := http.Header{}
	header.Set("Authorization", basicAuthHeader(c.queueName, c.password))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, nil, fmt.Errorf("dial event stream: %w", err)
	}
	if resp != nil {
		defer resp.Body.Close()
	}

	// The first frame is the client_id handshake; drain it so the
	// returned channel carries only event envelopes.
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("read handshake frame: %w", err)
	}
	var handshake struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(data, &handshake); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("decode handshake frame: %w", err)
	}

	out := make(chan *EventEnvelope, 64)
	done := make(chan struct{})
	cancel := func() {
		select {
		case <-done:
		default:
			close(done)
		}
		_ = conn.Close()
	}

	go func() {
		defer close(out)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env EventEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			select {
			case out <- &env:
			case <-done:
				return
			}
		}
	}()

	return out, cancel, nil
}

func basicAuthHeader(user, pass string) string {
	req := &http.Request{Header: http.Header{}}
	req.SetBasicAuth(user, pass)
	return req.Header.Get("Authorization")
}
