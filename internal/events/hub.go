package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/maumercado/task-queue-go/internal/logger"
)

const subscriberBufferSize = 64

// Hub is the in-memory, per-queue subscriber registry backing Journal's
// live fan-out, generalized from the teacher's websocket.Hub (type-keyed
// broadcast across all clients) into a per-queue subscriber map so one
// queue's backlog cannot affect another's delivery (§5 "Shared
// resources").
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *EventRecord
}

func newHub() *Hub {
	return &Hub{subscribers: make(map[string]map[string]chan *EventRecord)}
}

func (hb *Hub) subscribe(queueID string) (clientID string, ch <-chan *EventRecord, cancel func()) {
	clientID = uuid.New().String()
	buf := make(chan *EventRecord, subscriberBufferSize)

	hb.mu.Lock()
	if hb.subscribers[queueID] == nil {
		hb.subscribers[queueID] = make(map[string]chan *EventRecord)
	}
	hb.subscribers[queueID][clientID] = buf
	hb.mu.Unlock()

	cancel = func() {
		hb.mu.Lock()
		defer hb.mu.Unlock()
		if subs, ok := hb.subscribers[queueID]; ok {
			if c, ok := subs[clientID]; ok {
				close(c)
				delete(subs, clientID)
			}
		}
	}

	return clientID, buf, cancel
}

// publish fans rec out to every live subscriber of queueID. A subscriber
// whose buffer is full is dropped rather than allowed to stall the
// transition that produced rec (§9 "Event fan-out"); it must re-subscribe
// with since_sequence to resync.
func (hb *Hub) publish(queueID string, rec *EventRecord) {
	hb.mu.Lock()
	defer hb.mu.Unlock()

	subs := hb.subscribers[queueID]
	for clientID, ch := range subs {
		select {
		case ch <- rec:
		default:
			logger.Warn().
				Str("queue_id", queueID).
				Str("client_id", clientID).
				Msg("subscriber buffer full, dropping slow client")
			close(ch)
			delete(subs, clientID)
		}
	}
}

// SubscriberCount reports how many live subscribers a queue currently has.
func (hb *Hub) SubscriberCount(queueID string) int {
	hb.mu.RLock()
	defer hb.mu.RUnlock()
	return len(hb.subscribers[queueID])
}
