package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/logger"
	"github.com/maumercado/task-queue-go/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades the §6 event-subscribe route to a WebSocket connection.
type Handler struct {
	journal *events.Journal
}

func NewHandler(j *events.Journal) *Handler {
	return &Handler{journal: j}
}

// ServeEvents handles GET /api/v1/queues/me/events.
func (h *Handler) ServeEvents(w http.ResponseWriter, r *http.Request) {
	q := apimiddleware.QueueFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to upgrade event stream connection")
		return
	}

	clientID, ch, cancel := h.journal.Subscribe(q.QueueID)
	client := newClient(clientID, conn, ch, cancel)

	metrics.IncWebSocketConnections()
	defer metrics.DecWebSocketConnections()

	go client.WritePump()
	client.ReadPump()
}
