package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/renalworks/ckd-risk-engine/internal/domain"
)

const writeWait = 5 * time.Second

// AlertEvent is one message on the alert stream.
type AlertEvent struct {
	PatientID  string       `json:"patient_id"`
	ReportID   string       `json:"report_id"`
	EmittedAt  time.Time    `json:"emitted_at"`
	Alert      domain.Alert `json:"alert"`
}

// AlertHub fans critical evaluation alerts out to websocket subscribers.
// Slow or dead subscribers are dropped rather than allowed to block
// evaluations.
type AlertHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      *logrus.Logger
	closed   bool
}

// NewAlertHub creates an empty hub.
func NewAlertHub(logger *logrus.Logger) *AlertHub {
	return &AlertHub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

// HandleStream upgrades the request to a websocket and subscribes it to the
// alert feed until the peer disconnects.
func (h *AlertHub) HandleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.WithField("subscribers", count).Debug("Alert stream subscriber connected")

	// Reader loop exists only to observe the close handshake.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastCritical publishes the report's CRITICAL alerts to all
// subscribers.
func (h *AlertHub) BroadcastCritical(report *domain.ComprehensiveReport) {
	for _, alert := range report.CriticalAlerts {
		if alert.Severity != domain.SeverityCritical {
			continue
		}

		h.broadcast(AlertEvent{
			PatientID: report.PatientSummary.PatientID,
			ReportID:  report.ReportID,
			EmittedAt: time.Now().UTC(),
			Alert:     alert,
		})
	}
}

func (h *AlertHub) broadcast(event AlertEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
			h.log.WithError(err).Debug("Dropped alert stream subscriber")
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *AlertHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *AlertHub) remove(conn *websocket.Conn) {
	conn.Close()
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Close disconnects all subscribers and rejects new ones.
func (h *AlertHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}
