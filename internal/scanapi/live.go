package scanapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vinscan/vinscan/internal/dto"
	"github.com/vinscan/vinscan/internal/scan"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	send chan dto.LiveEvent
}

// Hub fans accepted frames and consensus updates out to websocket
// subscribers, keyed by device. It implements scan.Notifier; publishing
// never blocks the scan path, slow subscribers lose events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		logger:      logger.With("component", "live-hub"),
	}
}

func (h *Hub) FrameAccepted(deviceID string, f scan.Frame) {
	frame := dto.FromFrame(f)
	h.publish(deviceID, dto.LiveEvent{
		Type:      "frame",
		DeviceID:  deviceID,
		Frame:     &frame,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) ConsensusUpdated(deviceID string, c scan.ConsensusResult) {
	cons := dto.FromConsensus(c)
	h.publish(deviceID, dto.LiveEvent{
		Type:      "consensus",
		DeviceID:  deviceID,
		Consensus: &cons,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Hub) publish(deviceID string, event dto.LiveEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[deviceID] {
		select {
		case sub.send <- event:
		default:
			h.logger.Debug("live subscriber lagging, event dropped", "device_id", deviceID)
		}
	}
}

func (h *Hub) subscribe(deviceID string) *subscriber {
	sub := &subscriber{send: make(chan dto.LiveEvent, sendBufferSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[deviceID] == nil {
		h.subscribers[deviceID] = make(map[*subscriber]struct{})
	}
	h.subscribers[deviceID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(deviceID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers[deviceID], sub)
	if len(h.subscribers[deviceID]) == 0 {
		delete(h.subscribers, deviceID)
	}
}

// SubscriberCount reports live connections for one device.
func (h *Hub) SubscriberCount(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[deviceID])
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (h *Hub) HandleConnection(c echo.Context) error {
	deviceID := c.Param("id")
	if deviceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "device id is required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sub := h.subscribe(deviceID)
	defer h.unsubscribe(deviceID, sub)
	defer ws.Close()

	done := make(chan struct{})
	go h.readLoop(ws, done)
	h.writeLoop(ws, sub, done)
	return nil
}

// readLoop drains client messages so pong handling works, and signals when
// the connection drops.
func (h *Hub) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(ws *websocket.Conn, sub *subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event := <-sub.send:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
