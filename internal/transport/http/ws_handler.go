package http

import (
	"encoding/json"
	"net/http"
	"time"

	"daily-trivia-service/internal/app"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler pushes leaderboard updates to connected clients. Clients only
// listen; submissions go through the REST API.
type WSHandler struct {
	service  *app.TriviaService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(service *app.TriviaService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type connectedPayload struct {
	ClientID string `json:"clientId"`
	DayIndex int    `json:"dayIndex"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and streams "leaderboard_update" messages
// until the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	logger := h.logger.With(zap.String("client_id", clientID))
	logger.Debug("ws client connected")

	// Subscribe before reading the snapshot so no update is lost in between.
	updates, cancel := h.service.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					logger.Debug("ws write error", zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard_update", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	greeted := enqueue(send, writerDone, outboundMessage[any]{Type: "connected", Payload: connectedPayload{ClientID: clientID, DayIndex: h.service.DayIndex()}})
	if greeted {
		if lb, err := h.service.Leaderboard(r.Context()); err == nil {
			greeted = enqueue(send, writerDone, outboundMessage[any]{Type: "leaderboard_update", Payload: lb})
		} else {
			logger.Warn("initial leaderboard unavailable", zap.Error(err))
		}
	}
	if !greeted {
		close(closeSignals)
		<-updatesDone
		logger.Debug("ws client lost before greeting")
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

readLoop:
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				continue
			}
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "ping":
			reply = outboundMessage[any]{Type: "pong", Payload: struct{}{}}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		if !enqueue(send, writerDone, reply) {
			break readLoop
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	logger.Debug("ws client disconnected")
}

// enqueue hands msg to the writer. It returns false once the writer is gone.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
