package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jsmcel/guideitor/internal/domain"
	"github.com/jsmcel/guideitor/internal/service"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var errUnknownEventType = errors.New("unknown event type: expected location, playback, mode or select")

type StreamHandler struct {
	svc      *service.SessionService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewStreamHandler(svc *service.SessionService, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The audio guide runs as a mobile web app on museum wifi;
			// origins are not a stable trust boundary here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// streamEvent is one inbound message on the session socket.
type streamEvent struct {
	Type       string  `json:"type"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	IsPlaying  bool    `json:"is_playing,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	LandmarkID string  `json:"landmark_id,omitempty"`
}

type streamError struct {
	Error string `json:"error"`
}

// Stream upgrades to a WebSocket carrying session events inbound and
// activation decisions outbound.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	decisions, cancel, err := h.svc.Subscribe(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}

	// The connection has a single writer: writeLoop. readLoop hands error
	// replies over on errs instead of writing to conn itself, since gorilla
	// connections do not support concurrent writers.
	errs := make(chan streamError, 8)
	go h.readLoop(conn, sessionID, cancel, errs)
	h.writeLoop(conn, decisions, errs)
}

func (h *StreamHandler) readLoop(conn *websocket.Conn, sessionID string, cancel func(), errs chan<- streamError) {
	defer func() {
		cancel()
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev streamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("session_id", sessionID), zap.Error(err))
			}
			return
		}

		ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := h.dispatch(ctx, sessionID, ev)
		ctxCancel()
		if err != nil {
			select {
			case errs <- streamError{Error: err.Error()}:
			default:
				// A client flooding bad events faster than they can be
				// answered just loses the extra replies.
			}
		}
	}
}

func (h *StreamHandler) dispatch(ctx context.Context, sessionID string, ev streamEvent) error {
	switch ev.Type {
	case "location":
		_, err := h.svc.PostLocation(ctx, sessionID, domain.Coordinates{
			Latitude:  ev.Latitude,
			Longitude: ev.Longitude,
		})
		return err
	case "playback":
		_, err := h.svc.PostPlayback(ctx, sessionID, ev.IsPlaying)
		return err
	case "mode":
		return h.svc.PostMode(ctx, sessionID, domain.Mode(ev.Mode))
	case "select":
		_, err := h.svc.PostSelect(ctx, sessionID, ev.LandmarkID)
		return err
	default:
		return errUnknownEventType
	}
}

func (h *StreamHandler) writeLoop(conn *websocket.Conn, decisions <-chan domain.ActivationDecision, errs <-chan streamError) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case decision, ok := <-decisions:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(map[string]any{"decision": decision}); err != nil {
				return
			}
		case reply := <-errs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
