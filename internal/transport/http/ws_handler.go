package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const writeTimeout = 5 * time.Second

var errServerClosing = errors.New("server closing")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	cfg  config.RealtimeConfig
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg config.RealtimeConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		stdhttp.Error(w, "missing token", stdhttp.StatusUnauthorized)
		return
	}
	user, err := h.auth.ResolveUser(ctx, token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth failed")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString(), user.ID, user.Username, h.cfg.EventBuffer)
	client.Limiter = newActionLimiter(h.cfg)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Info().Str("client_id", client.ID).Int64("user_id", user.ID).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	if errors.Is(err, errServerClosing) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	cancel() // stop the other goroutine
	<-errCh

	if !expectedClose(err) {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	}
	h.log.Info().Str("client_id", client.ID).Int64("user_id", user.ID).Msg("ws disconnected")
	conn.Close(websocket.StatusNormalClosure, "closing")
}

// expectedClose reports whether err ends a connection in an ordinary way.
func expectedClose(err error) bool {
	if err == nil || errors.Is(err, errServerClosing) || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypeSubscribe:
			roomID := decodeSubscribe(inbound.Data)
			if err := h.hub.Subscribe(ctx, client, roomID); err != nil {
				h.log.Debug().Err(err).Str("client_id", client.ID).Int64("room_id", roomID).Msg("subscribe rejected")
			}
		case proto.InboundTypeUnsubscribe:
			h.hub.Unsubscribe(client)
		default:
			h.hub.Dispatch(ctx, client, inbound.Type, inbound.Data)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := h.write(ctx, conn, event); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return errServerClosing
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, event *core.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, outboundFromEvent(event))
}

// decodeSubscribe reads the room id from an object or a string-encoded object.
// Anything unreadable yields zero, which the hub rejects as an unknown room.
func decodeSubscribe(raw json.RawMessage) int64 {
	var data proto.SubscribeData
	if err := json.Unmarshal(raw, &data); err == nil {
		return data.RoomID
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return 0
	}
	if err := json.Unmarshal([]byte(encoded), &data); err != nil {
		return 0
	}
	return data.RoomID
}
