package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/blob"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
)

const testSecret = "test-secret-0123456789"

type testEnv struct {
	cfg    config.Config
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	hub    *core.Hub
	server *httptest.Server
	cancel context.CancelFunc
}

// newTestEnv starts a full HTTP stack on an in-memory store and blob store.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWT.Secret = testSecret
	cfg.AuthLimit = config.RateLimitConfig{RPS: 100, Burst: 100}
	for _, fn := range mutate {
		fn(&cfg)
	}

	disabledLogger := zerolog.New(nil)

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.Open(blob.Options{InMemory: true, MaxBytes: cfg.Attachments.MaxBytes}, st, &disabledLogger)
	if err != nil {
		t.Fatalf("failed to open blob store: %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})

	reg := prometheus.NewRegistry()
	hub := core.NewHub(st, blobs, core.Options{
		ErrorScope:         core.ErrorScope(cfg.Errors.Scope),
		MaxAttachments:     cfg.Attachments.MaxCount,
		MaxAttachmentBytes: cfg.Attachments.MaxBytes,
	}, metrics.New(reg), &disabledLogger)

	router := NewRouter(Deps{
		Hub:      hub,
		Auth:     authService,
		Store:    st,
		Blobs:    blobs,
		Gatherer: reg,
	}, cfg, &disabledLogger)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{cfg: cfg, store: st, auth: authService, hub: hub, server: ts, cancel: cancel}
}

// register creates a user and returns its token and record.
func (e *testEnv) register(t *testing.T, username string) (string, *store.User) {
	t.Helper()

	token, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	user, err := e.store.GetUserByUsername(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to load %s: %v", username, err)
	}
	return token, user
}

// room creates a room owned by owner with the given extra members.
func (e *testEnv) room(t *testing.T, owner *store.User, members ...*store.User) *store.Room {
	t.Helper()

	ctx := context.Background()
	room, err := e.store.CreateRoom(ctx, "general", "", owner.ID)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}
	for _, m := range members {
		if err := e.store.AddMember(ctx, m.ID, room.ID); err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
	}
	return room
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.server.URL, "http", "ws", 1) + "/ws"
}

// dial opens an authenticated websocket connection.
func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, e.wsURL()+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// do sends a request with an optional bearer token.
func (e *testEnv) do(t *testing.T, method, path, token, contentType string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, map[string]any{"type": typ, "data": json.RawMessage(raw)}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readFrame reads frames until one of type typ arrives.
func readFrame(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("waiting for %s frame: %v", typ, err)
		}
		if frame["type"] == typ {
			return frame
		}
	}
}

func subscribe(t *testing.T, conn *websocket.Conn, roomID int64) {
	t.Helper()

	send(t, conn, "subscribe", map[string]any{"room_id": roomID})
	frame := readFrame(t, conn, "confirm_subscription")
	if int64(frame["room_id"].(float64)) != roomID {
		t.Fatalf("confirmed room %v, want %d", frame["room_id"], roomID)
	}
}

func makeJWT(secret, aud, iss string, userID int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
