package http

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL(), nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %v", resp)
	}
}

func TestWebSocketRejectsInvalidTokens(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.register(t, "alice")

	wrongSecret, err := makeJWT("some-other-secret-value", env.cfg.JWT.Audience, env.cfg.JWT.Issuer, alice.ID, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	expired, err := makeJWT(testSecret, env.cfg.JWT.Audience, env.cfg.JWT.Issuer, alice.ID, -time.Minute)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	wrongAudience, err := makeJWT(testSecret, "someone-else", env.cfg.JWT.Issuer, alice.ID, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	unknownUser, err := makeJWT(testSecret, env.cfg.JWT.Audience, env.cfg.JWT.Issuer, alice.ID+100, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}

	for name, token := range map[string]string{
		"wrong secret":   wrongSecret,
		"expired":        expired,
		"wrong audience": wrongAudience,
		"unknown user":   unknownUser,
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			_, resp, err := websocket.Dial(ctx, env.wsURL()+"?token="+token, nil)
			if err == nil {
				t.Fatal("expected dial to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401 response, got %v", resp)
			}
		})
	}
}

func TestWebSocketAcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	token, alice := env.register(t, "alice")
	room := env.room(t, alice)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	subscribe(t, conn, room.ID)
}

func TestWebSocketRejectsNonMemberSubscription(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.register(t, "alice")
	bobToken, _ := env.register(t, "bob")
	room := env.room(t, alice)

	conn := env.dial(t, bobToken)
	send(t, conn, "subscribe", map[string]any{"room_id": room.ID})

	frame := readFrame(t, conn, "reject_subscription")
	if frame["code"] != "not_authorized" {
		t.Errorf("expected not_authorized, got %v", frame["code"])
	}
	if int64(frame["room_id"].(float64)) != room.ID {
		t.Errorf("expected room_id %d, got %v", room.ID, frame["room_id"])
	}
}

func TestWebSocketActionBeforeSubscribe(t *testing.T) {
	env := newTestEnv(t)
	token, alice := env.register(t, "alice")
	room := env.room(t, alice)

	conn := env.dial(t, token)
	send(t, conn, "message_create", map[string]any{"room_id": room.ID, "content": "hi"})

	frame := readFrame(t, conn, "error")
	if frame["code"] != "not_subscribed" {
		t.Errorf("expected not_subscribed, got %v", frame["code"])
	}
}

func TestWebSocketMessageFlow(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, alice := env.register(t, "alice")
	bobToken, bob := env.register(t, "bob")
	room := env.room(t, alice, bob)

	aliceConn := env.dial(t, aliceToken)
	bobConn := env.dial(t, bobToken)
	subscribe(t, aliceConn, room.ID)
	subscribe(t, bobConn, room.ID)

	send(t, aliceConn, "message_create", map[string]any{"room_id": room.ID, "content": "hello bob"})

	msg := readFrame(t, bobConn, "message")
	if msg["content"] != "hello bob" {
		t.Errorf("expected content 'hello bob', got %v", msg["content"])
	}
	user, ok := msg["user"].(map[string]any)
	if !ok || user["username"] != "alice" {
		t.Errorf("expected author alice, got %v", msg["user"])
	}

	note := readFrame(t, aliceConn, "new_message")
	data, ok := note["data"].(map[string]any)
	if !ok || data["preview"] != "hello bob" {
		t.Errorf("expected preview 'hello bob', got %v", note["data"])
	}
	if int64(note["server_id"].(float64)) != room.ID {
		t.Errorf("expected server_id %d, got %v", room.ID, note["server_id"])
	}

	messageID := int64(msg["id"].(float64))
	send(t, bobConn, "reaction_create", map[string]any{"room_id": room.ID, "message_id": messageID, "emoji": "👍"})

	reaction := readFrame(t, aliceConn, "reaction_created")
	if reaction["emoji"] != "👍" {
		t.Errorf("expected 👍, got %v", reaction["emoji"])
	}

	send(t, aliceConn, "message_delete", map[string]any{"room_id": room.ID, "message_id": messageID})
	deleted := readFrame(t, bobConn, "message_deleted")
	if int64(deleted["message_id"].(float64)) != messageID {
		t.Errorf("expected deleted message %d, got %v", messageID, deleted["message_id"])
	}
}

func TestWebSocketClosesOnShutdown(t *testing.T) {
	env := newTestEnv(t)
	token, alice := env.register(t, "alice")
	room := env.room(t, alice)

	conn := env.dial(t, token)
	subscribe(t, conn, room.ID)

	env.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var frame map[string]any
	err := wsjson.Read(ctx, conn, &frame)
	if err == nil {
		t.Fatal("expected connection to close")
	}
	var closeErr websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.StatusGoingAway {
		t.Fatalf("expected going away close, got %v", err)
	}
}
