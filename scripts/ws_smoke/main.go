package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "JWT issued by /api/login")
	room := flag.Int64("room", 1, "room id to subscribe to")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("token is required (-token or WIRECHAT_TOKEN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeSubscribe, proto.SubscribeData{RoomID: *room}); err != nil {
		return err
	}

	for {
		var frame map[string]json.RawMessage
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var typ string
		_ = json.Unmarshal(frame["type"], &typ)
		fmt.Printf("Received: type=%s\n", typ)

		switch typ {
		case proto.OutboundTypeConfirmSubscription:
			if err := send("message_create", map[string]any{"room_id": *room, "content": *text}); err != nil {
				return err
			}
		case proto.OutboundTypeRejectSubscription, proto.OutboundTypeError:
			var e struct {
				Reason  string `json:"reason"`
				Message string `json:"message"`
				Code    string `json:"code"`
			}
			_ = json.Unmarshal(mustMarshal(frame), &e)
			return fmt.Errorf("%s: code=%s %s%s", typ, e.Code, e.Reason, e.Message)
		case proto.OutboundTypeMessage:
			var msg proto.Message
			if err := json.Unmarshal(mustMarshal(frame), &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: room=%d user=%s content=%q at=%s\n", msg.RoomID, msg.User.Username, msg.Content, msg.CreatedAt)
			return nil
		default:
			// keep looping for message
		}
	}
}

func mustMarshal(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
