/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/literature/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type testServer struct {
	*httptest.Server
	query    chan map[string]string
	received chan protocol.Envelope
	push     chan protocol.Envelope
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		query:    make(chan map[string]string, 1),
		received: make(chan protocol.Envelope, 8),
		push:     make(chan protocol.Envelope, 8),
	}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.query <- map[string]string{
			"room_id":   r.URL.Query().Get("room_id"),
			"player_id": r.URL.Query().Get("player_id"),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for env := range ts.push {
				if err := conn.WriteJSON(env); err != nil {
					return
				}
			}
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		}()

		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			ts.received <- env
		}
	}))
	t.Cleanup(ts.Close)

	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func open(t *testing.T, ts *testServer) *Channel {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Open(ctx, Options{URL: ts.wsURL(), RoomID: "r1", PlayerID: "7"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestHandshakeParameters(t *testing.T) {
	ts := newTestServer(t)
	open(t, ts)

	select {
	case q := <-ts.query:
		if q["room_id"] != "r1" || q["player_id"] != "7" {
			t.Errorf("handshake query = %v", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestEventsArriveInOrder(t *testing.T) {
	ts := newTestServer(t)
	c := open(t, ts)

	ts.push <- protocol.Envelope{Event: protocol.EventTurnChanged, Data: json.RawMessage(`{"current_turn": 1}`)}
	ts.push <- protocol.Envelope{Event: "unknown_event", Data: json.RawMessage(`{}`)}
	ts.push <- protocol.Envelope{Event: protocol.EventTurnChanged, Data: json.RawMessage(`{"current_turn": "2"}`)}

	want := []protocol.ID{"1", "2"}
	for i, id := range want {
		select {
		case ev := <-c.Events():
			p, ok := ev.Payload.(protocol.TurnChangedPayload)
			if !ok {
				t.Fatalf("event %d payload = %T", i, ev.Payload)
			}
			if p.CurrentTurn != id {
				t.Errorf("event %d turn = %q, want %q", i, p.CurrentTurn, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestCommandsReachServer(t *testing.T) {
	ts := newTestServer(t)
	c := open(t, ts)

	err := c.AskCard(protocol.AskCard{
		AskingPlayerID: "7",
		AskedPlayerID:  "8",
		Card:           "K of Clubs",
		RoomID:         "r1",
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}

	select {
	case env := <-ts.received:
		if env.Event != protocol.CommandAskCard {
			t.Fatalf("event = %q", env.Event)
		}
		var cmd protocol.AskCard
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			t.Fatal(err)
		}
		if cmd.Card != "K of Clubs" || cmd.AskedPlayerID != "8" {
			t.Errorf("command = %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received ask_card")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	c := open(t, ts)

	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if err := c.DeclareSet(protocol.DeclareSet{RoomID: "r1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("send after close err = %v, want ErrClosed", err)
	}

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Error("events channel should be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}

	if c.Err() != nil {
		t.Errorf("local close should not report an error, got %v", c.Err())
	}
}

func TestRemoteCloseReportsError(t *testing.T) {
	ts := newTestServer(t)
	c := open(t, ts)

	close(ts.push)

	select {
	case _, ok := <-c.Events():
		if ok {
			t.Fatal("unexpected event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel never closed")
	}

	if c.Err() == nil {
		t.Error("remote close should report an error")
	}
}
