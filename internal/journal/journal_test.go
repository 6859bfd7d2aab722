/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/Seednode/literature/internal/protocol"
)

func runServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("new nats server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns
}

func TestRecordAndFollow(t *testing.T) {
	ns := runServer(t)

	j, err := Connect(ns.ClientURL(), "test.events")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer j.Close()

	if got := j.Subject("room.7"); got != "test.events.room_7" {
		t.Errorf("subject = %q", got)
	}

	entries := make(chan Entry, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	followed := make(chan error, 1)
	go func() { followed <- j.Follow(ctx, "r1", func(e Entry) { entries <- e }) }()

	events := []protocol.Event{
		{Name: protocol.EventTurnChanged, Payload: protocol.TurnChangedPayload{CurrentTurn: "2"}},
		{Name: protocol.EventCardTransferred, Payload: protocol.CardTransferredPayload{FromPlayer: "2", ToPlayer: "1", Card: "Q of Clubs"}},
	}

	// The subscription is registered asynchronously; republish until the
	// first entry arrives.
	deadline := time.After(5 * time.Second)
	var first Entry
wait:
	for {
		if err := j.Record(ctx, "r1", events[0]); err != nil {
			t.Fatalf("record: %v", err)
		}

		select {
		case first = <-entries:
			break wait
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no entry received")
		}
	}

	if first.Room != "r1" || first.Event != protocol.EventTurnChanged || first.At.IsZero() {
		t.Fatalf("entry = %+v", first)
	}

	// Drain any republished duplicates.
	for len(entries) > 0 {
		<-entries
	}

	if err := j.Record(ctx, "r1", events[1]); err != nil {
		t.Fatalf("record: %v", err)
	}

	var second Entry
	for second.Event != protocol.EventCardTransferred {
		select {
		case second = <-entries:
		case <-time.After(5 * time.Second):
			t.Fatal("second entry not received")
		}
	}

	ev, err := second.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := ev.Payload.(protocol.CardTransferredPayload)
	if !ok || p.Card != "Q of Clubs" || p.ToPlayer != "1" {
		t.Errorf("payload = %#v", ev.Payload)
	}

	cancel()
	if err := <-followed; !errors.Is(err, context.Canceled) {
		t.Errorf("follow err = %v", err)
	}
}

func TestRecordNeedsRoom(t *testing.T) {
	ns := runServer(t)

	j, err := Connect(ns.ClientURL(), "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer j.Close()

	if got := j.Subject("r1"); got != DefaultSubject+".r1" {
		t.Errorf("subject = %q", got)
	}

	err = j.Record(context.Background(), "", protocol.Event{Name: protocol.EventError, Payload: protocol.ErrorPayload{Message: "x"}})
	if !errors.Is(err, ErrNoRoom) {
		t.Errorf("err = %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	if _, err := Connect("nats://127.0.0.1:1", ""); err == nil {
		t.Fatal("connect to closed port succeeded")
	}
}
