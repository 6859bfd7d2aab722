/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seednode/literature/internal/journal"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/session"
	"github.com/Seednode/literature/internal/state"
)

type fakeViewer struct {
	view state.View
	err  error
}

func (f fakeViewer) View(context.Context) (state.View, error) { return f.view, f.err }

func statusServer(t *testing.T, v viewer) *httptest.Server {
	t.Helper()

	cfg := &Config{profile: true}
	srv := httptest.NewServer(newStatusRouter(cfg, v, "http://game.example/r1", make(chan error, 8)))
	t.Cleanup(srv.Close)

	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp, body
}

func TestStatusServer(t *testing.T) {
	view := state.View{Room: "r1", Self: "1", Ready: true, Started: true, Turn: "1", Scores: protocol.Scores{0: 2}}
	srv := statusServer(t, fakeViewer{view: view})

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/healthz", http.StatusOK, "text/plain; charset=utf-8"},
		{"/version", http.StatusOK, "text/plain; charset=utf-8"},
		{"/state", http.StatusOK, "application/json"},
		{"/qr", http.StatusOK, "image/png"},
		{"/pprof/cmdline", http.StatusOK, ""},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		resp, _ := get(t, srv.URL+tt.path)
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status %d, want %d", tt.path, resp.StatusCode, tt.status)
		}
		if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
			t.Errorf("%s: content type %q", tt.path, resp.Header.Get("Content-Type"))
		}
	}

	_, body := get(t, srv.URL+"/state")

	var got struct {
		Room   string `json:"room"`
		Banner string `json:"banner"`
		MyTurn bool   `json:"my_turn"`
		Scores map[string]int
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if got.Room != "r1" || got.Banner != "It's your turn!" || !got.MyTurn || got.Scores["0"] != 2 {
		t.Errorf("state = %+v", got)
	}

	_, png := get(t, srv.URL+"/qr")
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("qr is not a png")
	}
}

func TestStatusServerStoppedSession(t *testing.T) {
	srv := statusServer(t, fakeViewer{err: session.ErrStopped})

	resp, _ := get(t, srv.URL+"/state")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := map[int64]string{
		0:         "0 B",
		999:       "999 B",
		1500:      "1.5 kB",
		2_000_000: "2.0 MB",
	}

	for in, want := range tests {
		if got := humanReadableSize(in); got != want {
			t.Errorf("humanReadableSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := &Config{server: "https://game.example/api/", wsPath: "/ws", timeout: time.Second, pendingTimeout: time.Second}

	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := cfg.wsURL(); got != "wss://game.example/api/ws" {
		t.Errorf("wsURL = %q", got)
	}
	if got := cfg.invite("a b"); got != "https://game.example/api/a%20b" {
		t.Errorf("invite = %q", got)
	}

	cfg.inviteBase = "https://play.example"
	if got := cfg.invite("r1"); got != "https://play.example/r1" {
		t.Errorf("invite with base = %q", got)
	}

	bad := []*Config{
		{server: "ftp://x", timeout: time.Second, pendingTimeout: time.Second},
		{server: "http://x", port: 70000, timeout: time.Second, pendingTimeout: time.Second},
		{server: "http://x", pendingTimeout: time.Second},
	}
	for _, c := range bad {
		if err := c.validate(); err == nil {
			t.Errorf("validate(%+v) passed", c)
		}
	}
}

func TestSummarize(t *testing.T) {
	won := 1
	tests := []struct {
		ev   protocol.Event
		want string
	}{
		{protocol.Event{Name: protocol.EventTurnChanged, Payload: protocol.TurnChangedPayload{CurrentTurn: "4"}}, "turn: 4"},
		{protocol.Event{Name: protocol.EventCardTransferred, Payload: protocol.CardTransferredPayload{FromPlayer: "1", ToPlayer: "2", Card: "Q of Clubs"}}, "2 took the Q of Clubs from 1"},
		{protocol.Event{Name: protocol.EventSetDeclared, Payload: protocol.SetDeclaredPayload{Scores: protocol.Scores{1: 5}, DeclaringTeam: 1, WinningTeam: &won}}, "team 1 misdeclared a set, scores map[1:5], team 1 wins"},
	}

	for _, tt := range tests {
		env, err := protocol.Encode(tt.ev.Name, tt.ev.Payload)
		if err != nil {
			t.Fatal(err)
		}

		got := summarize(journal.Entry{Room: "r1", Event: env.Event, Data: env.Data})
		if got != tt.want {
			t.Errorf("summarize(%s) = %q, want %q", tt.ev.Name, got, tt.want)
		}
	}

	if got := summarize(journal.Entry{Event: "mystery"}); got != "mystery (undecodable)" {
		t.Errorf("unknown event = %q", got)
	}
}

func TestExplain(t *testing.T) {
	if got := explain(errors.New("plain")); got != "plain" {
		t.Errorf("explain = %q", got)
	}
}
