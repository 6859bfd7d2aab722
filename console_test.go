/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/declare"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/rules"
	"github.com/Seednode/literature/internal/session"
	"github.com/Seednode/literature/internal/state"
)

var players = []protocol.Player{
	{ID: "1", Name: "Ann", Team: 0},
	{ID: "2", Name: "Bob", Team: 1},
	{ID: "3", Name: "Cat", Team: 0},
}

type fakeTable struct {
	view     state.View
	asks     []rules.Ask
	askErr   error
	selected []int
	assigned map[int]protocol.ID
	byCard   map[cards.Card]protocol.ID
	notices  []state.Notice
	updates  chan struct{}
}

func newFakeTable() *fakeTable {
	return &fakeTable{
		view: state.View{
			Room:    "r1",
			Self:    "1",
			Ready:   true,
			Players: players,
			Started: true,
			Turn:    "1",
		},
		assigned: map[int]protocol.ID{},
		byCard:   map[cards.Card]protocol.ID{},
		updates:  make(chan struct{}),
	}
}

func (f *fakeTable) View(context.Context) (state.View, error) { return f.view, nil }
func (f *fakeTable) Notices(context.Context) ([]state.Notice, error) {
	out := f.notices
	f.notices = nil

	return out, nil
}

func (f *fakeTable) Updates() <-chan struct{} { return f.updates }

func (f *fakeTable) Ask(_ context.Context, a rules.Ask) (cards.Card, error) {
	f.asks = append(f.asks, a)
	if f.askErr != nil {
		return "", f.askErr
	}

	return cards.New(a.Value, a.Suit)
}

func (f *fakeTable) Declaration(context.Context) (session.Declaration, error) {
	return session.Declaration{State: declare.Selecting}, nil
}

func (f *fakeTable) OpenDeclaration(context.Context) error { return nil }

func (f *fakeTable) SelectSet(_ context.Context, set int) error {
	f.selected = append(f.selected, set)

	return nil
}

func (f *fakeTable) Assign(_ context.Context, slot int, id protocol.ID) error {
	f.assigned[slot] = id

	return nil
}

func (f *fakeTable) AssignCard(_ context.Context, c cards.Card, id protocol.ID) error {
	f.byCard[c] = id

	return nil
}

func (f *fakeTable) Unassign(context.Context, int) error { return nil }
func (f *fakeTable) SubmitDeclaration(context.Context) error { return nil }
func (f *fakeTable) CancelDeclaration(context.Context) error { return nil }

func TestParseSet(t *testing.T) {
	tests := []struct {
		in   string
		want int
		err  bool
	}{
		{"1", 0, false},
		{"9", cards.EightsAndJokers, false},
		{"low spades", 0, false},
		{"high Diamonds", 7, false},
		{"9-A of hearts", 5, false},
		{"2-7 clubs", 2, false},
		{"eights", cards.EightsAndJokers, false},
		{"Joker", cards.EightsAndJokers, false},
		{"0", 0, true},
		{"10", 0, true},
		{"low", 0, true},
		{"middle spades", 0, true},
		{"high stars", 0, true},
	}

	for _, tt := range tests {
		got, err := parseSet(strings.Fields(tt.in))
		if (err != nil) != tt.err {
			t.Errorf("parseSet(%q) err = %v", tt.in, err)

			continue
		}
		if !tt.err && got != tt.want {
			t.Errorf("parseSet(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitCard(t *testing.T) {
	tests := []struct {
		in          string
		value, suit string
	}{
		{"Q hearts", "Q", "hearts"},
		{"10 of Spades", "10", "Spades"},
		{"Joker", "Joker", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		v, s := splitCard(strings.Fields(tt.in))
		if v != tt.value || s != tt.suit {
			t.Errorf("splitCard(%q) = %q, %q", tt.in, v, s)
		}
	}
}

func TestResolvePlayer(t *testing.T) {
	if p, ok := resolvePlayer(players, "bob"); !ok || p.ID != "2" {
		t.Errorf("by name: %+v %v", p, ok)
	}
	if p, ok := resolvePlayer(players, "3"); !ok || p.Name != "Cat" {
		t.Errorf("by id: %+v %v", p, ok)
	}
	if _, ok := resolvePlayer(players, "zed"); ok {
		t.Error("resolved an unknown player")
	}
}

func TestConsoleAsk(t *testing.T) {
	f := newFakeTable()
	var out bytes.Buffer
	c := newConsole(f, strings.NewReader(""), &out, "http://example/r1")

	if err := c.exec(context.Background(), "ask bob queen of hearts"); err != nil {
		t.Fatalf("exec: %v", err)
	}

	want := rules.Ask{Target: "2", Value: "queen", Suit: "hearts"}
	if len(f.asks) != 1 || f.asks[0] != want {
		t.Fatalf("asks = %+v", f.asks)
	}
	if !strings.Contains(out.String(), "Asked Bob for the Q of Hearts.") {
		t.Errorf("output = %q", out.String())
	}

	f.askErr = rules.ErrNotYourTurn
	if err := c.exec(context.Background(), "ask 2 3 clubs"); !errors.Is(err, rules.ErrNotYourTurn) {
		t.Errorf("err = %v", err)
	}

	if err := c.exec(context.Background(), "ask bob"); !errors.Is(err, errUsage) {
		t.Errorf("short ask err = %v", err)
	}
}

func TestConsoleDeclarationCommands(t *testing.T) {
	f := newFakeTable()
	var out bytes.Buffer
	c := newConsole(f, strings.NewReader(""), &out, "")
	ctx := context.Background()

	for _, line := range []string{"declare", "set high clubs", "assign 2 cat", "assign K of Clubs ann"} {
		if err := c.exec(ctx, line); err != nil {
			t.Fatalf("%q: %v", line, err)
		}
	}

	if len(f.selected) != 1 || f.selected[0] != 6 {
		t.Errorf("selected = %v", f.selected)
	}
	if f.assigned[1] != "3" {
		t.Errorf("assigned = %v", f.assigned)
	}
	if f.byCard["K of Clubs"] != "1" {
		t.Errorf("by card = %v", f.byCard)
	}

	if err := c.exec(ctx, "set nowhere"); !errors.Is(err, errUnknownSet) {
		t.Errorf("bad set err = %v", err)
	}
	if err := c.exec(ctx, "quit"); !errors.Is(err, errQuit) {
		t.Errorf("quit err = %v", err)
	}
	if err := c.exec(ctx, "dance"); !errors.Is(err, errUsage) {
		t.Errorf("unknown command err = %v", err)
	}
}

func TestConsoleRunStopsAtEOF(t *testing.T) {
	f := newFakeTable()
	var out bytes.Buffer
	c := newConsole(f, strings.NewReader("status\n"), &out, "")

	if err := c.run(context.Background()); !errors.Is(err, errQuit) {
		t.Fatalf("run err = %v", err)
	}
	if !strings.Contains(out.String(), "Room r1: It's your turn!") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConsoleShowsServerRejection(t *testing.T) {
	f := newFakeTable()
	var out bytes.Buffer
	c := newConsole(f, strings.NewReader(""), &out, "")
	ctx := context.Background()

	if err := c.refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	out.Reset()

	f.notices = []state.Notice{{Kind: state.ActionRejected, Title: "Ask Rejected", Message: "Not your turn"}}
	if err := c.refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if got := out.String(); got != "! Ask Rejected: Not your turn\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	if err := c.refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("rejection shown twice: %q", out.String())
	}
}

func TestWriteDeclaration(t *testing.T) {
	slots, _ := cards.SetCards(cards.EightsAndJokers)
	d := session.Declaration{
		State:       declare.Assigning,
		Set:         cards.EightsAndJokers,
		Slots:       slots,
		Assignments: []protocol.ID{"1", "", "3", "3", "1"},
		Teammates:   []protocol.Player{players[0], players[2]},
		Missing:     []cards.Card{slots[1]},
	}

	var out bytes.Buffer
	writeDeclaration(&out, d)

	s := out.String()
	if !strings.Contains(s, "Declaring Eights and Joker:") || !strings.Contains(s, "Cat") {
		t.Errorf("output = %q", s)
	}
	if strings.Contains(s, "submit") {
		t.Error("offered submit with a missing slot")
	}
}

func TestWriteHandGroupsBySet(t *testing.T) {
	var out bytes.Buffer
	writeHand(&out, []cards.Card{"K of Clubs", "2 of Spades", "9 of Clubs", cards.Joker})

	s := out.String()
	low := strings.Index(s, "2-7 of Spades")
	high := strings.Index(s, "9-A of Clubs")
	eights := strings.Index(s, "Eights and Joker")
	if low < 0 || high < low || eights < high {
		t.Errorf("output = %q", s)
	}
	if !strings.Contains(s, "K of Clubs, 9 of Clubs") {
		t.Errorf("set members not kept in hand order: %q", s)
	}
}
