/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package state is the client's single source of truth for a room: roster,
// teams, hand, turn, scores and the error slot. It is changed only by the
// initial snapshot and by push events, and is owned by a single goroutine.
package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/api"
	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/declare"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/rules"
)

// Store is not safe for concurrent use.
type Store struct {
	room string
	self protocol.ID

	ready  bool
	buffer []protocol.Event

	players []protocol.Player
	teams   map[int][]protocol.Player
	hand    []cards.Card
	team    int
	turn    protocol.ID
	started bool
	scores  protocol.Scores

	gameOver    bool
	winningTeam *int

	err       string
	notices   []Notice
	pending   []PendingAction
	rollbacks []declare.Draft
}

// New returns an empty store for self in room. Events applied before the
// snapshot are held back until ApplySnapshot.
func New(room string, self protocol.ID) *Store {
	return &Store{
		room:   room,
		self:   self,
		teams:  map[int][]protocol.Player{},
		scores: protocol.Scores{},
	}
}

// Ready reports whether the snapshot has been applied.
func (s *Store) Ready() bool {
	return s.ready
}

// ApplySnapshot commits the initial room state, regroups teams, and replays
// any events that arrived while the snapshot was in flight.
func (s *Store) ApplySnapshot(snap api.Snapshot) {
	s.hand = append([]cards.Card(nil), snap.Hand...)
	s.team = snap.Team
	s.players = s.withTeams(snap.Players)
	s.turn = snap.Turn.CurrentTurn
	s.started = snap.Turn.Started
	s.scores = snap.Turn.Scores.Clone()
	s.regroup()
	s.ready = true

	buffered := s.buffer
	s.buffer = nil

	if len(buffered) > 0 {
		log.Debug().Str("room", s.room).Int("events", len(buffered)).Msg("STATE: Replaying buffered events")
	}

	for _, ev := range buffered {
		s.apply(ev)
	}
}

// Apply runs the transition for one inbound event.
func (s *Store) Apply(ev protocol.Event) {
	if !s.ready {
		s.buffer = append(s.buffer, ev)

		return
	}

	s.apply(ev)
}

func (s *Store) apply(ev protocol.Event) {
	switch p := ev.Payload.(type) {
	case protocol.UpdatePlayersPayload:
		s.players = s.withTeams(p.Players)

	case protocol.HandUpdatedPayload:
		if p.PlayerID == s.self {
			s.hand = append([]cards.Card(nil), p.Hand...)
		}

	case protocol.GameStartedPayload:
		s.started = true
		s.turn = p.CurrentTurn
		if p.Players != nil {
			s.players = s.withTeams(p.Players)
		}
		s.regroup()

	case protocol.TurnChangedPayload:
		s.turn = p.CurrentTurn
		s.settle(PendingAsk, func(PendingAction) bool { return true })

	case protocol.GameStatePayload:
		s.started = p.Started
		s.turn = p.CurrentTurn
		if p.Scores != nil {
			s.scores = p.Scores.Clone()
		}

	case protocol.CardTransferredPayload:
		s.transfer(p)

	case protocol.ErrorPayload:
		s.err = p.Message
		s.reject(p.Message)

	case protocol.SetDeclaredPayload:
		s.declared(p)

	default:
		log.Warn().Str("room", s.room).Str("event", ev.Name).Msg("STATE: Ignored event")
	}
}

// withTeams copies roster, filling in any team the server left out from the
// current roster. Our own team is always known from the snapshot. Players
// seen for the first time without a team stay TeamUnknown.
func (s *Store) withTeams(roster []protocol.Player) []protocol.Player {
	known := make(map[protocol.ID]int, len(s.players)+1)
	for _, p := range s.players {
		if !p.TeamUnknown {
			known[p.ID] = p.Team
		}
	}
	known[s.self] = s.team

	out := make([]protocol.Player, len(roster))
	for i, p := range roster {
		if team, ok := known[p.ID]; ok && p.TeamUnknown {
			p.Team = team
			p.TeamUnknown = false
		}
		out[i] = p
	}

	return out
}

func (s *Store) regroup() {
	teams := make(map[int][]protocol.Player)
	for _, p := range s.players {
		if p.TeamUnknown {
			continue
		}
		teams[p.Team] = append(teams[p.Team], p)
	}
	s.teams = teams
}

func (s *Store) transfer(p protocol.CardTransferredPayload) {
	switch s.self {
	case p.FromPlayer:
		if i := index(s.hand, p.Card); i >= 0 {
			s.hand = append(s.hand[:i:i], s.hand[i+1:]...)
		}
		s.notify(CardLost, "Card Stolen!", "Your "+p.Card.String()+" was taken by another player.")

	case p.ToPlayer:
		if index(s.hand, p.Card) < 0 {
			s.hand = append(s.hand, p.Card)
		}
		s.notify(CardGained, "Card Stolen Successfully!", "You successfully stole the "+p.Card.String()+".")
		s.settle(PendingAsk, func(a PendingAction) bool { return a.Card == p.Card })
	}
}

func (s *Store) declared(p protocol.SetDeclaredPayload) {
	s.scores = p.Scores.Clone()

	ours := p.DeclaringTeam == s.team
	switch {
	case ours && p.IsValid:
		s.notify(SetDeclared, "Set Declared!", "Your team declared the set correctly.")
	case ours:
		s.notify(Misdeclared, "Misdeclaration", "Your team misdeclared the set. The opponents gain a point.")
	case p.IsValid:
		s.notify(OpponentDeclared, "Set Lost", "The opponents declared a set.")
	default:
		s.notify(OpponentMisdeclared, "Opponent Misdeclared", "The opponents misdeclared a set, you gained a point.")
	}

	if ours {
		s.settle(PendingDeclare, func(PendingAction) bool { return true })
	}

	if p.WinningTeam != nil {
		won := *p.WinningTeam
		s.gameOver = true
		s.winningTeam = &won

		if won == s.team {
			s.notify(GameOver, "Game Over", "Your team wins!")
		} else {
			s.notify(GameOver, "Game Over", "The opponents win.")
		}
	}
}

func index(hand []cards.Card, card cards.Card) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}

	return -1
}

// Fail sets the error slot after a local validation failure.
func (s *Store) Fail(message string) {
	s.err = message
}

// Clear empties the error slot after a successful local action.
func (s *Store) Clear() {
	s.err = ""
}

// Table returns the state the action checks run against.
func (s *Store) Table() rules.Table {
	return rules.Table{
		Self:     s.self,
		Team:     s.team,
		Started:  s.started,
		GameOver: s.gameOver,
		Turn:     s.turn,
		Hand:     append([]cards.Card(nil), s.hand...),
		Players:  append([]protocol.Player(nil), s.players...),
	}
}

// Teammates returns the roster filtered to the local player's team.
func (s *Store) Teammates() []protocol.Player {
	return rules.Teammates(s.players, s.team)
}

// View is an immutable copy of the store for rendering.
type View struct {
	Room        string                    `json:"room"`
	Self        protocol.ID               `json:"self"`
	Ready       bool                      `json:"ready"`
	Players     []protocol.Player         `json:"players"`
	Teams       map[int][]protocol.Player `json:"teams"`
	Hand        []cards.Card              `json:"hand"`
	Team        int                       `json:"team"`
	Turn        protocol.ID               `json:"turn,omitempty"`
	Started     bool                      `json:"started"`
	Scores      protocol.Scores           `json:"scores"`
	GameOver    bool                      `json:"game_over"`
	WinningTeam *int                      `json:"winning_team,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Pending     int                       `json:"pending"`
}

// View copies the current state.
func (s *Store) View() View {
	teams := make(map[int][]protocol.Player, len(s.teams))
	for k, v := range s.teams {
		teams[k] = append([]protocol.Player(nil), v...)
	}

	var won *int
	if s.winningTeam != nil {
		w := *s.winningTeam
		won = &w
	}

	return View{
		Room:        s.room,
		Self:        s.self,
		Ready:       s.ready,
		Players:     append([]protocol.Player(nil), s.players...),
		Teams:       teams,
		Hand:        append([]cards.Card(nil), s.hand...),
		Team:        s.team,
		Turn:        s.turn,
		Started:     s.started,
		Scores:      s.scores.Clone(),
		GameOver:    s.gameOver,
		WinningTeam: won,
		Error:       s.err,
		Pending:     len(s.pending),
	}
}

// MyTurn reports whether the local player holds the turn.
func (v View) MyTurn() bool {
	return v.Started && !v.GameOver && v.Turn != "" && v.Turn == v.Self
}

// TurnBanner is the headline shown above the table.
func (v View) TurnBanner() string {
	switch {
	case v.GameOver:
		return "Game over"
	case !v.Started:
		return "Waiting for players"
	case v.MyTurn():
		return "It's your turn!"
	}

	if p, ok := rules.Find(v.Players, v.Turn); ok {
		return p.Name + "'s turn"
	}

	return "Unknown's turn"
}

// pending actions

// PendingKind identifies an outbound command awaiting its outcome.
type PendingKind int

const (
	PendingAsk PendingKind = iota
	PendingDeclare
)

func (k PendingKind) String() string {
	if k == PendingDeclare {
		return "declaration"
	}

	return "ask"
}

// PendingAction is a sent command whose effect has not yet been confirmed
// by the server.
type PendingAction struct {
	ID       uuid.UUID
	Kind     PendingKind
	Card     cards.Card
	Target   protocol.ID
	Draft    declare.Draft
	Deadline time.Time
}

// Track records a sent command. The returned id tags it until it settles.
func (s *Store) Track(a PendingAction) uuid.UUID {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.pending = append(s.pending, a)

	log.Debug().Str("room", s.room).Str("pending", a.ID.String()).Str("kind", a.Kind.String()).Msg("STATE: Tracking")

	return a.ID
}

// Pending returns the unsettled actions, oldest first.
func (s *Store) Pending() []PendingAction {
	return append([]PendingAction(nil), s.pending...)
}

func (s *Store) settle(kind PendingKind, match func(PendingAction) bool) {
	for i, a := range s.pending {
		if a.Kind == kind && match(a) {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			log.Debug().Str("room", s.room).Str("pending", a.ID.String()).Msg("STATE: Settled")

			return
		}
	}
}

// reject drops the oldest pending action after a server error and tells the
// player. A rejected declaration is handed back for restoring.
func (s *Store) reject(message string) {
	if len(s.pending) == 0 {
		s.notify(ActionRejected, "Error", message)

		return
	}

	a := s.pending[0]
	s.pending = s.pending[1:]

	log.Debug().Str("room", s.room).Str("pending", a.ID.String()).Str("reason", message).Msg("STATE: Rejected")

	switch a.Kind {
	case PendingDeclare:
		s.rollbacks = append(s.rollbacks, a.Draft)
		s.notify(ActionRejected, "Declaration Rejected", message)
	default:
		s.notify(ActionRejected, "Ask Rejected", message)
	}
}

// Expire drops actions past their deadline.
func (s *Store) Expire(now time.Time) {
	kept := s.pending[:0]
	for _, a := range s.pending {
		if now.Before(a.Deadline) {
			kept = append(kept, a)

			continue
		}

		log.Warn().Str("room", s.room).Str("pending", a.ID.String()).Str("kind", a.Kind.String()).Msg("STATE: Timed out")

		if a.Kind == PendingDeclare {
			s.rollbacks = append(s.rollbacks, a.Draft)
			s.notify(ActionTimedOut, "No Response", "The server did not answer your declaration.")
		} else {
			s.notify(ActionTimedOut, "No Response", "The server did not answer your ask for the "+a.Card.String()+".")
		}
	}
	s.pending = kept
}

// Rollbacks drains declaration drafts that should be reopened.
func (s *Store) Rollbacks() []declare.Draft {
	out := s.rollbacks
	s.rollbacks = nil

	return out
}
