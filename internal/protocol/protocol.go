/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol holds the JSON shapes exchanged with the game server,
// both over REST and over the push channel.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Seednode/literature/internal/cards"
)

var ErrUnknownEvent = errors.New("unknown event")

// ID is an entity id in canonical string form. The server sends ids as
// either JSON numbers or strings; both decode to the same ID.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)

	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(canonicalNumber(n))
	}

	return nil
}

// canonicalNumber renders integral numbers without a fraction or exponent,
// so 7, 7.0 and 7e0 name the same id.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}

	f, err := n.Float64()
	if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}

	return n.String()
}

func (id ID) String() string {
	return string(id)
}

// Player is a room member as reported by the server. Some events list
// players without their team; those decode with TeamUnknown set.
type Player struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Team        int    `json:"team"`
	TeamUnknown bool   `json:"-"`
}

func (p *Player) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID   ID     `json:"id"`
		Name string `json:"name"`
		Team *int   `json:"team"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*p = Player{ID: raw.ID, Name: raw.Name}
	if raw.Team == nil {
		p.TeamUnknown = true
	} else {
		p.Team = *raw.Team
	}

	return nil
}

// Scores maps a team index to its points.
type Scores map[int]int

// Clone returns an independent copy of s.
func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}

// Inbound event names.
const (
	EventUpdatePlayers   = "update_players"
	EventHandUpdated     = "hand_updated"
	EventGameStarted     = "game_started"
	EventTurnChanged     = "turn_changed"
	EventGameState       = "game_state"
	EventCardTransferred = "card_transferred"
	EventError           = "error"
	EventSetDeclared     = "set_declared"
)

// Outbound command names.
const (
	CommandAskCard    = "ask_card"
	CommandDeclareSet = "declare_set"
)

// Envelope is a single frame on the push channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound envelope. Payload holds one of the *Payload
// types below, matching Name.
type Event struct {
	Name    string
	Payload any
}

type UpdatePlayersPayload struct {
	Players []Player `json:"players"`
}

type HandUpdatedPayload struct {
	PlayerID ID           `json:"player_id"`
	Hand     []cards.Card `json:"hand"`
}

type GameStartedPayload struct {
	Players     []Player `json:"players"`
	CurrentTurn ID       `json:"current_turn"`
}

type TurnChangedPayload struct {
	CurrentTurn ID `json:"current_turn"`
}

type GameStatePayload struct {
	Started     bool   `json:"started"`
	CurrentTurn ID     `json:"current_turn"`
	Scores      Scores `json:"scores,omitempty"`
}

type CardTransferredPayload struct {
	FromPlayer ID         `json:"from_player"`
	ToPlayer   ID         `json:"to_player"`
	Card       cards.Card `json:"card"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type SetDeclaredPayload struct {
	Scores        Scores `json:"scores"`
	IsValid       bool   `json:"is_valid"`
	DeclaringTeam int    `json:"declaring_team"`
	WinningTeam   *int   `json:"winning_team,omitempty"`
}

// AskCard is the outbound ask_card command.
type AskCard struct {
	AskingPlayerID ID         `json:"asking_player_id"`
	AskedPlayerID  ID         `json:"asked_player_id"`
	Card           cards.Card `json:"card"`
	RoomID         string     `json:"room_id"`
}

// Declaration maps a teammate to the cards assigned to them.
type Declaration map[ID][]cards.Card

// DeclareSet is the outbound declare_set command.
type DeclareSet struct {
	DeclaringPlayerID ID          `json:"declaring_player_id"`
	RoomID            string      `json:"room_id"`
	SetDeclaration    Declaration `json:"set_declaration"`
}

// Decode turns an envelope into a typed Event. Unknown names return an
// error wrapping ErrUnknownEvent.
func Decode(env Envelope) (Event, error) {
	var payload any

	switch env.Event {
	case EventUpdatePlayers:
		payload = &UpdatePlayersPayload{}
	case EventHandUpdated:
		payload = &HandUpdatedPayload{}
	case EventGameStarted:
		payload = &GameStartedPayload{}
	case EventTurnChanged:
		payload = &TurnChangedPayload{}
	case EventGameState:
		payload = &GameStatePayload{}
	case EventCardTransferred:
		payload = &CardTransferredPayload{}
	case EventError:
		payload = &ErrorPayload{}
	case EventSetDeclared:
		payload = &SetDeclaredPayload{}
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return Event{}, fmt.Errorf("decode %s: %w", env.Event, err)
		}
	}

	return Event{Name: env.Event, Payload: deref(payload)}, nil
}

func deref(p any) any {
	switch v := p.(type) {
	case *UpdatePlayersPayload:
		return *v
	case *HandUpdatedPayload:
		return *v
	case *GameStartedPayload:
		return *v
	case *TurnChangedPayload:
		return *v
	case *GameStatePayload:
		return *v
	case *CardTransferredPayload:
		return *v
	case *ErrorPayload:
		return *v
	case *SetDeclaredPayload:
		return *v
	}

	return p
}

// Encode wraps an outbound command in an envelope.
func Encode(name string, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", name, err)
	}

	return Envelope{Event: name, Data: data}, nil
}
