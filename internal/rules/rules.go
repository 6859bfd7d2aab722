/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package rules holds the local pre-checks run before a command is sent.
// They mirror the server's checks and are never more permissive; the server
// stays authoritative.
package rules

import (
	"errors"
	"fmt"

	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/protocol"
)

// Messages are shown to the player verbatim and follow the server's wording.
var (
	ErrIncomplete            = errors.New("Select a player, value and suit before asking")
	ErrUnknownCard           = errors.New("That is not a card in this deck")
	ErrNotStarted            = errors.New("The game has not started")
	ErrNotYourTurn           = errors.New("Not your turn")
	ErrNotOpponent           = errors.New("You can only ask players on the opposing team")
	ErrAlreadyHave           = errors.New("You cannot ask for a card you already have")
	ErrNoCardInSet           = errors.New("You must have a card in the set you are asking for")
	ErrDeclarationIncomplete = errors.New("Every card in the set must be assigned to a teammate")
	ErrNotTeammate           = errors.New("Cards can only be assigned to your teammates")
	ErrGameOver              = errors.New("The game is over")
)

// Table is the slice of room state the checks need.
type Table struct {
	Self     protocol.ID
	Team     int
	Started  bool
	GameOver bool
	Turn     protocol.ID
	Hand     []cards.Card
	Players  []protocol.Player
}

// Ask is a user's selection for an ask_card command.
type Ask struct {
	Target protocol.ID
	Value  string
	Suit   string
}

// ValidateAsk returns the card to request, or the first rule it breaks.
func ValidateAsk(t Table, a Ask) (cards.Card, error) {
	if a.Target == "" || a.Value == "" || (a.Suit == "" && !isJoker(a.Value)) {
		return "", ErrIncomplete
	}

	card, err := askedCard(a)
	if err != nil {
		return "", err
	}

	switch {
	case t.GameOver:
		return "", ErrGameOver
	case !t.Started:
		return "", ErrNotStarted
	case t.Turn != t.Self:
		return "", ErrNotYourTurn
	}

	target, ok := Find(t.Players, a.Target)
	if !ok || target.TeamUnknown || target.Team == t.Team || target.ID == t.Self {
		return "", ErrNotOpponent
	}

	if Holds(t.Hand, card) {
		return "", ErrAlreadyHave
	}

	if !HoldsSet(t.Hand, card) {
		return "", ErrNoCardInSet
	}

	return card, nil
}

// The Joker has no suit, so any suit selection is ignored for it.
func isJoker(value string) bool {
	v, err := cards.Parse(value)

	return err == nil && v == cards.Joker
}

func askedCard(a Ask) (cards.Card, error) {
	if isJoker(a.Value) {
		return cards.Joker, nil
	}

	card, err := cards.New(a.Value, a.Suit)
	if err != nil {
		return "", fmt.Errorf("%w: %s of %s", ErrUnknownCard, a.Value, a.Suit)
	}

	return card, nil
}

// Holds reports whether hand contains card.
func Holds(hand []cards.Card, card cards.Card) bool {
	for _, c := range hand {
		if c == card {
			return true
		}
	}

	return false
}

// HoldsSet reports whether hand contains any card from card's set.
func HoldsSet(hand []cards.Card, card cards.Card) bool {
	for _, c := range hand {
		if cards.SameSet(c, card) {
			return true
		}
	}

	return false
}

// Find looks a player up by id.
func Find(players []protocol.Player, id protocol.ID) (protocol.Player, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}

	return protocol.Player{}, false
}

// Teammates returns the players on team, in roster order. The local player
// is included: a declaration may assign cards to oneself. Players whose team
// is not known are left out of both Teammates and Opponents.
func Teammates(players []protocol.Player, team int) []protocol.Player {
	var out []protocol.Player
	for _, p := range players {
		if !p.TeamUnknown && p.Team == team {
			out = append(out, p)
		}
	}

	return out
}

// Opponents returns the players not on team, in roster order.
func Opponents(players []protocol.Player, team int) []protocol.Player {
	var out []protocol.Player
	for _, p := range players {
		if !p.TeamUnknown && p.Team != team {
			out = append(out, p)
		}
	}

	return out
}

// ValidateDeclaration checks that every slot of set is assigned to one of
// teammates. assignments is indexed by slot, as produced by cards.SetCards.
func ValidateDeclaration(t Table, set int, assignments []protocol.ID) error {
	if t.GameOver {
		return ErrGameOver
	}
	if !t.Started {
		return ErrNotStarted
	}

	if len(assignments) != cards.SetSize(set) {
		return ErrDeclarationIncomplete
	}

	mates := Teammates(t.Players, t.Team)
	for _, id := range assignments {
		if id == "" {
			return ErrDeclarationIncomplete
		}
		if _, ok := Find(mates, id); !ok {
			return ErrNotTeammate
		}
	}

	return nil
}
