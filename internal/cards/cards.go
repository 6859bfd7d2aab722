/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package cards maps Literature card identities to their set and image.
//
// A card is identified by a string of the form "<rank> of <Suit>", or "Joker".
// Face ranks use the short form the server deals ("J", "Q", "K", "A").
package cards

import (
	"errors"
	"fmt"
	"strings"
)

// Card is the canonical textual identity of a single card.
type Card string

// Joker is the only card without a suit.
const Joker Card = "Joker"

// SetCount is the number of declarable sets in a deck.
const SetCount = 9

// EightsAndJokers is the index of the set holding the four eights and the joker.
const EightsAndJokers = 8

var (
	ErrUnknownCard = errors.New("unknown card")
	ErrUnknownSet  = errors.New("unknown set")
)

// Suits in set order: low and high runs are indexed by this slice.
var Suits = []string{"Spades", "Hearts", "Clubs", "Diamonds"}

// Ranks lists every rank in deck order, using the short face names.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var (
	lowRanks  = []string{"2", "3", "4", "5", "6", "7"}
	highRanks = []string{"9", "10", "J", "Q", "K", "A"}
)

var rankAliases = map[string]string{
	"jack":  "J",
	"queen": "Q",
	"king":  "K",
	"ace":   "A",
	"j":     "J",
	"q":     "Q",
	"k":     "K",
	"a":     "A",
}

var imageRanks = map[string]string{
	"J": "jack",
	"Q": "queen",
	"K": "king",
	"A": "ace",
}

// New builds a card from a rank and suit, accepting long face names and
// any letter case.
func New(rank, suit string) (Card, error) {
	r, ok := canonicalRank(rank)
	if !ok {
		return "", fmt.Errorf("%w: rank %q", ErrUnknownCard, rank)
	}

	s, ok := canonicalSuit(suit)
	if !ok {
		return "", fmt.Errorf("%w: suit %q", ErrUnknownCard, suit)
	}

	return Card(r + " of " + s), nil
}

// Parse canonicalizes a textual card identity.
func Parse(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, string(Joker)) {
		return Joker, nil
	}

	fields := strings.Fields(s)
	if len(fields) != 3 || !strings.EqualFold(fields[1], "of") {
		return "", fmt.Errorf("%w: %q", ErrUnknownCard, s)
	}

	return New(fields[0], fields[2])
}

func canonicalRank(rank string) (string, bool) {
	rank = strings.TrimSpace(rank)
	if alias, ok := rankAliases[strings.ToLower(rank)]; ok {
		return alias, true
	}

	for _, r := range Ranks {
		if r == rank {
			return r, true
		}
	}

	return "", false
}

func canonicalSuit(suit string) (string, bool) {
	suit = strings.TrimSpace(suit)
	for _, s := range Suits {
		if strings.EqualFold(s, suit) {
			return s, true
		}
	}

	return "", false
}

// Rank returns the rank part of the card, or "" for the joker.
func (c Card) Rank() string {
	if c == Joker {
		return ""
	}

	rank, _, _ := strings.Cut(string(c), " of ")

	return rank
}

// Suit returns the suit part of the card, or "" for the joker.
func (c Card) Suit() string {
	if c == Joker {
		return ""
	}

	_, suit, _ := strings.Cut(string(c), " of ")

	return suit
}

func (c Card) String() string {
	return string(c)
}

// Valid reports whether c is one of the 53 canonical identities.
func (c Card) Valid() bool {
	if c == Joker {
		return true
	}

	parsed, err := Parse(string(c))

	return err == nil && parsed == c
}

// Set returns the index of the set c belongs to.
func Set(c Card) (int, error) {
	if c == Joker {
		return EightsAndJokers, nil
	}

	if !c.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCard, string(c))
	}

	rank := c.Rank()
	if rank == "8" {
		return EightsAndJokers, nil
	}

	suit := suitIndex(c.Suit())
	for _, r := range lowRanks {
		if r == rank {
			return suit, nil
		}
	}

	return suit + 4, nil
}

// SameSet reports whether a and b belong to the same set. Unknown cards
// never match.
func SameSet(a, b Card) bool {
	sa, err := Set(a)
	if err != nil {
		return false
	}

	sb, err := Set(b)
	if err != nil {
		return false
	}

	return sa == sb
}

func suitIndex(suit string) int {
	for i, s := range Suits {
		if s == suit {
			return i
		}
	}

	return -1
}

// SetCards returns the fixed, ordered list of cards that make up set.
// Low runs (0-3) hold ranks 2-7, high runs (4-7) hold 9-A, and set 8 holds
// the four eights followed by the joker.
func SetCards(set int) ([]Card, error) {
	switch {
	case set >= 0 && set < 4:
		return run(lowRanks, Suits[set]), nil
	case set >= 4 && set < 8:
		return run(highRanks, Suits[set-4]), nil
	case set == EightsAndJokers:
		out := make([]Card, 0, 5)
		for _, s := range Suits {
			out = append(out, Card("8 of "+s))
		}

		return append(out, Joker), nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownSet, set)
}

func run(ranks []string, suit string) []Card {
	out := make([]Card, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, Card(r+" of "+suit))
	}

	return out
}

// SetSize is the number of cards that must be placed to declare set.
func SetSize(set int) int {
	if set == EightsAndJokers {
		return 5
	}

	return 6
}

// SetName is a short human label for a set.
func SetName(set int) string {
	switch {
	case set >= 0 && set < 4:
		return "2-7 of " + Suits[set]
	case set >= 4 && set < 8:
		return "9-A of " + Suits[set-4]
	case set == EightsAndJokers:
		return "Eights and Joker"
	}

	return fmt.Sprintf("set %d", set)
}

// Deck returns all 53 card identities in rank-major order, joker last.
func Deck() []Card {
	out := make([]Card, 0, len(Ranks)*len(Suits)+1)
	for _, r := range Ranks {
		for _, s := range Suits {
			out = append(out, Card(r+" of "+s))
		}
	}

	return append(out, Joker)
}

// ImagePath resolves the static image for c.
func ImagePath(c Card) string {
	if c == Joker {
		return "/cards/red_joker.png"
	}

	rank := c.Rank()
	if long, ok := imageRanks[rank]; ok {
		rank = long
	}

	return "/cards/" + strings.ToLower(rank) + "_of_" + strings.ToLower(c.Suit()) + ".png"
}
