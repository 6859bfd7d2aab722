/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package cards

import (
	"errors"
	"testing"
)

func TestSetIsTotal(t *testing.T) {
	deck := Deck()
	if len(deck) != 53 {
		t.Fatalf("deck size = %d, want 53", len(deck))
	}

	counts := make(map[int]int)
	for _, c := range deck {
		set, err := Set(c)
		if err != nil {
			t.Fatalf("Set(%q): %v", c, err)
		}
		if set < 0 || set >= SetCount {
			t.Fatalf("Set(%q) = %d, out of range", c, set)
		}

		again, _ := Set(c)
		if again != set {
			t.Fatalf("Set(%q) unstable: %d then %d", c, set, again)
		}

		counts[set]++
	}

	for set := 0; set < SetCount; set++ {
		want := 6
		if set == EightsAndJokers {
			want = 5
		}
		if counts[set] != want {
			t.Errorf("set %d has %d cards, want %d", set, counts[set], want)
		}
		if SetSize(set) != want {
			t.Errorf("SetSize(%d) = %d, want %d", set, SetSize(set), want)
		}
	}
}

func TestSetIndex(t *testing.T) {
	tests := []struct {
		card string
		want int
	}{
		{"2 of Spades", 0},
		{"7 of Hearts", 1},
		{"5 of Clubs", 2},
		{"3 of Diamonds", 3},
		{"9 of Spades", 4},
		{"9 of Hearts", 5},
		{"King of Clubs", 6},
		{"A of Diamonds", 7},
		{"8 of Hearts", 8},
		{"Joker", 8},
	}

	for _, tt := range tests {
		t.Run(tt.card, func(t *testing.T) {
			c, err := Parse(tt.card)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			got, err := Set(c)
			if err != nil {
				t.Fatalf("Set: %v", err)
			}
			if got != tt.want {
				t.Errorf("Set(%q) = %d, want %d", tt.card, got, tt.want)
			}
		})
	}
}

func TestParseCanonicalizes(t *testing.T) {
	tests := map[string]Card{
		"King of Clubs":   "K of Clubs",
		"king of clubs":   "K of Clubs",
		"Ace of Spades":   "A of Spades",
		"10 of Hearts":    "10 of Hearts",
		" q of diamonds ": "Q of Diamonds",
		"joker":           Joker,
	}

	for in, want := range tests {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"", "1 of Spades", "K of Stars", "K Clubs", "Jokers"} {
		if _, err := Parse(bad); !errors.Is(err, ErrUnknownCard) {
			t.Errorf("Parse(%q) err = %v, want ErrUnknownCard", bad, err)
		}
	}
}

func TestSetCards(t *testing.T) {
	low, err := SetCards(0)
	if err != nil {
		t.Fatal(err)
	}
	if low[0] != "2 of Spades" || low[5] != "7 of Spades" {
		t.Errorf("set 0 = %v", low)
	}

	high, _ := SetCards(6)
	want := []Card{"9 of Clubs", "10 of Clubs", "J of Clubs", "Q of Clubs", "K of Clubs", "A of Clubs"}
	for i := range want {
		if high[i] != want[i] {
			t.Errorf("set 6 slot %d = %q, want %q", i, high[i], want[i])
		}
	}

	eights, _ := SetCards(EightsAndJokers)
	if len(eights) != 5 || eights[4] != Joker {
		t.Errorf("set 8 = %v", eights)
	}

	for set := 0; set < SetCount; set++ {
		cs, _ := SetCards(set)
		for _, c := range cs {
			if got, _ := Set(c); got != set {
				t.Errorf("SetCards(%d) contains %q from set %d", set, c, got)
			}
		}
	}

	if _, err := SetCards(9); !errors.Is(err, ErrUnknownSet) {
		t.Errorf("SetCards(9) err = %v", err)
	}
}

func TestImagePath(t *testing.T) {
	tests := map[Card]string{
		"A of Spades":  "/cards/ace_of_spades.png",
		"10 of Hearts": "/cards/10_of_hearts.png",
		"Q of Clubs":   "/cards/queen_of_clubs.png",
		Joker:          "/cards/red_joker.png",
	}

	for c, want := range tests {
		if got := ImagePath(c); got != want {
			t.Errorf("ImagePath(%q) = %q, want %q", c, got, want)
		}
	}
}
