/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/declare"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/rules"
	"github.com/Seednode/literature/internal/session"
	"github.com/Seednode/literature/internal/state"
)

var (
	errQuit       = errors.New("quit")
	errUsage      = errors.New("usage")
	errUnknownSet = errors.New("Unknown set, try a number from 1 to 9 or a name like \"low spades\"")
)

const consoleHelp = `Commands:
  status                         show the table
  hand                           show your hand grouped by set
  players                        show the teams
  ask <player> <value> [suit]    ask an opponent for a card, e.g. "ask bob Q hearts"
  declare                        start declaring a set
  set <number|name>              choose the set to declare, e.g. "set high clubs"
  assign <slot|card> <player>    give a card of the set to a teammate
  unassign <slot>                clear a slot
  submit                         send the declaration
  cancel                         abandon the declaration
  invite                         show the invite link and QR code
  quit                           leave the table
`

// table is the part of a session the console drives.
type table interface {
	View(ctx context.Context) (state.View, error)
	Notices(ctx context.Context) ([]state.Notice, error)
	Updates() <-chan struct{}
	Ask(ctx context.Context, a rules.Ask) (cards.Card, error)
	Declaration(ctx context.Context) (session.Declaration, error)
	OpenDeclaration(ctx context.Context) error
	SelectSet(ctx context.Context, set int) error
	Assign(ctx context.Context, slot int, teammate protocol.ID) error
	AssignCard(ctx context.Context, card cards.Card, teammate protocol.ID) error
	Unassign(ctx context.Context, slot int) error
	SubmitDeclaration(ctx context.Context) error
	CancelDeclaration(ctx context.Context) error
}

type console struct {
	table  table
	in     io.Reader
	out    io.Writer
	invite string

	shown  bool
	banner string
}

func newConsole(t table, in io.Reader, out io.Writer, invite string) *console {
	return &console{table: t, in: in, out: out, invite: invite}
}

// run reads commands until the input ends, the player quits, or ctx ends.
func (c *console) run(ctx context.Context) error {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, "Connecting... type \"help\" for commands.")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.table.Updates():
			if err := c.refresh(ctx); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				return errQuit
			}

			err := c.exec(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				return err
			case errors.Is(err, errUsage):
				fmt.Fprint(c.out, consoleHelp)
			case errors.Is(err, session.ErrStopped):
				return err
			case err != nil:
				fmt.Fprintf(c.out, "! %s\n", explain(err))
			}
		}
	}
}

// refresh prints queued notices and the turn banner when it changes.
func (c *console) refresh(ctx context.Context) error {
	notices, err := c.table.Notices(ctx)
	if err != nil {
		return err
	}

	for _, n := range notices {
		writeNotice(c.out, n)
	}

	v, err := c.table.View(ctx)
	if err != nil {
		return err
	}

	if !v.Ready {
		return nil
	}

	if !c.shown {
		c.shown = true
		c.banner = v.TurnBanner()
		writeStatus(c.out, v)

		return nil
	}

	if b := v.TurnBanner(); b != c.banner {
		c.banner = b
		fmt.Fprintf(c.out, "-- %s\n", b)
	}

	d, err := c.table.Declaration(ctx)
	if err != nil {
		return err
	}
	if d.State == declare.Assigning && len(notices) > 0 {
		writeDeclaration(c.out, d)
	}

	return nil
}

func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		fmt.Fprint(c.out, consoleHelp)

		return nil

	case "quit", "exit":
		return errQuit

	case "invite", "qr":
		return c.showInvite()

	case "status", "s":
		v, err := c.table.View(ctx)
		if err != nil {
			return err
		}
		writeStatus(c.out, v)

		return nil

	case "hand", "h":
		v, err := c.table.View(ctx)
		if err != nil {
			return err
		}
		writeHand(c.out, v.Hand)

		return nil

	case "players", "p":
		v, err := c.table.View(ctx)
		if err != nil {
			return err
		}
		writeTeams(c.out, v)

		return nil

	case "ask", "a":
		return c.ask(ctx, args)

	case "declare", "d":
		if err := c.table.OpenDeclaration(ctx); err != nil {
			return err
		}

		return c.showDeclaration(ctx)

	case "set":
		set, err := parseSet(args)
		if err != nil {
			return err
		}
		if err := c.table.SelectSet(ctx, set); err != nil {
			return err
		}

		return c.showDeclaration(ctx)

	case "assign":
		return c.assign(ctx, args)

	case "unassign":
		if len(args) != 1 {
			return errUsage
		}
		slot, err := strconv.Atoi(args[0])
		if err != nil {
			return errUsage
		}
		if err := c.table.Unassign(ctx, slot-1); err != nil {
			return err
		}

		return c.showDeclaration(ctx)

	case "submit":
		if err := c.table.SubmitDeclaration(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Declaration sent.")

		return nil

	case "cancel":
		if err := c.table.CancelDeclaration(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Declaration cancelled.")

		return nil
	}

	return errUsage
}

func (c *console) ask(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}

	v, err := c.table.View(ctx)
	if err != nil {
		return err
	}

	target := protocol.ID(args[0])
	if p, ok := resolvePlayer(v.Players, args[0]); ok {
		target = p.ID
	}

	value, suit := splitCard(args[1:])

	card, err := c.table.Ask(ctx, rules.Ask{Target: target, Value: value, Suit: suit})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Asked %s for the %s.\n", playerName(v.Players, target), card)

	return nil
}

func (c *console) assign(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}

	v, err := c.table.View(ctx)
	if err != nil {
		return err
	}

	who := args[len(args)-1]
	mate := protocol.ID(who)
	if p, ok := resolvePlayer(v.Players, who); ok {
		mate = p.ID
	}

	what := args[:len(args)-1]
	if slot, err := strconv.Atoi(what[0]); err == nil && len(what) == 1 {
		err = c.table.Assign(ctx, slot-1, mate)
		if err != nil {
			return err
		}

		return c.showDeclaration(ctx)
	}

	card, err := cards.Parse(strings.Join(what, " "))
	if err != nil {
		return err
	}
	if err := c.table.AssignCard(ctx, card, mate); err != nil {
		return err
	}

	return c.showDeclaration(ctx)
}

func (c *console) showDeclaration(ctx context.Context) error {
	d, err := c.table.Declaration(ctx)
	if err != nil {
		return err
	}

	writeDeclaration(c.out, d)

	return nil
}

func (c *console) showInvite() error {
	fmt.Fprintf(c.out, "Invite: %s\n", c.invite)

	qr, err := inviteQR(c.invite)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, qr)

	return nil
}

// resolvePlayer finds a player by id, then by case-insensitive name.
func resolvePlayer(players []protocol.Player, token string) (protocol.Player, bool) {
	if p, ok := rules.Find(players, protocol.ID(token)); ok {
		return p, true
	}

	for _, p := range players {
		if strings.EqualFold(p.Name, token) {
			return p, true
		}
	}

	return protocol.Player{}, false
}

func playerName(players []protocol.Player, id protocol.ID) string {
	if p, ok := rules.Find(players, id); ok {
		return p.Name
	}

	return id.String()
}

// splitCard reads "<value> [of] <suit>" from args.
func splitCard(args []string) (value, suit string) {
	if len(args) == 0 {
		return "", ""
	}

	value = args[0]
	rest := args[1:]
	if len(rest) > 0 && strings.EqualFold(rest[0], "of") {
		rest = rest[1:]
	}

	return value, strings.Join(rest, " ")
}

// parseSet accepts a 1-based set number or a name such as "low spades",
// "9-A hearts" or "eights".
func parseSet(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errUsage
	}

	if n, err := strconv.Atoi(args[0]); err == nil && len(args) == 1 {
		if n < 1 || n > cards.SetCount {
			return 0, errUnknownSet
		}

		return n - 1, nil
	}

	words := strings.Fields(strings.ToLower(strings.Join(args, " ")))
	switch words[0] {
	case "eights", "eight", "8s", "joker", "jokers":
		return cards.EightsAndJokers, nil
	}

	if len(words) < 2 {
		return 0, errUnknownSet
	}

	var base int
	switch words[0] {
	case "low", "2-7", "minor":
		base = 0
	case "high", "9-a", "major":
		base = 4
	default:
		return 0, errUnknownSet
	}

	suit := strings.TrimPrefix(strings.Join(words[1:], " "), "of ")
	for i, s := range cards.Suits {
		if strings.EqualFold(s, suit) {
			return base + i, nil
		}
	}

	return 0, errUnknownSet
}

func writeNotice(w io.Writer, n state.Notice) {
	mark := "*"
	if n.Destructive() {
		mark = "!"
	}

	fmt.Fprintf(w, "%s %s: %s\n", mark, n.Title, n.Message)
}

func writeStatus(w io.Writer, v state.View) {
	if !v.Ready {
		fmt.Fprintln(w, "Waiting for the room to load...")

		return
	}

	fmt.Fprintf(w, "Room %s: %s\n", v.Room, v.TurnBanner())

	teams := make([]int, 0, len(v.Scores))
	for t := range v.Scores {
		teams = append(teams, t)
	}
	sort.Ints(teams)

	var scores []string
	for _, t := range teams {
		scores = append(scores, fmt.Sprintf("team %d: %d", t, v.Scores[t]))
	}
	if len(scores) > 0 {
		fmt.Fprintf(w, "Scores: %s (you are on team %d)\n", strings.Join(scores, ", "), v.Team)
	}

	writeHand(w, v.Hand)

	if v.Error != "" {
		fmt.Fprintf(w, "! %s\n", v.Error)
	}
}

func writeHand(w io.Writer, hand []cards.Card) {
	if len(hand) == 0 {
		fmt.Fprintln(w, "Your hand is empty.")

		return
	}

	bySet := make(map[int][]string)
	for _, c := range hand {
		set, err := cards.Set(c)
		if err != nil {
			continue
		}
		bySet[set] = append(bySet[set], c.String())
	}

	fmt.Fprintf(w, "Hand (%d):\n", len(hand))
	for set := 0; set < cards.SetCount; set++ {
		if held := bySet[set]; len(held) > 0 {
			fmt.Fprintf(w, "  %-17s %s\n", cards.SetName(set)+":", strings.Join(held, ", "))
		}
	}
}

func writeTeams(w io.Writer, v state.View) {
	teams := make([]int, 0, len(v.Teams))
	for t := range v.Teams {
		teams = append(teams, t)
	}
	sort.Ints(teams)

	for _, t := range teams {
		var names []string
		for _, p := range v.Teams[t] {
			name := p.Name
			if p.ID == v.Self {
				name += " (you)"
			}
			if p.ID == v.Turn {
				name += " *"
			}
			names = append(names, name)
		}
		fmt.Fprintf(w, "Team %d: %s\n", t, strings.Join(names, ", "))
	}
}

func writeDeclaration(w io.Writer, d session.Declaration) {
	switch d.State {
	case declare.Closed:
		fmt.Fprintln(w, "No declaration in progress.")

	case declare.Selecting:
		fmt.Fprintln(w, "Choose a set to declare:")
		for set := 0; set < cards.SetCount; set++ {
			fmt.Fprintf(w, "  %d. %s\n", set+1, cards.SetName(set))
		}

	case declare.Assigning:
		fmt.Fprintf(w, "Declaring %s:\n", cards.SetName(d.Set))
		for i, c := range d.Slots {
			holder := "-"
			if id := d.Assignments[i]; id != "" {
				holder = playerName(d.Teammates, id)
			}
			fmt.Fprintf(w, "  %d. %-14s %s\n", i+1, c, holder)
		}

		if len(d.Missing) == 0 {
			fmt.Fprintln(w, "Every card is assigned, type \"submit\" to declare.")
		}
	}
}
