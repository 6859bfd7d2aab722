/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package declare is the short-lived workflow for assigning every card of a
// chosen set to a teammate before a declaration is sent.
package declare

import (
	"errors"
	"fmt"

	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/rules"
)

// State of the workflow.
type State int

const (
	Closed State = iota
	Selecting
	Assigning
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Selecting:
		return "selecting"
	case Assigning:
		return "assigning"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrClosed     = errors.New("no declaration in progress")
	ErrNoSet      = errors.New("select a set first")
	ErrSlot       = errors.New("no such slot")
	ErrNoTeammate = errors.New("no teammates to assign cards to")
)

// Draft is a copy of an in-progress declaration, used to restore it after
// the server rejects a submission.
type Draft struct {
	Set         int
	Teammates   []protocol.Player
	Assignments []protocol.ID
}

// Workflow is not safe for concurrent use.
type Workflow struct {
	state     State
	set       int
	slots     []cards.Card
	assigned  []protocol.ID
	teammates []protocol.Player
}

// State returns the current state.
func (w *Workflow) State() State {
	return w.state
}

// Open starts a declaration. Only teammates can receive cards.
func (w *Workflow) Open(teammates []protocol.Player) error {
	if len(teammates) == 0 {
		return ErrNoTeammate
	}

	w.reset()
	w.teammates = append([]protocol.Player(nil), teammates...)
	w.state = Selecting

	return nil
}

// Select picks the set to declare, discarding any earlier assignments.
func (w *Workflow) Select(set int) error {
	if w.state == Closed {
		return ErrClosed
	}

	slots, err := cards.SetCards(set)
	if err != nil {
		return err
	}

	w.set = set
	w.slots = slots
	w.assigned = make([]protocol.ID, len(slots))
	w.state = Assigning

	return nil
}

// Set returns the selected set, or -1.
func (w *Workflow) Set() int {
	if w.state != Assigning {
		return -1
	}

	return w.set
}

// Slots returns the required cards of the selected set, in slot order.
func (w *Workflow) Slots() []cards.Card {
	return append([]cards.Card(nil), w.slots...)
}

// Teammates returns the candidates offered for assignment.
func (w *Workflow) Teammates() []protocol.Player {
	return append([]protocol.Player(nil), w.teammates...)
}

// Assignments returns the teammate chosen for each slot; "" is unassigned.
func (w *Workflow) Assignments() []protocol.ID {
	return append([]protocol.ID(nil), w.assigned...)
}

// Assign gives the card in slot to teammate, replacing any earlier choice.
func (w *Workflow) Assign(slot int, teammate protocol.ID) error {
	if err := w.checkSlot(slot); err != nil {
		return err
	}

	if _, ok := rules.Find(w.teammates, teammate); !ok {
		return rules.ErrNotTeammate
	}

	w.assigned[slot] = teammate

	return nil
}

// AssignCard is Assign addressed by card instead of slot.
func (w *Workflow) AssignCard(card cards.Card, teammate protocol.ID) error {
	for i, c := range w.slots {
		if c == card {
			return w.Assign(i, teammate)
		}
	}

	return fmt.Errorf("%w: %s is not in %s", ErrSlot, card, cards.SetName(w.set))
}

// Unassign clears slot.
func (w *Workflow) Unassign(slot int) error {
	if err := w.checkSlot(slot); err != nil {
		return err
	}

	w.assigned[slot] = ""

	return nil
}

func (w *Workflow) checkSlot(slot int) error {
	switch w.state {
	case Closed:
		return ErrClosed
	case Selecting:
		return ErrNoSet
	}

	if slot < 0 || slot >= len(w.slots) {
		return fmt.Errorf("%w: %d", ErrSlot, slot)
	}

	return nil
}

// Missing returns the cards whose slot has no teammate yet.
func (w *Workflow) Missing() []cards.Card {
	var out []cards.Card
	for i, id := range w.assigned {
		if id == "" {
			out = append(out, w.slots[i])
		}
	}

	return out
}

// Complete reports whether every slot of the selected set is assigned.
func (w *Workflow) Complete() bool {
	return w.state == Assigning && len(w.Missing()) == 0
}

// Mapping groups the assigned cards by teammate, in slot order. Empty
// slots are left out.
func (w *Workflow) Mapping() protocol.Declaration {
	out := make(protocol.Declaration)
	for i, id := range w.assigned {
		if id == "" {
			continue
		}
		out[id] = append(out[id], w.slots[i])
	}

	return out
}

// Draft snapshots the workflow for a later Restore.
func (w *Workflow) Draft() Draft {
	return Draft{
		Set:         w.set,
		Teammates:   w.Teammates(),
		Assignments: w.Assignments(),
	}
}

// Submit validates the declaration against t and, if it is complete,
// returns the per-teammate mapping and closes the workflow. The outcome
// arrives later as a set_declared event.
func (w *Workflow) Submit(t rules.Table) (protocol.Declaration, Draft, error) {
	switch w.state {
	case Closed:
		return nil, Draft{}, ErrClosed
	case Selecting:
		return nil, Draft{}, ErrNoSet
	}

	if err := rules.ValidateDeclaration(t, w.set, w.assigned); err != nil {
		return nil, Draft{}, err
	}

	mapping := w.Mapping()
	draft := w.Draft()
	w.reset()

	return mapping, draft, nil
}

// Cancel abandons the declaration.
func (w *Workflow) Cancel() {
	w.reset()
}

// Restore reopens a previously submitted draft.
func (w *Workflow) Restore(d Draft) error {
	if err := w.Open(d.Teammates); err != nil {
		return err
	}

	if err := w.Select(d.Set); err != nil {
		return err
	}

	for i, id := range d.Assignments {
		if i < len(w.assigned) {
			w.assigned[i] = id
		}
	}

	return nil
}

func (w *Workflow) reset() {
	w.state = Closed
	w.set = 0
	w.slots = nil
	w.assigned = nil
	w.teammates = nil
}
