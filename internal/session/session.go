/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs one player's connection to one room. A single
// goroutine owns the store and the declaration workflow; every public
// method is marshalled onto it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/api"
	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/declare"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/rules"
	"github.com/Seednode/literature/internal/state"
)

var (
	ErrStopped      = errors.New("session is not running")
	ErrDisconnected = errors.New("connection to the game server was lost")
)

const (
	defaultPendingTimeout = 10 * time.Second
	defaultExpiryInterval = time.Second
)

// Conn is the push channel for the room.
type Conn interface {
	Events() <-chan protocol.Event
	AskCard(protocol.AskCard) error
	DeclareSet(protocol.DeclareSet) error
	Close() error
	Err() error
}

// Fetcher loads the initial room state.
type Fetcher interface {
	Snapshot(ctx context.Context, roomID string, playerID protocol.ID) (api.Snapshot, error)
}

// Recorder receives every inbound event, in arrival order.
type Recorder interface {
	Record(ctx context.Context, roomID string, ev protocol.Event) error
}

type Options struct {
	RoomID   string
	PlayerID protocol.ID
	Conn     Conn
	Fetcher  Fetcher
	Recorder Recorder

	// PendingTimeout bounds how long a sent command may go unanswered.
	PendingTimeout time.Duration
	ExpiryInterval time.Duration
	Now            func() time.Time
}

// Session is safe for concurrent use once Run has been started.
type Session struct {
	room     string
	player   protocol.ID
	conn     Conn
	fetcher  Fetcher
	recorder Recorder

	pendingTimeout time.Duration
	expiryInterval time.Duration
	now            func() time.Time

	store *state.Store
	draft declare.Workflow

	inbox   chan func()
	updates chan struct{}
	done    chan struct{}
}

func New(opts Options) *Session {
	s := &Session{
		room:           opts.RoomID,
		player:         opts.PlayerID,
		conn:           opts.Conn,
		fetcher:        opts.Fetcher,
		recorder:       opts.Recorder,
		pendingTimeout: opts.PendingTimeout,
		expiryInterval: opts.ExpiryInterval,
		now:            opts.Now,
		store:          state.New(opts.RoomID, opts.PlayerID),
		inbox:          make(chan func()),
		updates:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}

	if s.pendingTimeout <= 0 {
		s.pendingTimeout = defaultPendingTimeout
	}
	if s.expiryInterval <= 0 {
		s.expiryInterval = defaultExpiryInterval
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type snapshotResult struct {
	snap api.Snapshot
	err  error
}

// Run fetches the snapshot and applies events until ctx is cancelled, the
// snapshot fails, or the connection drops. The connection is closed on
// return.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.conn.Close()

	log.Info().Str("room", s.room).Str("player", s.player.String()).Msg("SESSION: Started")

	snapshots := make(chan snapshotResult, 1)
	go func() {
		snap, err := s.fetcher.Snapshot(ctx, s.room, s.player)
		snapshots <- snapshotResult{snap: snap, err: err}
	}()

	ticker := time.NewTicker(s.expiryInterval)
	defer ticker.Stop()

	events := s.conn.Events()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("room", s.room).Msg("SESSION: Stopped")

			return ctx.Err()

		case r := <-snapshots:
			snapshots = nil

			if r.err != nil {
				log.Error().Err(r.err).Str("room", s.room).Msg("SESSION: Bootstrap failed")

				if !errors.Is(r.err, api.ErrBootstrap) {
					return fmt.Errorf("%w: %w", api.ErrBootstrap, r.err)
				}

				return r.err
			}

			s.store.ApplySnapshot(r.snap)
			s.changed()

		case ev, ok := <-events:
			if !ok {
				err := s.conn.Err()
				if err == nil {
					err = ErrDisconnected
				}
				log.Error().Err(err).Str("room", s.room).Msg("SESSION: Connection lost")

				return err
			}

			s.store.Apply(ev)
			s.record(ctx, ev)
			s.changed()

		case fn := <-s.inbox:
			fn()

		case <-ticker.C:
			if len(s.store.Pending()) == 0 {
				continue
			}

			s.store.Expire(s.now())
			s.changed()
		}
	}
}

func (s *Session) record(ctx context.Context, ev protocol.Event) {
	if s.recorder == nil {
		return
	}

	if err := s.recorder.Record(ctx, s.room, ev); err != nil {
		log.Warn().Err(err).Str("room", s.room).Str("event", ev.Name).Msg("SESSION: Journal write failed")
	}
}

// changed restores rolled-back declarations and wakes anyone waiting on
// Updates.
func (s *Session) changed() {
	for _, d := range s.store.Rollbacks() {
		if s.draft.State() != declare.Closed {
			continue
		}

		if err := s.draft.Restore(d); err != nil {
			log.Warn().Err(err).Str("room", s.room).Msg("SESSION: Could not reopen declaration")
		}
	}

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates signals after any state change. Signals are coalesced.
func (s *Session) Updates() <-chan struct{} {
	return s.updates
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	<-finished

	return nil
}

// View returns a copy of the room state.
func (s *Session) View(ctx context.Context) (state.View, error) {
	var v state.View

	err := s.do(ctx, func() { v = s.store.View() })

	return v, err
}

// Notices drains the queued notices.
func (s *Session) Notices(ctx context.Context) ([]state.Notice, error) {
	var n []state.Notice

	err := s.do(ctx, func() { n = s.store.DrainNotices() })

	return n, err
}

// Ask validates the selection and sends an ask_card command. A failed check
// is stored in the error slot and returned; nothing is sent.
func (s *Session) Ask(ctx context.Context, a rules.Ask) (cards.Card, error) {
	var (
		card cards.Card
		err  error
	)

	if derr := s.do(ctx, func() { card, err = s.ask(a) }); derr != nil {
		return "", derr
	}

	return card, err
}

func (s *Session) ask(a rules.Ask) (cards.Card, error) {
	defer s.changed()

	card, err := rules.ValidateAsk(s.store.Table(), a)
	if err != nil {
		s.store.Fail(err.Error())

		return "", err
	}

	cmd := protocol.AskCard{
		AskingPlayerID: s.player,
		AskedPlayerID:  a.Target,
		Card:           card,
		RoomID:         s.room,
	}
	if err := s.conn.AskCard(cmd); err != nil {
		s.store.Fail(err.Error())

		return "", err
	}

	id := s.store.Track(state.PendingAction{
		Kind:     state.PendingAsk,
		Card:     card,
		Target:   a.Target,
		Deadline: s.now().Add(s.pendingTimeout),
	})
	s.store.Clear()

	log.Info().Str("room", s.room).Str("pending", id.String()).Str("card", card.String()).Str("target", a.Target.String()).Msg("SESSION: Asked")

	return card, nil
}

// Declaration describes the declaration dialog for rendering.
type Declaration struct {
	State       declare.State
	Set         int
	Slots       []cards.Card
	Assignments []protocol.ID
	Teammates   []protocol.Player
	Missing     []cards.Card
}

// Declaration returns the current declaration dialog.
func (s *Session) Declaration(ctx context.Context) (Declaration, error) {
	var d Declaration

	err := s.do(ctx, func() { d = s.declaration() })

	return d, err
}

func (s *Session) declaration() Declaration {
	return Declaration{
		State:       s.draft.State(),
		Set:         s.draft.Set(),
		Slots:       s.draft.Slots(),
		Assignments: s.draft.Assignments(),
		Teammates:   s.draft.Teammates(),
		Missing:     s.draft.Missing(),
	}
}

func (s *Session) edit(ctx context.Context, fn func() error) error {
	var err error

	if derr := s.do(ctx, func() {
		defer s.changed()

		if err = fn(); err != nil {
			s.store.Fail(err.Error())
		}
	}); derr != nil {
		return derr
	}

	return err
}

// OpenDeclaration starts a declaration over the local player's team.
func (s *Session) OpenDeclaration(ctx context.Context) error {
	return s.edit(ctx, func() error {
		return s.draft.Open(s.store.Teammates())
	})
}

// SelectSet chooses the set being declared.
func (s *Session) SelectSet(ctx context.Context, set int) error {
	return s.edit(ctx, func() error {
		return s.draft.Select(set)
	})
}

// Assign gives a slot of the selected set to a teammate.
func (s *Session) Assign(ctx context.Context, slot int, teammate protocol.ID) error {
	return s.edit(ctx, func() error {
		return s.draft.Assign(slot, teammate)
	})
}

// AssignCard is Assign addressed by card.
func (s *Session) AssignCard(ctx context.Context, card cards.Card, teammate protocol.ID) error {
	return s.edit(ctx, func() error {
		return s.draft.AssignCard(card, teammate)
	})
}

func (s *Session) Unassign(ctx context.Context, slot int) error {
	return s.edit(ctx, func() error {
		return s.draft.Unassign(slot)
	})
}

func (s *Session) CancelDeclaration(ctx context.Context) error {
	return s.edit(ctx, func() error {
		s.draft.Cancel()

		return nil
	})
}

// SubmitDeclaration sends the declaration once every card is assigned. The
// outcome arrives as a set_declared event; if the server rejects it or
// never answers, the dialog is reopened with the same assignments.
func (s *Session) SubmitDeclaration(ctx context.Context) error {
	return s.edit(ctx, func() error {
		set := s.draft.Set()

		mapping, draft, err := s.draft.Submit(s.store.Table())
		if err != nil {
			return err
		}

		cmd := protocol.DeclareSet{
			DeclaringPlayerID: s.player,
			RoomID:            s.room,
			SetDeclaration:    mapping,
		}
		if err := s.conn.DeclareSet(cmd); err != nil {
			_ = s.draft.Restore(draft)

			return err
		}

		id := s.store.Track(state.PendingAction{
			Kind:     state.PendingDeclare,
			Draft:    draft,
			Deadline: s.now().Add(s.pendingTimeout),
		})
		s.store.Clear()

		log.Info().Str("room", s.room).Str("pending", id.String()).Str("set", cards.SetName(set)).Msg("SESSION: Declared")

		return nil
	})
}
