/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Seednode/literature/internal/api"
	"github.com/Seednode/literature/internal/channel"
	"github.com/Seednode/literature/internal/history"
	"github.com/Seednode/literature/internal/journal"
	"github.com/Seednode/literature/internal/protocol"
	"github.com/Seednode/literature/internal/session"
)

func createRoom(ctx context.Context, cfg *Config, w io.Writer, name string) error {
	client, err := api.New(cfg.server, cfg.timeout)
	if err != nil {
		return err
	}

	room, err := client.CreateRoom(ctx, name)
	if err != nil {
		return fmt.Errorf("Failed to create room: %s", explain(err))
	}

	log.Info().Str("room", room.RoomID).Str("player", room.PlayerID.String()).Msg("ROOMS: Created")

	return seated(ctx, cfg, w, client, history.Seat{
		Server:   cfg.server,
		RoomID:   room.RoomID,
		PlayerID: room.PlayerID,
		Name:     name,
	})
}

func joinRoom(ctx context.Context, cfg *Config, w io.Writer, roomID, name string) error {
	client, err := api.New(cfg.server, cfg.timeout)
	if err != nil {
		return err
	}

	room, err := client.JoinRoom(ctx, roomID, name)
	if err != nil {
		return fmt.Errorf("Failed to join room: %s", explain(err))
	}

	log.Info().Str("room", room.RoomID).Str("player", room.PlayerID.String()).Msg("ROOMS: Joined")

	return seated(ctx, cfg, w, client, history.Seat{
		Server:   cfg.server,
		RoomID:   room.RoomID,
		PlayerID: room.PlayerID,
		Name:     name,
	})
}

func resumeRoom(ctx context.Context, cfg *Config, roomID string) error {
	client, err := api.New(cfg.server, cfg.timeout)
	if err != nil {
		return err
	}

	seat := history.Seat{Server: cfg.server, RoomID: roomID, PlayerID: protocol.ID(cfg.player)}

	if seat.PlayerID == "" {
		seat, err = savedSeat(ctx, cfg, roomID)
		if err != nil {
			return err
		}
	} else {
		remember(ctx, cfg, seat)
	}

	return play(ctx, cfg, os.Stdin, os.Stdout, client, seat)
}

// savedSeat looks up our seat in roomID and marks it as played.
func savedSeat(ctx context.Context, cfg *Config, roomID string) (history.Seat, error) {
	store, err := history.Open(cfg.history)
	if err != nil {
		return history.Seat{}, err
	}
	defer store.Close()

	seat, err := store.Lookup(ctx, cfg.server, roomID)
	if errors.Is(err, history.ErrNotFound) {
		return history.Seat{}, fmt.Errorf("no saved seat in room %s, pass --player", roomID)
	}
	if err != nil {
		return history.Seat{}, err
	}

	if err := store.Touch(ctx, cfg.server, roomID); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("ROOMS: Could not update seat")
	}

	return seat, nil
}

// seated saves a new seat, prints how others can join, and starts playing
// unless --detach was given.
func seated(ctx context.Context, cfg *Config, w io.Writer, client *api.Client, seat history.Seat) error {
	remember(ctx, cfg, seat)

	invite := cfg.invite(seat.RoomID)

	fmt.Fprintf(w, "Room:   %s\nPlayer: %s (%s)\nInvite: %s\n", seat.RoomID, seat.Name, seat.PlayerID, invite)

	if qr, err := inviteQR(invite); err == nil {
		fmt.Fprint(w, qr)
	}

	if cfg.detach {
		return nil
	}

	return play(ctx, cfg, os.Stdin, w, client, seat)
}

// remember records seat in the history database. Failures are logged only.
func remember(ctx context.Context, cfg *Config, seat history.Seat) {
	if cfg.history == "" {
		return
	}

	store, err := history.Open(cfg.history)
	if err != nil {
		log.Warn().Err(err).Msg("ROOMS: History unavailable")

		return
	}
	defer store.Close()

	seat.Played = time.Now().UTC()
	if err := store.Save(ctx, seat); err != nil {
		log.Warn().Err(err).Msg("ROOMS: Could not save seat")
	}
}

func play(ctx context.Context, cfg *Config, in io.Reader, out io.Writer, client *api.Client, seat history.Seat) error {
	ch, err := channel.Open(ctx, channel.Options{
		URL:      cfg.wsURL(),
		RoomID:   seat.RoomID,
		PlayerID: seat.PlayerID,
	})
	if err != nil {
		return err
	}

	opts := session.Options{
		RoomID:         seat.RoomID,
		PlayerID:       seat.PlayerID,
		Conn:           ch,
		Fetcher:        client,
		PendingTimeout: cfg.pendingTimeout,
	}

	if cfg.natsURL != "" {
		j, err := journal.Connect(cfg.natsURL, cfg.natsSubject)
		if err != nil {
			ch.Close()

			return err
		}
		defer j.Close()

		opts.Recorder = j
	}

	sess := session.New(opts)
	invite := cfg.invite(seat.RoomID)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sess.Run(ctx)
	})

	if cfg.port > 0 {
		g.Go(func() error {
			return serveStatus(ctx, cfg, sess, invite)
		})
	}

	g.Go(func() error {
		return newConsole(sess, in, out, invite).run(ctx)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func listRooms(ctx context.Context, cfg *Config, w io.Writer, limit int) error {
	store, err := history.Open(cfg.history)
	if err != nil {
		return err
	}
	defer store.Close()

	seats, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	if len(seats) == 0 {
		fmt.Fprintln(w, "No saved seats.")

		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOM\tPLAYER\tNAME\tSERVER\tLAST PLAYED")
	for _, s := range seats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.RoomID, s.PlayerID, s.Name, s.Server, s.Played.Local().Format(time.DateTime))
	}

	return tw.Flush()
}

func forgetRoom(ctx context.Context, cfg *Config, w io.Writer, roomID string) error {
	store, err := history.Open(cfg.history)
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Forget(ctx, cfg.server, roomID)
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("no saved seat in room %s on %s", roomID, cfg.server)
	}
	if err != nil {
		return err
	}

	log.Info().Str("room", roomID).Msg("ROOMS: Forgot seat")

	fmt.Fprintf(w, "Forgot seat in room %s.\n", roomID)

	return nil
}

func watchRoom(ctx context.Context, cfg *Config, w io.Writer, roomID string) error {
	if cfg.natsURL == "" {
		return errors.New("--nats-url is required to watch a room")
	}

	j, err := journal.Connect(cfg.natsURL, cfg.natsSubject)
	if err != nil {
		return err
	}
	defer j.Close()

	fmt.Fprintf(w, "Watching %s on %s\n", roomID, j.Subject(roomID))

	err = j.Follow(ctx, roomID, func(e journal.Entry) {
		fmt.Fprintf(w, "%s %s\n", e.At.Local().Format(time.TimeOnly), summarize(e))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// summarize describes a journalled event in one line.
func summarize(e journal.Entry) string {
	ev, err := e.Decode()
	if err != nil {
		return e.Event + " (undecodable)"
	}

	switch p := ev.Payload.(type) {
	case protocol.UpdatePlayersPayload:
		return fmt.Sprintf("players: %d in room", len(p.Players))
	case protocol.HandUpdatedPayload:
		return fmt.Sprintf("hand of %s: %d cards", p.PlayerID, len(p.Hand))
	case protocol.GameStartedPayload:
		return fmt.Sprintf("game started, %s to play", p.CurrentTurn)
	case protocol.TurnChangedPayload:
		return fmt.Sprintf("turn: %s", p.CurrentTurn)
	case protocol.GameStatePayload:
		return fmt.Sprintf("state: started=%t turn=%s", p.Started, p.CurrentTurn)
	case protocol.CardTransferredPayload:
		return fmt.Sprintf("%s took the %s from %s", p.ToPlayer, p.Card, p.FromPlayer)
	case protocol.ErrorPayload:
		return "error: " + p.Message
	case protocol.SetDeclaredPayload:
		outcome := "misdeclared"
		if p.IsValid {
			outcome = "declared"
		}
		line := fmt.Sprintf("team %d %s a set, scores %v", p.DeclaringTeam, outcome, map[int]int(p.Scores))
		if p.WinningTeam != nil {
			line += fmt.Sprintf(", team %d wins", *p.WinningTeam)
		}

		return line
	}

	return ev.Name
}
