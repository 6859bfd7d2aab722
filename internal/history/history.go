/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package history remembers which seat this machine holds in each room, so
// a player can rejoin without retyping their player id.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/protocol"
)

var ErrNotFound = errors.New("no saved seat for that room")

const schema = `
CREATE TABLE IF NOT EXISTS seats (
	server      TEXT NOT NULL,
	room_id     TEXT NOT NULL,
	player_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	joined_at   INTEGER NOT NULL,
	played_at   INTEGER NOT NULL,
	PRIMARY KEY (server, room_id)
);
CREATE INDEX IF NOT EXISTS seats_played_at ON seats (played_at DESC);
`

// Seat is one player identity in one room on one server.
type Seat struct {
	Server   string
	RoomID   string
	PlayerID protocol.ID
	Name     string
	Joined   time.Time
	Played   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("HISTORY: Opened")

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save records a seat. Saving an existing room again keeps its join time
// and updates everything else.
func (s *Store) Save(ctx context.Context, seat Seat) error {
	now := time.Now().UTC()
	if seat.Joined.IsZero() {
		seat.Joined = now
	}
	if seat.Played.IsZero() {
		seat.Played = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seats (server, room_id, player_id, name, joined_at, played_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (server, room_id) DO UPDATE SET
			player_id = excluded.player_id,
			name      = excluded.name,
			played_at = excluded.played_at`,
		seat.Server, seat.RoomID, seat.PlayerID.String(), seat.Name,
		seat.Joined.UnixMilli(), seat.Played.UnixMilli())
	if err != nil {
		return fmt.Errorf("save seat: %w", err)
	}

	return nil
}

// Touch marks a seat as played now.
func (s *Store) Touch(ctx context.Context, server, room string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE seats SET played_at = ? WHERE server = ? AND room_id = ?`,
		time.Now().UTC().UnixMilli(), server, room)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

// Lookup returns the seat held in room on server.
func (s *Store) Lookup(ctx context.Context, server, room string) (Seat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT server, room_id, player_id, name, joined_at, played_at
		FROM seats WHERE server = ? AND room_id = ?`, server, room)

	seat, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Seat{}, ErrNotFound
	}

	return seat, err
}

// List returns up to limit seats, most recently played first.
func (s *Store) List(ctx context.Context, limit int) ([]Seat, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT server, room_id, player_id, name, joined_at, played_at
		FROM seats ORDER BY played_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Seat
	for rows.Next() {
		seat, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, seat)
	}

	return out, rows.Err()
}

// Forget removes the seat held in room on server.
func (s *Store) Forget(ctx context.Context, server, room string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seats WHERE server = ? AND room_id = ?`, server, room)
	if err != nil {
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Seat, error) {
	var (
		seat           Seat
		player         string
		joined, played int64
	)

	if err := r.Scan(&seat.Server, &seat.RoomID, &player, &seat.Name, &joined, &played); err != nil {
		return Seat{}, err
	}

	seat.PlayerID = protocol.ID(player)
	seat.Joined = time.UnixMilli(joined).UTC()
	seat.Played = time.UnixMilli(played).UTC()

	return seat, nil
}
