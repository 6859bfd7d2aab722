/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package api talks to the game server's request/response endpoints: room
// bootstrap and the one-shot snapshot taken when a client attaches.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Seednode/literature/internal/cards"
	"github.com/Seednode/literature/internal/protocol"
)

// ErrBootstrap wraps any failure while taking the initial snapshot.
var ErrBootstrap = errors.New("snapshot failed")

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}

	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server rooted at baseURL.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}

	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() *url.URL {
	u := *c.base

	return &u
}

// Room identifies a seat: the room and the local player in it.
type Room struct {
	RoomID   string      `json:"room_id"`
	PlayerID protocol.ID `json:"player_id"`
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreateRoom opens a new room with name as its first player.
func (c *Client) CreateRoom(ctx context.Context, name string) (Room, error) {
	var out Room
	err := c.do(ctx, http.MethodPost, "create_room", nameRequest{Name: name}, &out)

	return out, err
}

// JoinRoom adds name to an existing room.
func (c *Client) JoinRoom(ctx context.Context, roomID, name string) (Room, error) {
	var out Room
	err := c.do(ctx, http.MethodPost, "join_room/"+url.PathEscape(roomID), nameRequest{Name: name}, &out)
	if out.RoomID == "" {
		out.RoomID = roomID
	}

	return out, err
}

// Hand fetches the player's current cards.
func (c *Client) Hand(ctx context.Context, playerID protocol.ID) ([]cards.Card, error) {
	var out struct {
		Hand []cards.Card `json:"hand"`
	}
	err := c.do(ctx, http.MethodGet, "get_player_hand/"+url.PathEscape(playerID.String()), nil, &out)

	return out.Hand, err
}

// Players fetches the room roster.
func (c *Client) Players(ctx context.Context, roomID string) ([]protocol.Player, error) {
	var out struct {
		Players []protocol.Player `json:"players"`
	}
	err := c.do(ctx, http.MethodGet, "get_room_players/"+url.PathEscape(roomID), nil, &out)

	return out.Players, err
}

// Turn is the room's turn/started/scores triple.
type Turn struct {
	CurrentTurn protocol.ID     `json:"current_turn"`
	Started     bool            `json:"started"`
	Scores      protocol.Scores `json:"scores"`
}

// CurrentTurn fetches whose turn it is, whether the game started, and scores.
func (c *Client) CurrentTurn(ctx context.Context, roomID string) (Turn, error) {
	var out Turn
	err := c.do(ctx, http.MethodGet, "get_current_turn/"+url.PathEscape(roomID), nil, &out)
	if out.Scores == nil {
		out.Scores = protocol.Scores{}
	}

	return out, err
}

// Team fetches the player's team index.
func (c *Client) Team(ctx context.Context, playerID protocol.ID) (int, error) {
	var out struct {
		Team int `json:"team"`
	}
	err := c.do(ctx, http.MethodGet, "get_player_team/"+url.PathEscape(playerID.String()), nil, &out)

	return out.Team, err
}

// Snapshot is the full initial view of a room for one player.
type Snapshot struct {
	Hand    []cards.Card
	Players []protocol.Player
	Turn    Turn
	Team    int
}

// Snapshot fetches hand, roster, turn and team concurrently. Either all four
// succeed or an error wrapping ErrBootstrap is returned with a zero Snapshot.
func (c *Client) Snapshot(ctx context.Context, roomID string, playerID protocol.ID) (Snapshot, error) {
	var snap Snapshot

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hand, err := c.Hand(ctx, playerID)
		if err != nil {
			return fmt.Errorf("hand: %w", err)
		}
		snap.Hand = hand

		return nil
	})

	g.Go(func() error {
		players, err := c.Players(ctx, roomID)
		if err != nil {
			return fmt.Errorf("players: %w", err)
		}
		snap.Players = players

		return nil
	})

	g.Go(func() error {
		turn, err := c.CurrentTurn(ctx, roomID)
		if err != nil {
			return fmt.Errorf("turn: %w", err)
		}
		snap.Turn = turn

		return nil
	})

	g.Go(func() error {
		team, err := c.Team(ctx, playerID)
		if err != nil {
			return fmt.Errorf("team: %w", err)
		}
		snap.Team = team

		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	log.Debug().
		Str("room", roomID).
		Str("player", playerID.String()).
		Int("hand", len(snap.Hand)).
		Int("players", len(snap.Players)).
		Msg("SNAPSHOT: fetched")

	return snap, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	u := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(startTime).Round(time.Microsecond)).
		Msg("API: request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)

		return &Error{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}

	return nil
}
