/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package channel is the persistent push connection to a room. Room and
// player are sent once, at handshake; after that the server pushes events
// and accepts ask_card and declare_set commands.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/protocol"
)

var ErrClosed = errors.New("channel closed")

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
	recvBuffer = 64
)

// Options configures a channel.
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host:5000/ws.
	URL      string
	RoomID   string
	PlayerID protocol.ID
	Header   http.Header
	Dialer   *websocket.Dialer
}

// Channel is one open connection. Events are delivered on Events in the
// order the server emitted them; the channel is closed when the
// connection ends.
type Channel struct {
	conn   *websocket.Conn
	room   string
	player protocol.ID

	events chan protocol.Event
	send   chan protocol.Envelope
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Open dials the server and starts the read and write pumps.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}

	q := u.Query()
	q.Set("room_id", opts.RoomID)
	q.Set("player_id", opts.PlayerID.String())
	u.RawQuery = q.Encode()

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), opts.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}

	c := &Channel{
		conn:   conn,
		room:   opts.RoomID,
		player: opts.PlayerID,
		events: make(chan protocol.Event, recvBuffer),
		send:   make(chan protocol.Envelope, sendBuffer),
		done:   make(chan struct{}),
	}

	log.Info().Str("room", c.room).Str("player", c.player.String()).Msg("CHANNEL: Connected")

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Events returns the inbound event stream.
func (c *Channel) Events() <-chan protocol.Event {
	return c.events
}

// Err reports why the connection ended, or nil if it is still open or was
// closed locally.
func (c *Channel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.err
}

func (c *Channel) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// AskCard queues an ask_card command. It does not wait for a reply.
func (c *Channel) AskCard(cmd protocol.AskCard) error {
	return c.enqueue(protocol.CommandAskCard, cmd)
}

// DeclareSet queues a declare_set command. It does not wait for a reply.
func (c *Channel) DeclareSet(cmd protocol.DeclareSet) error {
	return c.enqueue(protocol.CommandDeclareSet, cmd)
}

func (c *Channel) enqueue(name string, v any) error {
	env, err := protocol.Encode(name, v)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close tears the connection down. It is safe to call more than once.
func (c *Channel) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.done)

		deadline := time.Now().Add(writeWait)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

		err = c.conn.Close()

		log.Info().Str("room", c.room).Str("player", c.player.String()).Msg("CHANNEL: Disconnected")
	})

	return err
}

func (c *Channel) readPump() {
	defer close(c.events)

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				c.fail(fmt.Errorf("read: %w", err))
				_ = c.Close()
			}

			return
		}

		ev, err := protocol.Decode(env)
		if err != nil {
			log.Warn().Err(err).Str("room", c.room).Msg("CHANNEL: Dropped frame")

			continue
		}

		log.Debug().Str("room", c.room).Str("event", ev.Name).Msg("CHANNEL: Received")

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) writePump() {
	for {
		select {
		case env := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				c.fail(fmt.Errorf("write %s: %w", env.Event, err))
				_ = c.Close()

				return
			}

			log.Debug().Str("room", c.room).Str("command", env.Event).Msg("CHANNEL: Sent")
		case <-c.done:
			return
		}
	}
}
