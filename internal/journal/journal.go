/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package journal mirrors a room's inbound events onto NATS so other tools
// can follow a game without holding a seat in it.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/protocol"
)

const DefaultSubject = "literature.events"

var ErrNoRoom = errors.New("room id is required")

// Entry is one journalled event.
type Entry struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

// Decode returns the typed event carried by e.
func (e Entry) Decode() (protocol.Event, error) {
	return protocol.Decode(protocol.Envelope{Event: e.Event, Data: e.Data})
}

type Journal struct {
	nc      *nats.Conn
	subject string
}

// Connect dials the NATS server at url. Events for a room are published to
// "<subject>.<room>".
func Connect(url, subject string) (*Journal, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	nc, err := nats.Connect(url,
		nats.Name("literature"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("JOURNAL: Disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("JOURNAL: Reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Str("subject", subject).Msg("JOURNAL: Connected")

	return &Journal{nc: nc, subject: subject}, nil
}

// Subject returns the subject events for room are published on.
func (j *Journal) Subject(room string) string {
	return j.subject + "." + strings.ReplaceAll(room, ".", "_")
}

// Record publishes ev for room.
func (j *Journal) Record(_ context.Context, room string, ev protocol.Event) error {
	if room == "" {
		return ErrNoRoom
	}

	env, err := protocol.Encode(ev.Name, ev.Payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Entry{Room: room, Event: env.Event, Data: env.Data, At: time.Now().UTC()})
	if err != nil {
		return err
	}

	if err := j.nc.Publish(j.Subject(room), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Name, err)
	}

	log.Debug().Str("room", room).Str("event", ev.Name).Msg("JOURNAL: Published")

	return nil
}

// Follow calls fn for every entry journalled for room until ctx ends.
func (j *Journal) Follow(ctx context.Context, room string, fn func(Entry)) error {
	if room == "" {
		return ErrNoRoom
	}

	sub, err := j.nc.Subscribe(j.Subject(room), func(msg *nats.Msg) {
		var e Entry
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("JOURNAL: Dropped entry")

			return
		}

		fn(e)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	if err := j.nc.Flush(); err != nil {
		return err
	}

	<-ctx.Done()

	return ctx.Err()
}

// Flush waits until the server has processed everything published so far.
func (j *Journal) Flush() error {
	return j.nc.Flush()
}

// Close drains pending publishes and disconnects.
func (j *Journal) Close() error {
	return j.nc.Drain()
}
