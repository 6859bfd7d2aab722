/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/api"
)

const logDate string = `2006-01-02T15:04:05.000-07:00`

func setupLogging(cfg *Config) {
	zerolog.TimeFieldFormat = logDate

	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logDate}).
		With().
		Timestamp().
		Logger()
}

// explain turns an error into the line shown to the player.
func explain(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	return err.Error()
}
