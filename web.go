/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/literature/internal/state"
)

const timeout time.Duration = 10 * time.Second

// viewer is the part of a session the status server reads.
type viewer interface {
	View(ctx context.Context) (state.View, error)
}

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveHealthCheck(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			errs <- err
		}
	}
}

func serveVersion(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("literature v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("client", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: Version page")
	}
}

// serveState answers with the session's current view as JSON.
func serveState(sess viewer, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()
		securityHeaders(w)

		v, err := sess.View(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)

			return
		}

		data, err := json.Marshal(struct {
			state.View
			Banner string `json:"banner"`
			MyTurn bool   `json:"my_turn"`
		}{v, v.TurnBanner(), v.MyTurn()})
		if err != nil {
			errs <- err
			http.Error(w, "encoding failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("client", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: State")
	}
}

func newStatusRouter(cfg *Config, sess viewer, invite string, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("SERVE: Panic")

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, "An error has occurred. Please try again.\n")
	}

	mux.GET("/healthz", serveHealthCheck(errs))
	mux.GET("/version", serveVersion(errs))
	mux.GET("/state", serveState(sess, errs))
	mux.GET("/qr", serveInviteQR(invite, errs))

	if cfg.profile {
		registerProfileHandlers(mux)
	}

	return mux
}

// serveStatus runs the local status server until ctx ends.
func serveStatus(ctx context.Context, cfg *Config, sess viewer, invite string) error {
	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newStatusRouter(cfg, sess, invite, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	log.Info().Str("addr", "http://"+listener.Addr().String()+"/").Msg("SERVE: Listening")

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("SERVE: Stopped")
		}
	}()

	for {
		select {
		case err := <-errs:
			log.Debug().Err(err).Msg("SERVE: Write failed")
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx)
		}
	}
}

func humanReadableSize(bytes int64) string {
	const unit = 1000
	if bytes < unit {
		return strconv.FormatInt(bytes, 10) + " B"
	}

	value, exp := float64(bytes)/unit, 0
	for value >= unit && exp < 5 {
		value /= unit
		exp++
	}

	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string("kMGTPE"[exp]) + "B"
}
