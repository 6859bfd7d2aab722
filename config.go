/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	detach         bool
	history        string
	inviteBase     string
	natsSubject    string
	natsURL        string
	pendingTimeout time.Duration
	player         string
	port           int
	profile        bool
	server         string
	timeout        time.Duration
	verbose        bool
	wsPath         string
}

func (c *Config) validate() error {
	if c.port < 0 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 0-65535 inclusive): %d", c.port)
	}

	u, err := url.Parse(c.server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url (must be http:// or https://): %q", c.server)
	}

	if c.timeout <= 0 {
		return errors.New("--timeout must be positive")
	}
	if c.pendingTimeout <= 0 {
		return errors.New("--pending-timeout must be positive")
	}

	return nil
}

// wsURL is the push channel endpoint on the configured server.
func (c *Config) wsURL() string {
	u, err := url.Parse(strings.TrimSuffix(c.server, "/"))
	if err != nil {
		return ""
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	return u.JoinPath(c.wsPath).String()
}

// invite is the link other players open to join room.
func (c *Config) invite(room string) string {
	base := c.inviteBase
	if base == "" {
		base = c.server
	}

	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(room)
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "literature.db"
	}

	return filepath.Join(dir, "literature", "history.db")
}

// bindFlags lets every flag in fs be set from a LITERATURE_* variable.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("LITERATURE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "literature",
		Short:         "Play Literature, the team card game, from a terminal.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cfg)

			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()

	fs.StringVarP(&cfg.bind, "bind", "b", "127.0.0.1", "address for the status server to bind to (env: LITERATURE_BIND)")
	fs.StringVar(&cfg.history, "history", defaultHistoryPath(), "path to the seat history database (env: LITERATURE_HISTORY)")
	fs.StringVar(&cfg.inviteBase, "invite-base", "", "base url for room invite links, defaults to --server (env: LITERATURE_INVITE_BASE)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "literature.events", "subject prefix for journalled events (env: LITERATURE_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "nats server to journal room events to, empty disables (env: LITERATURE_NATS_URL)")
	fs.DurationVar(&cfg.pendingTimeout, "pending-timeout", 10*time.Second, "time to wait for the server to answer an ask or declaration (env: LITERATURE_PENDING_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 0, "port for the status server, 0 disables (env: LITERATURE_PORT)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers on the status server (env: LITERATURE_PROFILE)")
	fs.StringVarP(&cfg.server, "server", "s", "http://localhost:5000", "game server url (env: LITERATURE_SERVER)")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "timeout for requests to the game server (env: LITERATURE_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: LITERATURE_VERBOSE)")
	fs.StringVar(&cfg.wsPath, "ws-path", "/ws", "path of the event channel on the game server (env: LITERATURE_WS_PATH)")

	bindFlags(v, fs)

	cmd.AddCommand(
		newCreateCmd(cfg, v),
		newJoinCmd(cfg, v),
		newPlayCmd(cfg, v),
		newRoomsCmd(cfg),
		newWatchCmd(cfg),
		newVersionCmd(),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("literature v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newCreateCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room and take the first seat in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return createRoom(cmd.Context(), cfg, cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().BoolVarP(&cfg.detach, "detach", "d", false, "print the seat and exit instead of playing (env: LITERATURE_DETACH)")
	bindFlags(v, cmd.Flags())

	return cmd
}

func newJoinCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <room> <name>",
		Short: "Take a seat in an existing room",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return joinRoom(cmd.Context(), cfg, cmd.OutOrStdout(), args[0], args[1])
		},
	}

	cmd.Flags().BoolVarP(&cfg.detach, "detach", "d", false, "print the seat and exit instead of playing (env: LITERATURE_DETACH)")
	bindFlags(v, cmd.Flags())

	return cmd
}

func newPlayCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <room>",
		Short: "Return to a room you already have a seat in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resumeRoom(cmd.Context(), cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.player, "player", "", "player id to play as, defaults to the saved seat (env: LITERATURE_PLAYER)")
	bindFlags(v, cmd.Flags())

	return cmd
}

func newRoomsCmd(cfg *Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List saved seats, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRooms(cmd.Context(), cfg, cmd.OutOrStdout(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of seats to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <room>",
		Short: "Remove the saved seat for a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return forgetRoom(cmd.Context(), cfg, cmd.OutOrStdout(), args[0])
		},
	})

	return cmd
}

func newWatchCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <room>",
		Short: "Follow a room's journalled events from nats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRoom(cmd.Context(), cfg, cmd.OutOrStdout(), args[0])
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version and exit",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "literature v%s\n", releaseVersion)
		},
	}
}
