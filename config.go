/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	hostGrace     time.Duration
	minPlayers    int
	port          int
	prefix        string
	profile       bool
	reapInterval  time.Duration
	sessionMaxAge time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.minPlayers < 1 {
		return fmt.Errorf("invalid minimum player count: %d", c.minPlayers)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("JUNTA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "junta",
		Short:         "Relay server for a social deduction game of budgets, coups, and purges.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: JUNTA_BIND)")
	fs.DurationVar(&cfg.hostGrace, "host-grace", 30*time.Second, "grace period before a hostless session is torn down (env: JUNTA_HOST_GRACE)")
	fs.IntVar(&cfg.minPlayers, "min-players", 6, "minimum player count before a game can begin (env: JUNTA_MIN_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: JUNTA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: JUNTA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: JUNTA_PROFILE)")
	fs.DurationVar(&cfg.reapInterval, "reap-interval", 10*time.Minute, "how often expired sessions are swept (env: JUNTA_REAP_INTERVAL)")
	fs.DurationVar(&cfg.sessionMaxAge, "session-max-age", time.Hour, "absolute session age ceiling, regardless of activity (env: JUNTA_SESSION_MAX_AGE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: JUNTA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: JUNTA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: JUNTA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: JUNTA_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newHostCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("junta v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
