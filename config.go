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
	adminPasswordHash string
	adminTokenSecret  string
	audienceToken     string
	bind              string
	clueSeconds       time.Duration
	guessSeconds      time.Duration
	port              int
	prefix            string
	profile           bool
	sweepInterval     time.Duration
	tlsCert           string
	tlsKey            string
	verbose           bool
	wordlist          string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.clueSeconds < 10*time.Second || c.guessSeconds < 10*time.Second {
		return errors.New("turn budgets below 10s are unplayable")
	}
	if c.adminPasswordHash != "" && c.adminTokenSecret == "" {
		return errors.New("--admin-token-secret is required when --admin-password-hash is set")
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
	v.SetEnvPrefix("WORDSPY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordspy",
		Short:         "A realtime server for team-based word-guessing rooms.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			setupLogging(cfg)
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminPasswordHash, "admin-password-hash", "", "argon2id hash gating the operator console (env: WORDSPY_ADMIN_PASSWORD_HASH)")
	fs.StringVar(&cfg.adminTokenSecret, "admin-token-secret", "", "signing secret for operator tokens (env: WORDSPY_ADMIN_TOKEN_SECRET)")
	fs.StringVar(&cfg.audienceToken, "audience-token", "", "shared token for the audience vote ingest endpoint (env: WORDSPY_AUDIENCE_TOKEN)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDSPY_BIND)")
	fs.DurationVar(&cfg.clueSeconds, "clue-seconds", 90*time.Second, "turn budget while a spymaster is thinking (env: WORDSPY_CLUE_SECONDS)")
	fs.DurationVar(&cfg.guessSeconds, "guess-seconds", 60*time.Second, "turn budget while guessers are guessing (env: WORDSPY_GUESS_SECONDS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WORDSPY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDSPY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WORDSPY_PROFILE)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 5*time.Minute, "interval between sweeps for empty rooms (env: WORDSPY_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WORDSPY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WORDSPY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDSPY_VERBOSE)")
	fs.StringVar(&cfg.wordlist, "wordlist", "", "path to a newline-delimited word pool replacing the built-in one (env: WORDSPY_WORDLIST)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordspy v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
