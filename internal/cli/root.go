// Package cli implements the wildsats command line client.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"wildsats-api/internal/client"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/logging"
)

// version is stamped into log records.
const version = "1.0.0"

// app carries configuration and injectable dependencies for all commands.
type app struct {
	cfg    *Config
	relays identity.RelayClient
	logger *slog.Logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{cfg: DefaultConfig()})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wildsats",
		Short: "CLI client for the wildsats player API",
		Long: `wildsats logs in with a Nostr key and manages the player's characters and
inventory through the wildsats API.

The secret key is read from --nsec or WILDSATS_NSEC. After login the npub is
kept in the session file so later commands can run without the key.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger == nil {
				a.logger = logging.Nop()
				if a.cfg.Verbose {
					a.logger = logging.Setup("wildsats", version, "text", true, cmd.ErrOrStderr())
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfg.ServerURL, "server", a.cfg.ServerURL, "Server URL (env: WILDSATS_SERVER)")
	flags.StringVar(&a.cfg.Nsec, "nsec", a.cfg.Nsec, "Secret key as nsec or hex (env: WILDSATS_NSEC)")
	flags.StringVar(&a.cfg.SessionFile, "session-file", a.cfg.SessionFile, "Session file path (env: WILDSATS_SESSION_FILE)")
	flags.StringSliceVar(&a.cfg.Relays, "relay", a.cfg.Relays, "Relay URL, repeatable (env: WILDSATS_RELAYS)")
	flags.DurationVar(&a.cfg.RelayTimeout, "relay-timeout", a.cfg.RelayTimeout, "Profile lookup bound")
	flags.BoolVar(&a.cfg.NoProfile, "no-profile", a.cfg.NoProfile, "Skip relay profile lookup on login")
	flags.StringVarP(&a.cfg.Output, "output", "o", a.cfg.Output, "Output format: text, json")
	flags.BoolVarP(&a.cfg.Verbose, "verbose", "v", a.cfg.Verbose, "Verbose output")

	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newLogoutCmd(a))
	rootCmd.AddCommand(newWhoamiCmd(a))
	rootCmd.AddCommand(newCharactersCmd(a))
	rootCmd.AddCommand(newBuyCmd(a))
	rootCmd.AddCommand(newInventoryCmd(a))
	rootCmd.AddCommand(newCatalogCmd(a))
	rootCmd.AddCommand(newProfileCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newKeygenCmd(a))

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func (a *app) output(w io.Writer) *Output {
	return NewOutput(a.cfg.Output, w)
}

// signer returns the configured key, or nil when none is set.
func (a *app) signer() (*identity.KeySigner, error) {
	if a.cfg.Nsec == "" {
		return nil, nil
	}
	return identity.NewKeySigner(a.cfg.Nsec)
}

func (a *app) resolver() *identity.ProfileResolver {
	return identity.NewProfileResolver(identity.ResolverConfig{
		Relays:  a.cfg.Relays,
		Client:  a.relays,
		Timeout: a.cfg.RelayTimeout,
		Logger:  a.logger,
	})
}

// session builds a Session wired to the configured server, key and relays.
func (a *app) session() (*client.Session, error) {
	key, err := a.signer()
	if err != nil {
		return nil, err
	}

	var opts []client.Option
	cfg := client.SessionConfig{
		SessionFile: a.cfg.SessionFile,
		Logger:      a.logger,
	}
	if key != nil {
		opts = append(opts, client.WithSigner(key))
		cfg.Signer = key
	}
	if !a.cfg.NoProfile {
		cfg.Resolver = a.resolver()
	}
	cfg.Client = client.NewClient(a.cfg.ServerURL, opts...)

	return client.NewSession(cfg), nil
}

// activeSession resumes the saved session, logging in with the key when there is none.
func (a *app) activeSession(ctx context.Context) (*client.Session, error) {
	s, err := a.session()
	if err != nil {
		return nil, err
	}
	resumed, err := s.Resume(ctx)
	if err != nil {
		return nil, err
	}
	if !resumed {
		if _, err := s.Login(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}
