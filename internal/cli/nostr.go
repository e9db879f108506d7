package cli

import (
	"os/signal"
	"syscall"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/cobra"

	"wildsats-api/internal/client"
	"wildsats-api/internal/identity"
)

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [npub]",
		Short: "Look up a Nostr profile on the relays",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := a.targetIdentity(args)
			if err != nil {
				return err
			}
			profile, err := a.resolver().ResolveProfile(cmd.Context(), who)
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(profile)
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "watch [npub]",
		Short: "Stream text notes from an identity",
		Long: `Subscribe to kind-1 text notes across the configured relays. Dropped relay
connections are restarted automatically. Press Ctrl+C to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := a.targetIdentity(args)
			if err != nil {
				return err
			}
			pubkey, err := identity.NormalizePublicKey(who)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sub := identity.Subscribe(ctx, identity.SubscribeConfig{
				Relays: a.cfg.Relays,
				Client: a.relays,
				Filter: nostr.Filter{Kinds: []int{nostr.KindTextNote}, Authors: []string{pubkey}},
				Logger: a.logger,
			})
			defer sub.Cancel()

			out := a.output(cmd.OutOrStdout())
			seen := 0
			for ev := range sub.Events() {
				out.Print(ev)
				seen++
				if limit > 0 && seen >= limit {
					break
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many notes (0 streams until interrupted)")
	return cmd
}

// targetIdentity returns the first argument, or the saved session identity.
func (a *app) targetIdentity(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	npub, err := client.LoadSessionFile(a.cfg.SessionFile)
	if err != nil {
		return "", err
	}
	if npub == "" {
		return "", client.ErrNotLoggedIn
	}
	return npub, nil
}
