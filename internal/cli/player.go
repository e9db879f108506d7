package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wildsats-api/internal/client"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/model"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with the configured Nostr key",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			record, err := s.Login(cmd.Context())
			if err != nil {
				if errors.Is(err, model.ErrSignerUnavailable) {
					return fmt.Errorf("no key configured: set --nsec or WILDSATS_NSEC")
				}
				return err
			}
			a.output(cmd.OutOrStdout()).Print(record)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if err := s.Logout(); err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).PrintMessage("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			npub, err := a.targetIdentity(nil)
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).PrintMessage(npub)
			return nil
		},
	}
}

func newCharactersCmd(a *app) *cobra.Command {
	var who string

	cmd := &cobra.Command{
		Use:   "characters",
		Short: "List owned characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.output(cmd.OutOrStdout())

			if who != "" {
				if _, err := identity.NormalizePublicKey(who); err != nil {
					return err
				}
				characters, err := client.NewClient(a.cfg.ServerURL).GetCharacters(cmd.Context(), who)
				if errors.Is(err, model.ErrUserNotFound) {
					characters, err = []string{model.DefaultCharacter}, nil
				}
				if err != nil {
					return err
				}
				out.Print(characterList(characters))
				return nil
			}

			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			out.Print(characterList(s.Snapshot().Characters))
			return nil
		},
	}

	cmd.Flags().StringVar(&who, "identity", "", "Look up another player's npub instead of the session")
	return cmd
}

func newBuyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <animal>",
		Short: "Buy an animal from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			result, err := s.Purchase(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newInventoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inventory commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <item>",
		Short: "Add an item to the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.activeSession(cmd.Context())
			if err != nil {
				return err
			}
			inventory, err := s.AddItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(inventoryList(inventory))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [npub]",
		Short: "Show the inventory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			npub, err := a.targetIdentity(args)
			if err != nil {
				return err
			}
			record, err := client.NewClient(a.cfg.ServerURL).GetPlayer(cmd.Context(), npub)
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(inventoryList(record.Inventory))
			return nil
		},
	})

	return cmd
}

func newCatalogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the animals for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			animals, err := client.NewClient(a.cfg.ServerURL).Catalog(cmd.Context())
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(animals)
			return nil
		},
	}
}

func newKeygenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new Nostr key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := identity.GenerateKeySigner()
			if err != nil {
				return err
			}
			nsec, err := key.SecretNsec()
			if err != nil {
				return err
			}
			pub, err := key.GetPublicKey(cmd.Context())
			if err != nil {
				return err
			}
			npub, err := identity.EncodePublicKey(pub)
			if err != nil {
				return err
			}
			a.output(cmd.OutOrStdout()).Print(map[string]string{"npub": npub, "nsec": nsec})
			return nil
		},
	}
}
