package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"whisper2/go-keyring/internal/identity"
)

func initCmd() *cobra.Command {
	var (
		force      bool
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new identity and print its recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			if force {
				if err := appCtx.Identity.Logout(false); err != nil {
					return err
				}
			}
			mnemonic, id, err := appCtx.Identity.Create(passphrase)
			if err != nil {
				if errors.Is(err, identity.ErrIdentityExists) {
					return fmt.Errorf("an identity already exists; rerun with --force to replace it")
				}
				return err
			}
			fmt.Printf("Identity created.\n")
			fmt.Printf("Whisper ID:  %s\n", id.WhisperID)
			fmt.Printf("Fingerprint: %s\n", identity.Fingerprint(id.SigningPublicKey))
			fmt.Printf("\nRecovery phrase (shown only once, write it down):\n\n  %s\n", mnemonic)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "optional BIP39 passphrase")
	return cmd
}
