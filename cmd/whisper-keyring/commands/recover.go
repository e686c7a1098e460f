package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"whisper2/go-keyring/internal/identity"
)

func recoverCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Restore an identity from its recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, err := promptSecret("Recovery phrase: ")
			if err != nil {
				return err
			}
			defer zeroBytes(phrase)

			id, err := appCtx.Identity.Import(string(phrase), passphrase)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidMnemonic) {
					return fmt.Errorf("the recovery phrase is not a valid mnemonic")
				}
				return err
			}
			fmt.Printf("Identity restored.\n")
			fmt.Printf("Whisper ID:  %s\n", id.WhisperID)
			fmt.Printf("Fingerprint: %s\n", identity.Fingerprint(id.SigningPublicKey))
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "optional BIP39 passphrase")
	return cmd
}
