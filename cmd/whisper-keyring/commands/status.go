package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"whisper2/go-keyring/internal/identity"
	"whisper2/go-keyring/internal/securestore"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the provisioning state",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Data dir:    %s\n", appCtx.Config.DataDir)

			id, ok, err := appCtx.Identity.Current()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Identity:    not provisioned")
			} else {
				deviceID, err := appCtx.Identity.DeviceID()
				if err != nil {
					return err
				}
				fmt.Println("Identity:    provisioned")
				fmt.Printf("Whisper ID:  %s\n", id.WhisperID)
				fmt.Printf("Signing:     %s\n", identity.Fingerprint(id.SigningPublicKey))
				fmt.Printf("Encryption:  %s\n", identity.Fingerprint(id.EncryptionPublicKey))
				fmt.Printf("Device ID:   %s\n", deviceID)
			}

			if appCtx.Identity.IsLoggedIn() {
				fmt.Println("Session:     active")
			} else {
				fmt.Println("Session:     none")
			}

			present, err := appCtx.Keystore.ContainsAlias(appCtx.Config.KeystoreAlias)
			if err != nil {
				return err
			}
			state := "absent"
			if present {
				state = "present"
			}
			fmt.Printf("Keystore:    %s (%s)\n", appCtx.Config.KeystoreAlias, state)

			var filled []string
			for _, slot := range securestore.KnownSlots() {
				if appCtx.Store.Contains(slot) {
					filled = append(filled, slot)
				}
			}
			if len(filled) == 0 {
				fmt.Println("Slots:       (none)")
			} else {
				fmt.Printf("Slots:       %s\n", strings.Join(filled, ", "))
			}
			return nil
		},
	}
}
