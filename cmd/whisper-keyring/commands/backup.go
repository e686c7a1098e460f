package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/identity"
	"whisper2/go-keyring/internal/securestore"
)

func exportBackupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-backup",
		Short: "Write a password-protected backup of the recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptSecret("Backup password: ")
			if err != nil {
				return err
			}
			defer zeroBytes(password)
			confirm, err := promptSecret("Repeat password: ")
			if err != nil {
				return err
			}
			defer zeroBytes(confirm)
			if !bytes.Equal(password, confirm) {
				return fmt.Errorf("passwords do not match")
			}

			blob, err := appCtx.Identity.ExportBackup(password)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrNoIdentity):
					return fmt.Errorf("no identity to back up")
				case errors.Is(err, identity.ErrPasswordRequired):
					return fmt.Errorf("the backup password must not be empty")
				}
				return err
			}
			if err := os.WriteFile(out, blob, 0o600); err != nil {
				return err
			}
			fmt.Printf("Backup written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func restoreBackupCmd() *cobra.Command {
	var (
		in         string
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "restore-backup",
		Short: "Restore an identity from a backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			password, err := promptSecret("Backup password: ")
			if err != nil {
				return err
			}
			defer zeroBytes(password)

			id, err := appCtx.Identity.RestoreBackup(data, password, passphrase)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrBackupThrottled):
					return fmt.Errorf("too many restore attempts, try again later")
				case errors.Is(err, securestore.ErrAuthFailed):
					return fmt.Errorf("wrong password or corrupted backup")
				case errors.Is(err, canonical.ErrFormat):
					return fmt.Errorf("%s is not a whisper backup file", in)
				case errors.Is(err, identity.ErrPasswordRequired):
					return fmt.Errorf("the backup password must not be empty")
				}
				return err
			}
			fmt.Printf("Identity restored.\n")
			fmt.Printf("Whisper ID:  %s\n", id.WhisperID)
			fmt.Printf("Fingerprint: %s\n", identity.Fingerprint(id.SigningPublicKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "backup file")
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "BIP39 passphrase the identity was created with, if any")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
