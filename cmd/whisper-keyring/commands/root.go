package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"whisper2/go-keyring/internal/app"
	"whisper2/go-keyring/internal/config"
)

var (
	configPath string
	dataDir    string
	appCtx     *app.App
)

func Execute() error {
	root := &cobra.Command{
		Use:           "whisper-keyring",
		Short:         "Identity derivation and secure key storage for whisper2",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(configPath)
			if dataDir != "" {
				cfg.DataDir = dataDir
				cfg.KeystoreDir = filepath.Join(dataDir, "keystore")
			}
			a, err := app.Open(cfg)
			if err != nil {
				return err
			}
			appCtx = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx != nil {
				appCtx.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (optional)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.whisper-keyring)")

	root.AddCommand(
		initCmd(),
		recoverCmd(),
		statusCmd(),
		exportBackupCmd(),
		restoreBackupCmd(),
		sessionCmd(),
		wipeCmd(),
		serveCmd(),
	)
	return root.Execute()
}
