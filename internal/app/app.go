// Package app wires the keyring stack: configuration in, ready-to-use
// services out.
package app

import (
	"log/slog"
	"time"

	"whisper2/go-keyring/internal/config"
	"whisper2/go-keyring/internal/identity"
	"whisper2/go-keyring/internal/keystore"
	"whisper2/go-keyring/internal/platform/privacylog"
	"whisper2/go-keyring/internal/platform/ratelimiter"
	"whisper2/go-keyring/internal/securestore"
)

// Backup-restore attempts refill at one per minute.
const (
	restoreRatePerSec = 1.0 / 60.0
	restoreBurst      = 3
	restoreIdleTTL    = time.Hour
)

// App bundles the wired services behind a single open/close pair.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	Keystore keystore.Provider
	Envelope *securestore.Envelope
	Store    *securestore.SecretStore
	Identity *identity.Manager
}

// Open builds the full stack for cfg: sanitized logger, file-backed key
// store, protection-key envelope, secret store and identity manager.
func Open(cfg config.Config) (*App, error) {
	log := privacylog.NewLogger(cfg.Level())

	provider := keystore.NewFileProvider(cfg.KeystoreDir)
	envelope := securestore.NewEnvelope(provider, cfg.KeystoreAlias, cfg.DataDir)
	store, err := securestore.OpenSecretStore(cfg.DataDir, envelope)
	if err != nil {
		return nil, err
	}

	limiter := ratelimiter.New(restoreRatePerSec, restoreBurst, restoreIdleTTL)
	manager := identity.NewManager(store, envelope, log, cfg.Backup, limiter)

	return &App{
		Config:   cfg,
		Log:      log,
		Keystore: provider,
		Envelope: envelope,
		Store:    store,
		Identity: manager,
	}, nil
}

// Close wipes the cached protection key. Stored secrets stay on disk.
func (a *App) Close() {
	a.Envelope.Close()
}
