// Package telemetry exposes the keyring's operation counters on the
// default prometheus registry; the agent serves them at /metrics.
// Counters carry totals only, never identifiers or key material.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ReasonFormat labels open failures caused by malformed wrapped data.
	ReasonFormat = "format"
	// ReasonAuth labels open failures caused by AEAD tag mismatch.
	ReasonAuth = "auth"
)

var (
	IdentitiesDerived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_identities_derived_total",
		Help: "Identities derived from a mnemonic across create, import and restore flows.",
	})

	EnvelopeSeals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_envelope_seals_total",
		Help: "Secrets sealed into the at-rest envelope.",
	})

	EnvelopeOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_envelope_opens_total",
		Help: "Secrets opened from the at-rest envelope.",
	})

	EnvelopeOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whisper_keyring_envelope_open_failures_total",
		Help: "Envelope open failures by reason.",
	}, []string{"reason"})

	ChallengesSigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_challenges_signed_total",
		Help: "Authentication challenges signed with the identity signing key.",
	})

	StoreWipes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_store_wipes_total",
		Help: "Bulk wipes of the secret store.",
	})

	BackupThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whisper_keyring_backup_decrypts_throttled_total",
		Help: "Seed-backup decrypt attempts rejected by the rate limiter.",
	})
)
