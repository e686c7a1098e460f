// Package agent exposes the keyring to other processes on the same
// machine over a loopback HTTP surface.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"whisper2/go-keyring/internal/backup"
	"whisper2/go-keyring/internal/canonical"
	"whisper2/go-keyring/internal/identity"
	"whisper2/go-keyring/internal/platform/ratelimiter"
	"whisper2/go-keyring/internal/securestore"
)

const DefaultAddr = "127.0.0.1:8990"

const (
	maxBodyBytes      = 1 << 20
	requestRatePerSec = 30
	requestBurst      = 60
	limiterIdleTTL    = 10 * time.Minute
)

type Server struct {
	httpServer *http.Server
	manager    *identity.Manager
	log        *slog.Logger
	limiter    *ratelimiter.Keyed
	now        func() time.Time
}

func NewServer(addr string, manager *identity.Manager, log *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		manager: manager,
		log:     log,
		limiter: ratelimiter.New(requestRatePerSec, requestBurst, limiterIdleTTL),
		now:     time.Now,
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/challenge/sign", s.handleSignChallenge)
	mux.HandleFunc("/v1/session", s.handleSession)
	mux.HandleFunc("/v1/backup/contacts/seal", s.handleContactsSeal)
	mux.HandleFunc("/v1/backup/contacts/open", s.handleContactsOpen)
	mux.HandleFunc("/", s.handleNotFound)
	return s
}

// Handler exposes the route table for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.log.Info("agent listening", "addr", s.httpServer.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info("agent stopped")
		return <-errCh
	case err := <-errCh:
		return err
	}
}

type statusResponse struct {
	Provisioned bool   `json:"provisioned"`
	WhisperID   string `json:"whisper_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
	LoggedIn    bool   `json:"logged_in"`
}

type signRequest struct {
	Challenge string `json:"challenge"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

type contactsSealRequest struct {
	Payload string `json:"payload"`
}

type contactsSealResponse struct {
	Blob string `json:"blob"`
}

type contactsOpenRequest struct {
	Blob string `json:"blob"`
}

type contactsOpenResponse struct {
	Payload string `json:"payload"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowRequest(w, r) {
		return
	}

	id, ok, err := s.manager.Current()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	resp := statusResponse{Provisioned: ok, LoggedIn: s.manager.IsLoggedIn()}
	if ok {
		deviceID, err := s.manager.DeviceID()
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		resp.WhisperID = id.WhisperID
		resp.Fingerprint = identity.Fingerprint(id.SigningPublicKey)
		resp.DeviceID = deviceID
	}
	writeJSON(w, resp)
}

func (s *Server) handleSignChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowRequest(w, r) {
		return
	}

	var req signRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	challenge, err := canonical.Decode(req.Challenge)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	sig, err := s.manager.SignChallenge(challenge)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, signResponse{Signature: canonical.Encode(sig)})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !s.allowRequest(w, r) {
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req sessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			s.writeError(w, http.StatusBadRequest, "token is required")
			return
		}
		if err := s.manager.SetSessionToken(req.Token); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.manager.ClearSession(); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleContactsSeal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowRequest(w, r) {
		return
	}

	var req contactsSealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	payload, err := canonical.Decode(req.Payload)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	key, err := s.manager.ContactsKey()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer zeroBytes(key)

	blob, err := backup.SealContacts(key, payload)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, contactsSealResponse{Blob: canonical.Encode(blob)})
}

func (s *Server) handleContactsOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.allowRequest(w, r) {
		return
	}

	var req contactsOpenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	blob, err := canonical.Decode(req.Blob)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	key, err := s.manager.ContactsKey()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	defer zeroBytes(key)

	payload, err := backup.OpenContacts(key, blob)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, contactsOpenResponse{Payload: canonical.Encode(payload)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) allowRequest(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter.Allow(remoteKey(r), s.now()) {
		return true
	}
	s.writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, canonical.ErrFormat):
		s.writeError(w, http.StatusBadRequest, "malformed request")
	case errors.Is(err, identity.ErrNoIdentity):
		s.writeError(w, http.StatusUnauthorized, "no identity provisioned")
	case errors.Is(err, securestore.ErrAuthFailed):
		s.writeError(w, http.StatusUnauthorized, "authentication failed")
	case errors.Is(err, identity.ErrBackupThrottled):
		s.writeError(w, http.StatusTooManyRequests, "try again later")
	default:
		s.log.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func remoteKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if strings.TrimSpace(host) == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
