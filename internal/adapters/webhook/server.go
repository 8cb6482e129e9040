package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/supamail/supamail-gateway/internal/core"
	"go.uber.org/zap"
)

// SignatureVerifier authenticates an inbound-route POST before any state
// is touched.
type SignatureVerifier interface {
	Verify(timestamp, token, signature string) bool
}

// Server is the HTTP boundary of the gateway: the relay's inbound webhook
// plus the manual re-forward endpoint used by the dashboard.
type Server struct {
	service         *core.GatewayService
	verifier        SignatureVerifier
	logger          *zap.Logger
	listenAddr      string
	shutdownTimeout time.Duration
	server          *http.Server
}

// NewServer creates a new webhook server
func NewServer(
	service *core.GatewayService,
	verifier SignatureVerifier,
	logger *zap.Logger,
	listenAddr string,
	shutdownTimeout time.Duration,
) *Server {
	return &Server{
		service:         service,
		verifier:        verifier,
		logger:          logger,
		listenAddr:      listenAddr,
		shutdownTimeout: shutdownTimeout,
	}
}

// Routes builds the HTTP handler; exposed separately for tests
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/inbound", s.handleInbound).Methods(http.MethodPost)
	r.HandleFunc("/logs/{id}/forward", s.handleForwardBlocked).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start starts the webhook server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("Webhook server starting", zap.String("address", s.listenAddr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the webhook server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleInbound processes one relay delivery. Responses mirror what the
// relay expects: 401 invalid signature, 404 unknown recipient, 200 with a
// forwarded/blocked message, 500 otherwise.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed form data"})
		return
	}

	timestamp := r.PostFormValue("timestamp")
	token := r.PostFormValue("token")
	signature := r.PostFormValue("signature")
	if !s.verifier.Verify(timestamp, token, signature) {
		s.logger.Warn("Rejected inbound webhook with invalid signature",
			zap.String("remote_addr", r.RemoteAddr))
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	email := &core.InboundEmail{
		Sender:    r.PostFormValue("from"),
		Recipient: r.PostFormValue("recipient"),
		Subject:   r.PostFormValue("subject"),
		BodyHTML:  r.PostFormValue("body-html"),
		BodyPlain: r.PostFormValue("body-plain"),
		MessageID: token,
	}

	entry, err := s.service.ProcessInbound(r.Context(), email)
	if errors.Is(err, core.ErrUserNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Recipient not found"})
		return
	}
	if err != nil {
		s.logger.Error("Inbound processing failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	if entry.Status == core.StatusBlocked {
		s.writeJSON(w, http.StatusOK, map[string]string{"message": "Email blocked"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Email forwarded"})
}

// handleForwardBlocked re-forwards a quarantined message to its owner
func (s *Server) handleForwardBlocked(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["id"]

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}

	_, err := s.service.ForwardBlocked(r.Context(), entryID, req.UserID)
	if errors.Is(err, core.ErrEntryNotFound) || errors.Is(err, core.ErrUserNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Log not found"})
		return
	}
	if err != nil {
		s.logger.Error("Re-forward failed", zap.String("entry_id", entryID), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal error"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Email forwarded"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
