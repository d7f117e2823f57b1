// Package api exposes the redemption ledger over HTTP. Gated operations take
// the caller address in the request body; the ledger enforces authorization,
// the API only translates errors into status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vaultis-labs/go-vaultis/core/state"
	"github.com/vaultis-labs/go-vaultis/core/withdrawal"
)

// Server hosts the ledger's HTTP interface.
type Server struct {
	ledger *state.LedgerState
	logger *zap.Logger
	http   *http.Server
}

func NewServer(ledger *state.LedgerState, listenAddr string, enableCORS bool, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ledger: ledger,
		logger: logger,
	}

	var handler http.Handler = s.Router()
	if enableCORS {
		handler = cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler(handler)
	}

	s.http = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed separately for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/withdrawal", s.handleCreateWithdrawal).Methods(http.MethodPost)
	v1.HandleFunc("/withdrawal/{id}", s.handleGetWithdrawal).Methods(http.MethodGet)
	v1.HandleFunc("/withdrawal/{id}/fulfill", s.handleFulfillWithdrawal).Methods(http.MethodPost)
	v1.HandleFunc("/account/{address}/withdrawals", s.handleUserWithdrawals).Methods(http.MethodGet)
	v1.HandleFunc("/account/{address}/balances", s.handleBalances).Methods(http.MethodGet)
	v1.HandleFunc("/redemption", s.handleCreateRedemption).Methods(http.MethodPost)
	v1.HandleFunc("/redemption/{id}", s.handleGetRedemption).Methods(http.MethodGet)
	v1.HandleFunc("/redemption/{id}/complete", s.handleCompleteRedemption).Methods(http.MethodPost)
	v1.HandleFunc("/delay", s.handleGetDelay).Methods(http.MethodGet)
	v1.HandleFunc("/delay", s.handleSetDelay).Methods(http.MethodPut)
	v1.HandleFunc("/treasury/credit", s.handleCreditTreasury).Methods(http.MethodPost)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("api server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, withdrawal.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, withdrawal.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, withdrawal.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, withdrawal.ErrDelayNotElapsed):
		status = http.StatusTooEarly
	case errors.Is(err, withdrawal.ErrNotReady):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

type createWithdrawalBody struct {
	Caller    string   `json:"caller"`
	RequestID string   `json:"request_id"`
	User      string   `json:"user"`
	Assets    []string `json:"assets"`
	Amounts   []int64  `json:"amounts"`
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body createWithdrawalBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ledger.CreateWithdrawalRequest(body.Caller, body.RequestID, body.User, body.Assets, body.Amounts); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"request_id": body.RequestID})
}

func (s *Server) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	reqs, err := s.ledger.GetWithdrawalRequests([]string{id})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reqs[0])
}

type fulfillBody struct {
	Caller string `json:"caller"`
}

func (s *Server) handleFulfillWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body fulfillBody
	if !s.decode(w, r, &body) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.ledger.FulfillWithdrawal(body.Caller, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"request_id": id, "status": "fulfilled"})
}

func (s *Server) handleUserWithdrawals(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	ids, err := s.ledger.GetUserWithdrawalRequests(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"request_ids": ids})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]
	balances, err := s.ledger.AccountBalances(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]map[string]int64{"balances": balances})
}

type createRedemptionBody struct {
	Caller     string                 `json:"caller"`
	Redemption *withdrawal.Redemption `json:"redemption"`
}

func (s *Server) handleCreateRedemption(w http.ResponseWriter, r *http.Request) {
	var body createRedemptionBody
	if !s.decode(w, r, &body) {
		return
	}
	if body.Redemption == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "redemption payload missing"})
		return
	}
	if body.Redemption.ID == "" {
		body.Redemption.ID = uuid.NewString()
	}
	if err := s.ledger.RecordRedemptionCreated(body.Caller, body.Redemption); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"redemption_id": body.Redemption.ID})
}

func (s *Server) handleGetRedemption(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rd, err := s.ledger.GetRedemption(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rd)
}

type completeRedemptionBody struct {
	Caller   string   `json:"caller"`
	Assets   []string `json:"assets"`
	Received []int64  `json:"received"`
}

func (s *Server) handleCompleteRedemption(w http.ResponseWriter, r *http.Request) {
	var body completeRedemptionBody
	if !s.decode(w, r, &body) {
		return
	}
	id := mux.Vars(r)["id"]
	totals, err := s.ledger.RecordRedemptionCompleted(body.Caller, id, body.Assets, body.Received)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]int64{"settled_totals": totals})
}

func (s *Server) handleGetDelay(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int64{
		"delay_seconds": int64(s.ledger.WithdrawalDelay() / time.Second),
	})
}

type setDelayBody struct {
	Caller       string `json:"caller"`
	DelaySeconds int64  `json:"delay_seconds"`
}

func (s *Server) handleSetDelay(w http.ResponseWriter, r *http.Request) {
	var body setDelayBody
	if !s.decode(w, r, &body) {
		return
	}
	delay := time.Duration(body.DelaySeconds) * time.Second
	if err := s.ledger.SetWithdrawalDelay(body.Caller, delay); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"delay_seconds": body.DelaySeconds})
}

type creditTreasuryBody struct {
	Caller  string   `json:"caller"`
	Assets  []string `json:"assets"`
	Amounts []int64  `json:"amounts"`
}

func (s *Server) handleCreditTreasury(w http.ResponseWriter, r *http.Request) {
	var body creditTreasuryBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.ledger.CreditTreasury(body.Caller, body.Assets, body.Amounts); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.GetStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
