package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/josh-kwaku/hub-transfers/internal/logging"
)

// rejectedPrefix marks receivers the mock hub refuses, so failure paths can
// be exercised locally.
const rejectedPrefix = "000"

type party struct {
	DisplayName string `json:"displayName,omitempty"`
	IDType      string `json:"idType"`
	IDValue     string `json:"idValue"`
}

type transferRequest struct {
	From              party  `json:"from"`
	To                party  `json:"to"`
	AmountType        string `json:"amountType"`
	Currency          string `json:"currency"`
	Amount            string `json:"amount"`
	TransactionType   string `json:"transactionType"`
	Note              string `json:"note"`
	HomeTransactionID string `json:"homeTransactionId"`
}

func main() {
	logging.Init("mock-hub", "info", os.Getenv("APP_ENV"))

	addr := os.Getenv("MOCK_HUB_ADDR")
	if addr == "" {
		addr = ":4001"
	}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/transfers", handleTransfer)

	slog.Info("mock hub started", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed transfer request"})
		return
	}

	log := slog.With("home_transaction_id", req.HomeTransactionID, "receiver", req.To.IDValue)

	if strings.HasPrefix(req.To.IDValue, rejectedPrefix) {
		log.Info("transfer rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Party not found for " + req.To.IDType + " " + req.To.IDValue,
		})
		return
	}

	log.Info("transfer accepted", "amount", req.Amount, "currency", req.Currency)
	writeJSON(w, http.StatusOK, map[string]any{
		"transferId":        uuid.NewString(),
		"currentState":      "COMPLETED",
		"homeTransactionId": req.HomeTransactionID,
		"from":              req.From,
		"to":                req.To,
		"amount":            req.Amount,
		"currency":          req.Currency,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
