package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/service/transfer"
)

type transferService interface {
	SendP2P(ctx context.Context, req transfer.P2PRequest) (*transfer.P2PResult, error)
	List(ctx context.Context, req transfer.ListRequest) (*transfer.ListResult, error)
}

type TransferHandler struct {
	transfers transferService
}

func NewTransferHandler(transfers transferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type p2pRequest struct {
	SenderMSISDN   string          `json:"sender_msisdn"`
	ReceiverMSISDN string          `json:"receiver_msisdn"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Note           string          `json:"note"`
}

func (r p2pRequest) Validate() []FieldError {
	var errs []FieldError

	if r.SenderMSISDN == "" {
		errs = append(errs, FieldError{Field: "sender_msisdn", Message: "required"})
	}
	if r.ReceiverMSISDN == "" {
		errs = append(errs, FieldError{Field: "receiver_msisdn", Message: "required"})
	}
	if !r.Amount.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}
	if len(r.Currency) > 10 {
		errs = append(errs, FieldError{Field: "currency", Message: "at most 10 characters"})
	}
	if len(r.Note) > 255 {
		errs = append(errs, FieldError{Field: "note", Message: "at most 255 characters"})
	}

	return errs
}

type transferDTO struct {
	ID                uuid.UUID       `json:"id"`
	SenderID          uuid.UUID       `json:"sender_id"`
	ReceiverIDType    string          `json:"receiver_id_type"`
	ReceiverIDValue   string          `json:"receiver_id_value"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	TransferID        *string         `json:"transfer_id"`
	HomeTransactionID string          `json:"home_transaction_id"`
	Note              string          `json:"note"`
	BulkJobID         *uuid.UUID      `json:"bulk_job_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

func toTransferDTO(t *domain.TransferRecord) transferDTO {
	return transferDTO{
		ID:                t.ID,
		SenderID:          t.SenderID,
		ReceiverIDType:    t.ReceiverIDType,
		ReceiverIDValue:   t.ReceiverIDValue,
		Amount:            t.Amount,
		Currency:          t.Currency,
		Status:            string(t.Status),
		TransferID:        t.RemoteTransferID,
		HomeTransactionID: t.HomeTransactionID,
		Note:              t.Note,
		BulkJobID:         t.BulkJobID,
		CreatedAt:         t.CreatedAt,
	}
}

type transferFailureDetails struct {
	ID                uuid.UUID `json:"id"`
	HomeTransactionID string    `json:"home_transaction_id"`
	Reason            string    `json:"reason"`
}

func (h *TransferHandler) SendP2P(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req p2pRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.transfers.SendP2P(r.Context(), transfer.P2PRequest{
		SenderMSISDN:   req.SenderMSISDN,
		ReceiverMSISDN: req.ReceiverMSISDN,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Note:           req.Note,
	})
	if err != nil {
		log.Warn("p2p transfer failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	if !res.Outcome.Success {
		RespondAppError(w, ErrTransferFailed, transferFailureDetails{
			ID:                res.Record.ID,
			HomeTransactionID: res.Outcome.HomeTransactionID,
			Reason:            res.Outcome.Error,
		})
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransferDTO(res.Record))
}

type transferListDTO struct {
	Count     int           `json:"count"`
	Transfers []transferDTO `json:"transfers"`
}

func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			RespondValidationError(w, []FieldError{{Field: "limit", Message: "must be a positive integer"}})
			return
		}
		limit = n
	}

	res, err := h.transfers.List(r.Context(), transfer.ListRequest{
		SenderMSISDN: q.Get("sender_msisdn"),
		Status:       q.Get("status"),
		Limit:        limit,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer listing failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := transferListDTO{Count: res.Count, Transfers: make([]transferDTO, 0, len(res.Records))}
	for i := range res.Records {
		dto.Transfers = append(dto.Transfers, toTransferDTO(&res.Records[i]))
	}
	RespondSuccess(w, http.StatusOK, dto)
}
