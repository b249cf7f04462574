package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/service/ledger"
)

const (
	DefaultCurrency = "XOF"
	DefaultNote     = "Transfert P2P"
	DefaultLimit    = 50
)

type accountRepo interface {
	GetByMSISDN(ctx context.Context, msisdn string) (*domain.Account, error)
}

type hubClient interface {
	ExecuteTransfer(ctx context.Context, req hub.TransferRequest) hub.Outcome
}

type transferLedger interface {
	Record(ctx context.Context, e ledger.Entry) (*domain.TransferRecord, error)
	Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error)
	Count(ctx context.Context, filter domain.TransferFilter) (int, error)
}

type Service struct {
	accounts accountRepo
	client   hubClient
	ledger   transferLedger
}

func NewService(accounts accountRepo, client hubClient, l transferLedger) *Service {
	return &Service{accounts: accounts, client: client, ledger: l}
}

type P2PRequest struct {
	SenderMSISDN   string
	ReceiverMSISDN string
	Amount         decimal.Decimal
	Currency       string
	Note           string
}

type P2PResult struct {
	Record  *domain.TransferRecord
	Outcome hub.Outcome
}

// SendP2P executes one standalone transfer. A failed hub call is not an
// error: it is recorded and returned in the result.
func (s *Service) SendP2P(ctx context.Context, req P2PRequest) (*P2PResult, error) {
	log := logging.FromContext(ctx)

	if req.ReceiverMSISDN == "" {
		return nil, fmt.Errorf("SendP2P: receiver required: %w", domain.ErrInvalidRequest)
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("SendP2P: %w", err)
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}
	if req.Note == "" {
		req.Note = DefaultNote
	}
	for _, f := range []struct {
		name  string
		value string
		limit int
	}{
		{"receiver_msisdn", req.ReceiverMSISDN, domain.MaxIDValueLen},
		{"currency", req.Currency, domain.MaxCurrencyLen},
		{"note", req.Note, domain.MaxNoteLen},
	} {
		if err := domain.CheckLength(f.name, f.value, f.limit); err != nil {
			return nil, fmt.Errorf("SendP2P: %w", err)
		}
	}

	sender, err := s.accounts.GetByMSISDN(ctx, req.SenderMSISDN)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("SendP2P: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("SendP2P: %w", err)
	}

	out := s.client.ExecuteTransfer(ctx, hub.TransferRequest{
		SenderMSISDN:    sender.MSISDN,
		ReceiverIDType:  domain.IDTypeMSISDN,
		ReceiverIDValue: req.ReceiverMSISDN,
		Amount:          req.Amount.String(),
		Currency:        req.Currency,
		Note:            req.Note,
	})

	rec, err := s.ledger.Record(ctx, ledger.Entry{
		Outcome:         out,
		SenderID:        sender.ID,
		ReceiverIDType:  domain.IDTypeMSISDN,
		ReceiverIDValue: req.ReceiverMSISDN,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Note:            req.Note,
	})
	if err != nil {
		log.Error("hub transfer executed but not recorded",
			"home_transaction_id", out.HomeTransactionID,
			"success", out.Success,
			"error", err,
		)
		return nil, fmt.Errorf("SendP2P: %w", err)
	}

	log.Info("p2p transfer recorded",
		"transfer_id", rec.ID,
		"status", rec.Status,
		"home_transaction_id", rec.HomeTransactionID,
	)
	return &P2PResult{Record: rec, Outcome: out}, nil
}

type ListRequest struct {
	SenderMSISDN string
	Status       string
	Limit        int
}

type ListResult struct {
	Count   int
	Records []domain.TransferRecord
}

// List returns the newest records first. Count is the full filtered total.
func (s *Service) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	var filter domain.TransferFilter

	if req.SenderMSISDN != "" {
		sender, err := s.accounts.GetByMSISDN(ctx, req.SenderMSISDN)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &ListResult{}, nil
			}
			return nil, fmt.Errorf("List: %w", err)
		}
		filter.SenderID = &sender.ID
	}
	if req.Status != "" {
		status := domain.TransferStatus(req.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("List: status %q: %w", req.Status, domain.ErrInvalidRequest)
		}
		filter.Status = &status
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	count, err := s.ledger.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	records, err := s.ledger.Query(ctx, filter, domain.OrderCreatedDesc, limit)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	return &ListResult{Count: count, Records: records}, nil
}
