package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/metrics"
)

const (
	transactionTypeTransfer = "TRANSFER"
	amountTypeSend          = "SEND"
	maxResponseBytes        = 1 << 20
	simulatedIDPrefix       = "SIM-"
)

type Config struct {
	BaseURL        string
	DisplayName    string
	SimulationMode bool
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type TransferRequest struct {
	SenderMSISDN    string
	ReceiverIDType  string
	ReceiverIDValue string
	Amount          string
	Currency        string
	Note            string
	// HomeTransactionID is the idempotency key; a fresh UUID is used when empty.
	HomeTransactionID string
}

type party struct {
	DisplayName string `json:"displayName,omitempty"`
	IDType      string `json:"idType"`
	IDValue     string `json:"idValue"`
}

type transferPayload struct {
	From              party  `json:"from"`
	To                party  `json:"to"`
	AmountType        string `json:"amountType"`
	Currency          string `json:"currency"`
	Amount            string `json:"amount"`
	TransactionType   string `json:"transactionType"`
	Note              string `json:"note"`
	HomeTransactionID string `json:"homeTransactionId"`
}

type transferResponse struct {
	TransferID   string `json:"transferId"`
	CurrentState string `json:"currentState"`
}

// StatusError is a non-2xx answer from the hub.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hub responded %d", e.Code)
	}
	return fmt.Sprintf("hub responded %d: %s", e.Code, e.Body)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ExecuteTransfer sends one transfer to the hub, or synthesizes one in
// simulation mode. Every failure, transport errors included, comes back as an
// Outcome with Success=false.
func (c *Client) ExecuteTransfer(ctx context.Context, req TransferRequest) Outcome {
	homeTxID := req.HomeTransactionID
	if homeTxID == "" {
		homeTxID = uuid.NewString()
	}

	payload := transferPayload{
		From: party{
			DisplayName: c.cfg.DisplayName,
			IDType:      domain.IDTypeMSISDN,
			IDValue:     req.SenderMSISDN,
		},
		To: party{
			IDType:  req.ReceiverIDType,
			IDValue: req.ReceiverIDValue,
		},
		AmountType:        amountTypeSend,
		Currency:          req.Currency,
		Amount:            NormalizeAmount(req.Amount),
		TransactionType:   transactionTypeTransfer,
		Note:              req.Note,
		HomeTransactionID: homeTxID,
	}

	if c.cfg.SimulationMode {
		metrics.HubRequests.WithLabelValues("simulation", "success").Inc()
		return simulate(payload)
	}

	start := time.Now()
	out := c.execute(ctx, payload)
	metrics.HubRequestDuration.Observe(time.Since(start).Seconds())

	result := "success"
	if !out.Success {
		result = "failure"
	}
	metrics.HubRequests.WithLabelValues("live", result).Inc()
	return out
}

func (c *Client) execute(ctx context.Context, payload transferPayload) Outcome {
	log := logging.FromContext(ctx).With("home_transaction_id", payload.HomeTransactionID)

	fail := func(msg string) Outcome {
		return Outcome{
			Success:           false,
			HomeTransactionID: payload.HomeTransactionID,
			Error:             "hub request failed: " + msg,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fail(fmt.Sprintf("marshal: %v", err))
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		log.Warn("hub transfer failed", "error", err)
		var se *StatusError
		if errors.As(err, &se) {
			return fail(se.Error())
		}
		return fail(err.Error())
	}

	var resp transferResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		log.Error("unreadable hub response", "error", err)
		return fail(fmt.Sprintf("unreadable response: %s", truncate(string(respBody), 512)))
	}

	return Outcome{
		Success:           true,
		RemoteTransferID:  resp.TransferID,
		State:             resp.CurrentState,
		HomeTransactionID: payload.HomeTransactionID,
		RawResponse:       respBody,
	}
}

// post issues the request under the retry policy: transient statuses and
// connection errors are retried, anything else stops immediately.
func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	log := logging.FromContext(ctx)
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/transfers"

	var respBody []byte
	attempt := 0

	op := func() error {
		attempt++
		metrics.HubAttempts.Inc()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		start := time.Now()
		log.Info("hub request sent", "attempt", attempt)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		log.Info("hub response received",
			"attempt", attempt,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			respBody = b
			return nil
		}

		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if retryableStatus(resp.StatusCode) {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("hub request failed, retrying", "attempt", attempt, "error", err, "wait_ms", wait.Milliseconds())
	}

	if err := backoff.RetryNotify(op, c.retryPolicy(ctx), notify); err != nil {
		return nil, fmt.Errorf("post after %d attempt(s): %w", attempt, err)
	}
	return respBody, nil
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.BackoffInitial
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0

	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
