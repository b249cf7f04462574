package hub

import (
	"encoding/json"
)

// Outcome is the result of one ExecuteTransfer call. HomeTransactionID is
// always populated so a record can be written even on failure.
type Outcome struct {
	Success           bool            `json:"success"`
	RemoteTransferID  string          `json:"transfer_id,omitempty"`
	State             string          `json:"status,omitempty"`
	HomeTransactionID string          `json:"home_transaction_id"`
	RawResponse       json.RawMessage `json:"data,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// AuditPayload is the blob stored with the transfer record: the hub's
// response when there is one, otherwise the outcome itself so the error text
// survives.
func (o Outcome) AuditPayload() json.RawMessage {
	if len(o.RawResponse) > 0 {
		return o.RawResponse
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil
	}
	return b
}
