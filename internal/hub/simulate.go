package hub

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

const simulatedState = "COMPLETED"

type simulatedResponse struct {
	TransferID   string `json:"transferId"`
	CurrentState string `json:"currentState"`
	From         party  `json:"from"`
	To           party  `json:"to"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Note         string `json:"note"`
	Simulated    bool   `json:"simulated"`
}

func simulate(p transferPayload) Outcome {
	id := simulatedIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])

	raw, _ := json.Marshal(simulatedResponse{
		TransferID:   id,
		CurrentState: simulatedState,
		From:         party{IDType: p.From.IDType, IDValue: p.From.IDValue},
		To:           p.To,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Note:         p.Note,
		Simulated:    true,
	})

	return Outcome{
		Success:           true,
		RemoteTransferID:  id,
		State:             simulatedState,
		HomeTransactionID: p.HomeTransactionID,
		RawResponse:       raw,
	}
}
