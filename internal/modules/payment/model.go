// README: Payment transactions and webhook notification types.
package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kilap/internal/types"
)

type Phase string

const (
	PhaseDownPayment Phase = "down_payment"
	PhaseFullPayment Phase = "full_payment"
)

type TxnStatus string

const (
	TxnPending    TxnStatus = "PENDING"
	TxnSettlement TxnStatus = "SETTLEMENT"
	TxnExpired    TxnStatus = "EXPIRED"
	TxnCancelled  TxnStatus = "CANCELLED"
)

type Transaction struct {
	ID          types.ID
	OrderID     types.ID
	Phase       Phase
	Amount      int64
	Status      TxnStatus
	ProviderRef string
	QRUrl       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Notification is the inbound webhook payload. OrderRef is the reference we
// handed the gateway at charge time: "{order number}-DP" or "-FP".
type Notification struct {
	OrderRef      string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	StatusCode    string `json:"status_code"`
	Status        string `json:"transaction_status"`
	GrossAmount   string `json:"gross_amount"`
	SignatureKey  string `json:"signature_key"`
}

var ErrBadOrderRef = errors.New("malformed order reference")

func phaseSuffix(p Phase) string {
	if p == PhaseFullPayment {
		return "FP"
	}
	return "DP"
}

// OrderRef builds the gateway-facing reference for one order + phase.
func OrderRef(orderNumber string, p Phase) string {
	return fmt.Sprintf("%s-%s", orderNumber, phaseSuffix(p))
}

// ParseOrderRef splits a gateway reference back into order number + phase.
func ParseOrderRef(ref string) (string, Phase, error) {
	i := strings.LastIndex(ref, "-")
	if i <= 0 || i == len(ref)-1 {
		return "", "", ErrBadOrderRef
	}
	number, suffix := ref[:i], ref[i+1:]
	switch suffix {
	case "DP":
		return number, PhaseDownPayment, nil
	case "FP":
		return number, PhaseFullPayment, nil
	}
	return "", "", ErrBadOrderRef
}
