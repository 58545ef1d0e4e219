// README: Outbound QR charge client for the payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kilap/internal/config"
)

type Charge struct {
	ProviderRef string
	QRUrl       string
}

// Gateway creates QR-code charges. Implemented against the provider's HTTP
// API; swapped for a stub in tests.
type Gateway interface {
	CreateQRCharge(ctx context.Context, orderRef string, amount int64) (*Charge, error)
}

type HTTPGateway struct {
	http      *http.Client
	baseURL   string
	serverKey string
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   cfg.BaseURL,
		serverKey: cfg.ServerKey,
	}
}

type chargeRequest struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
	PaymentType string `json:"payment_type"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	QRUrl         string `json:"qr_url"`
	StatusMessage string `json:"status_message"`
}

func (g *HTTPGateway) CreateQRCharge(ctx context.Context, orderRef string, amount int64) (*Charge, error) {
	body, err := json.Marshal(chargeRequest{OrderID: orderRef, GrossAmount: amount, PaymentType: "qris"})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v2/charge", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.serverKey, "")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway charge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway charge failed: status %d", resp.StatusCode)
	}
	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding charge response: %w", err)
	}
	return &Charge{ProviderRef: out.TransactionID, QRUrl: out.QRUrl}, nil
}
