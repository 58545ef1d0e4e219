// README: Payment workflow: charge creation and settlement via gateway webhook.
package payment

import (
	"context"
	"errors"
	"time"

	"kilap/internal/metrics"
	"kilap/internal/modules/order"
	"kilap/internal/types"
)

var (
	ErrBadSignature = errors.New("webhook signature mismatch")
)

// Broadcaster fans a settled phase out to listening clients. Implemented by
// notify.Notifier; a no-op stub in tests.
type Broadcaster interface {
	Publish(orderNumber, phase, status string)
}

type Service struct {
	store     *Store
	orders    *order.Store
	gateway   Gateway
	broadcast Broadcaster
	serverKey string
	metrics   *metrics.StageMetrics
}

func NewService(store *Store, orders *order.Store, gw Gateway, b Broadcaster, serverKey string, m *metrics.StageMetrics) *Service {
	return &Service{store: store, orders: orders, gateway: gw, broadcast: b, serverKey: serverKey, metrics: m}
}

// EnsureCharge returns the QR charge for one order phase, creating it at the
// gateway on first call. The transaction row must already exist: the deposit
// row is written at order creation, the full-payment row at inspection
// completion.
func (s *Service) EnsureCharge(ctx context.Context, orderNumber string, phase Phase) (*Transaction, error) {
	o, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	txn, err := s.store.GetByOrderPhase(ctx, o.ID, phase)
	if err != nil {
		return nil, err
	}
	if txn.ProviderRef != "" {
		return txn, nil
	}
	charge, err := s.gateway.CreateQRCharge(ctx, OrderRef(o.Number, phase), txn.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProviderRef(ctx, txn.ID, charge.ProviderRef, charge.QRUrl); err != nil {
		return nil, err
	}
	return s.store.GetByOrderPhase(ctx, o.ID, phase)
}

func (s *Service) ByOrderPhase(ctx context.Context, orderID types.ID, phase Phase) (*Transaction, error) {
	return s.store.GetByOrderPhase(ctx, orderID, phase)
}

// nextStatusFor maps a settled phase to the order status it unlocks. The
// deposit settles into the pickup queue for online orders; offline orders
// have no pickup, so a stray deposit settlement lands on INSPECTION, which
// the order already carries.
func nextStatusFor(o *order.Order, phase Phase) order.Status {
	if phase == PhaseFullPayment {
		return order.StatusInProcess
	}
	if o.Type == order.TypeOffline {
		return order.StatusInspection
	}
	return order.StatusPickupScheduled
}

// HandleNotification consumes one gateway webhook. The signature is checked
// before any state is read, and the settlement write is idempotent so gateway
// retries are safe. The broadcast fires only after commit.
func (s *Service) HandleNotification(ctx context.Context, n Notification) error {
	start := time.Now()
	result := "settled"
	defer func() {
		if s.metrics != nil {
			s.metrics.WebhooksTotal.WithLabelValues(result).Inc()
			s.metrics.WebhookDuration.Observe(time.Since(start).Seconds())
		}
	}()

	number, phase, err := ParseOrderRef(n.OrderRef)
	if err != nil {
		result = "bad_ref"
		return err
	}
	if !VerifySignature(n, s.serverKey) {
		result = "bad_signature"
		return ErrBadSignature
	}

	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		result = "unknown_order"
		return err
	}
	txn, err := s.store.GetByOrderPhase(ctx, o.ID, phase)
	if err != nil {
		result = "unknown_transaction"
		return err
	}

	var status TxnStatus
	switch n.Status {
	case "settlement", "capture":
		status = TxnSettlement
	case "expire":
		status = TxnExpired
		result = "expired"
	case "cancel", "deny":
		status = TxnCancelled
		result = "cancelled"
	case "pending":
		result = "pending"
		return nil
	default:
		result = "ignored"
		return nil
	}

	next := order.Status("")
	if status == TxnSettlement {
		next = nextStatusFor(o, phase)
	}
	if err := s.store.ApplySettlement(ctx, txn.ID, status, o.ID, next); err != nil {
		result = "error"
		return err
	}

	if s.broadcast != nil {
		s.broadcast.Publish(o.Number, string(phase), string(status))
	}
	return nil
}
