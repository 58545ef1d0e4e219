// README: Transaction persistence and settlement (phase status + order status in one tx).
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetByOrderPhase(ctx context.Context, orderID types.ID, phase Phase) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, phase, amount, status, provider_ref, qr_url, created_at, updated_at
		FROM transactions
		WHERE order_id = $1 AND phase = $2`, orderID, phase)
	return scanTransaction(row)
}

func (s *Store) GetByProviderRef(ctx context.Context, ref string) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, order_id, phase, amount, status, provider_ref, qr_url, created_at, updated_at
		FROM transactions
		WHERE provider_ref = $1`, ref)
	return scanTransaction(row)
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.OrderID, &t.Phase, &t.Amount, &t.Status, &t.ProviderRef, &t.QRUrl, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetProviderRef records the gateway handle for a pending transaction. A
// transaction that already carries a ref keeps it, which makes charge
// creation idempotent.
func (s *Store) SetProviderRef(ctx context.Context, id types.ID, providerRef, qrURL string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE transactions
		SET provider_ref = $2, qr_url = $3, updated_at = now()
		WHERE id = $1 AND provider_ref = ''`, id, providerRef, qrURL)
	return err
}

// ApplySettlement moves the transaction to its final status and, when the
// payment settled, appends the order's next status. Both writes land in one
// transaction so a webhook retry never observes half an update. The status
// insert is skipped when the order already carries that status, which makes
// duplicate notifications harmless.
func (s *Store) ApplySettlement(ctx context.Context, txnID types.ID, txnStatus TxnStatus, orderID types.ID, nextStatus order.Status) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'PENDING'`, txnID, txnStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already settled by an earlier notification.
		return tx.Commit(ctx)
	}

	if txnStatus == TxnSettlement && nextStatus != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_statuses (id, order_id, name, updated_at)
			SELECT $1, $2, $3, clock_timestamp()
			WHERE NOT EXISTS (
				SELECT 1 FROM order_statuses WHERE order_id = $2 AND name = $3
			)`,
			uuid.NewString(), string(orderID), string(nextStatus),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
