// README: Stage claim store; the transactional check-then-insert core.
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kilap/internal/modules/order"
	"kilap/internal/types"
)

var (
	ErrStageLockedByOther    = errors.New("stage claimed by another staff member")
	ErrStageAlreadyCompleted = errors.New("stage already completed")
	ErrStageNotClaimed       = errors.New("stage not claimed by you")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// lockOrder serializes competing stage writes on one order. The naive
// read-then-insert claim check is racy without it: two staff could both
// read "no attempt" before either writes. A row lock on the order makes the
// check-then-insert effectively serial per order under read committed.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID types.ID) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, string(orderID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ErrNotFound
	}
	return err
}

// openClaimant returns the current open claim for the stage, by scanning
// this order's actions for the stage newest-first inside the transaction.
// Nil when every attempt has been answered.
func openClaimant(ctx context.Context, tx pgx.Tx, d Descriptor, orderID types.ID) (*OpenClaim, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, admin_id, action, created_at
		FROM order_actions
		WHERE order_id = $1 AND action IN ($2, $3, $4)
		ORDER BY id DESC`,
		string(orderID), string(d.Attempt), string(d.Complete), string(d.Release),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ActionRecord
	for rows.Next() {
		var a ActionRecord
		if err := rows.Scan(&a.ID, &a.OrderID, &a.AdminID, &a.Action, &a.CreatedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return FindOpenClaim(actions), nil
}

func photoExists(ctx context.Context, tx pgx.Tx, orderID types.ID, st Stage) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_photos WHERE order_id = $1 AND stage = $2)`,
		string(orderID), string(st),
	).Scan(&exists)
	return exists, err
}

func insertAction(ctx context.Context, tx pgx.Tx, orderID, adminID types.ID, action Action, photoID *types.ID, note string) error {
	var photo any
	if photoID != nil {
		photo = string(*photoID)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_actions (order_id, admin_id, action, order_photo_id, note)
		VALUES ($1, $2, $3, $4, $5)`,
		string(orderID), string(adminID), string(action), photo, note,
	)
	return err
}

// insertStatusIfAbsent appends a status row unless the order already has one
// of that name, so retried requests never duplicate history entries.
// clock_timestamp() keeps projection timestamps monotone even within one
// transaction.
func insertStatusIfAbsent(ctx context.Context, tx pgx.Tx, orderID types.ID, st order.Status) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_statuses (id, order_id, name, updated_at)
		SELECT $1, $2, $3, clock_timestamp()
		WHERE NOT EXISTS (
			SELECT 1 FROM order_statuses WHERE order_id = $2 AND name = $3
		)`,
		uuid.NewString(), string(orderID), string(st),
	)
	return err
}

// Claim records ATTEMPT_<stage> and makes the progress status visible.
// Idempotent for the holder; a conflict with another holder writes nothing.
func (s *Store) Claim(ctx context.Context, d Descriptor, orderID, adminID types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockOrder(ctx, tx, orderID); err != nil {
		return err
	}

	done, err := photoExists(ctx, tx, orderID, d.Stage)
	if err != nil {
		return err
	}
	if done {
		return ErrStageAlreadyCompleted
	}

	claim, err := openClaimant(ctx, tx, d, orderID)
	if err != nil {
		return err
	}
	if claim != nil {
		if claim.AdminID != adminID {
			return ErrStageLockedByOther
		}
		// Re-claim by the holder: nothing to write.
		return tx.Commit(ctx)
	}

	if err := insertAction(ctx, tx, orderID, adminID, d.Attempt, nil, ""); err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	if err := insertStatusIfAbsent(ctx, tx, orderID, d.Progress); err != nil {
		return fmt.Errorf("recording progress status: %w", err)
	}

	return tx.Commit(ctx)
}

// Complete records the completion action with its evidence photo and
// appends the stage's forward status. For the inspection stage it also
// materializes the submitted shoes, their service line items and the full
// payment transaction — all or nothing with the rest.
func (s *Store) Complete(ctx context.Context, d Descriptor, orderID, adminID types.ID, photoPath, note string, shoes []ShoeSelection) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if err := lockOrder(ctx, tx, orderID); err != nil {
		return 0, err
	}

	done, err := photoExists(ctx, tx, orderID, d.Stage)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, ErrStageAlreadyCompleted
	}

	claim, err := openClaimant(ctx, tx, d, orderID)
	if err != nil {
		return 0, err
	}
	if claim == nil || claim.AdminID != adminID {
		return 0, ErrStageNotClaimed
	}

	photoID := types.ID(uuid.NewString())
	_, err = tx.Exec(ctx, `
		INSERT INTO order_photos (id, order_id, admin_id, stage, path, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(photoID), string(orderID), string(adminID), string(d.Stage), photoPath, note,
	)
	if err != nil {
		return 0, fmt.Errorf("recording photo: %w", err)
	}

	if err := insertAction(ctx, tx, orderID, adminID, d.Complete, &photoID, note); err != nil {
		return 0, fmt.Errorf("recording completion: %w", err)
	}
	if err := insertStatusIfAbsent(ctx, tx, orderID, d.Next); err != nil {
		return 0, fmt.Errorf("recording next status: %w", err)
	}

	var amount int64
	if d.Stage == StageCheck {
		amount, err = materializeInspection(ctx, tx, orderID, shoes)
		if err != nil {
			return 0, err
		}
	}

	return amount, tx.Commit(ctx)
}

// materializeInspection turns the inspection payload into shoe rows, priced
// line items and a pending full-payment transaction summing the subtotals.
func materializeInspection(ctx context.Context, tx pgx.Tx, orderID types.ID, shoes []ShoeSelection) (int64, error) {
	txnID := uuid.NewString()
	var total int64

	type item struct {
		shoeID    string
		serviceID types.ID
	}
	var items []item

	for _, shoe := range shoes {
		shoeID := uuid.NewString()
		_, err := tx.Exec(ctx, `
			INSERT INTO shoes (id, order_id, brand, color, note)
			VALUES ($1, $2, $3, $4, $5)`,
			shoeID, string(orderID), shoe.Brand, shoe.Color, shoe.Note,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting shoe: %w", err)
		}
		for _, svcID := range shoe.ServiceIDs {
			items = append(items, item{shoeID: shoeID, serviceID: svcID})
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, order_id, phase, amount)
		VALUES ($1, $2, 'full_payment', 0)`,
		txnID, string(orderID),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting payment transaction: %w", err)
	}

	for _, it := range items {
		var price int64
		err := tx.QueryRow(ctx, `SELECT price FROM services WHERE id = $1`, string(it.serviceID)).Scan(&price)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("unknown service %s", it.serviceID)
		}
		if err != nil {
			return 0, err
		}
		// Quantity is always 1: each selected service applies to one pair.
		subtotal := price
		_, err = tx.Exec(ctx, `
			INSERT INTO transaction_items (id, transaction_id, shoe_id, service_id, price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, 1, $6)`,
			uuid.NewString(), txnID, it.shoeID, string(it.serviceID), price, subtotal,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting line item: %w", err)
		}
		total += subtotal
	}

	_, err = tx.Exec(ctx, `UPDATE transactions SET amount = $1, updated_at = now() WHERE id = $2`, total, txnID)
	if err != nil {
		return 0, fmt.Errorf("totalling transaction: %w", err)
	}
	return total, nil
}

// Release answers the attempt with RELEASE_<stage> and rolls the visible
// status back by deleting the progress row the claim inserted. A progress
// row that predates the attempt (the check stage usually opens on an order
// already at its progress status) is not the claim's to delete, so it stays
// and the order remains visible in its queue. The action history itself is
// never deleted.
func (s *Store) Release(ctx context.Context, d Descriptor, orderID, adminID types.ID, note string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockOrder(ctx, tx, orderID); err != nil {
		return err
	}

	claim, err := openClaimant(ctx, tx, d, orderID)
	if err != nil {
		return err
	}
	if claim == nil || claim.AdminID != adminID {
		return ErrStageNotClaimed
	}

	if err := insertAction(ctx, tx, orderID, adminID, d.Release, nil, note); err != nil {
		return fmt.Errorf("recording release: %w", err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM order_statuses
		WHERE order_id = $1 AND name = $2 AND updated_at >= $3`,
		string(orderID), string(d.Progress), claim.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("reverting progress status: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentActionsByAdmin feeds the lock-enforcement gate: the staff member's
// action log, newest first, with order numbers joined in.
func (s *Store) RecentActionsByAdmin(ctx context.Context, adminID types.ID, limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.order_id, o.number, a.admin_id, a.action, a.note, a.created_at
		FROM order_actions a
		JOIN orders o ON o.id = a.order_id
		WHERE a.admin_id = $1
		ORDER BY a.id DESC
		LIMIT $2`,
		string(adminID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var a ActionRecord
		if err := rows.Scan(&a.ID, &a.OrderID, &a.OrderNumber, &a.AdminID, &a.Action, &a.Note, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) PhotosByOrder(ctx context.Context, orderID types.ID) ([]PhotoRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, admin_id, stage, path, note, created_at
		FROM order_photos
		WHERE order_id = $1
		ORDER BY created_at ASC`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhotoRecord
	for rows.Next() {
		var p PhotoRecord
		if err := rows.Scan(&p.ID, &p.OrderID, &p.AdminID, &p.Stage, &p.Path, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
