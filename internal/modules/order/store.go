// README: Order store backed by PostgreSQL (creation, projection reads).
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kilap/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create persists the order, its address, the opening status row and (when
// depositAmount > 0) the down-payment transaction in one transaction. The
// human-facing number comes from the per-day counter inside the same
// transaction, so a failed creation burns the number rather than reusing it.
func (s *Store) Create(ctx context.Context, o *Order, addr *Address, initial Status, depositAmount int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	day := time.Now()
	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO order_counters (day, last) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last = order_counters.last + 1
		RETURNING last`, day.Format("2006-01-02"),
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("advancing order counter: %w", err)
	}

	o.ID = types.ID(uuid.NewString())
	o.Number = FormatNumber(day, seq)
	addr.ID = types.ID(uuid.NewString())
	o.AddressID = addr.ID

	_, err = tx.Exec(ctx, `
		INSERT INTO addresses (id, name, phone, street, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(addr.ID), addr.Name, addr.Phone, addr.Street, addr.Point.Lat, addr.Point.Lng,
	)
	if err != nil {
		return fmt.Errorf("inserting address: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, number, type, user_id, address_id, service_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(o.ID), o.Number, string(o.Type), string(o.UserID), string(o.AddressID), o.ServiceDate,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_statuses (id, order_id, name, updated_at)
		VALUES ($1, $2, $3, clock_timestamp())`,
		uuid.NewString(), string(o.ID), string(initial),
	)
	if err != nil {
		return fmt.Errorf("inserting opening status: %w", err)
	}

	if depositAmount > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (id, order_id, phase, amount)
			VALUES ($1, $2, 'down_payment', $3)`,
			uuid.NewString(), string(o.ID), depositAmount,
		)
		if err != nil {
			return fmt.Errorf("inserting deposit transaction: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, number, type, user_id, address_id, service_date, created_at
		FROM orders WHERE number = $1`, number,
	)
	return scanOrder(row)
}

func (s *Store) GetByID(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, number, type, user_id, address_id, service_date, created_at
		FROM orders WHERE id = $1`, string(id),
	)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.Type, &o.UserID, &o.AddressID, &o.ServiceDate, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CurrentStatus derives the order's status from the newest history row.
func (s *Store) CurrentStatus(ctx context.Context, orderID types.ID) (Status, error) {
	var name string
	err := s.db.QueryRow(ctx, `
		SELECT name FROM order_statuses
		WHERE order_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, string(orderID),
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(name), nil
}

func (s *Store) History(ctx context.Context, orderID types.ID) ([]StatusRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, name, note, updated_at
		FROM order_statuses
		WHERE order_id = $1
		ORDER BY updated_at ASC`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusRecord
	for rows.Next() {
		var r StatusRecord
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Name, &r.Note, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetAddress(ctx context.Context, id types.ID) (*Address, error) {
	var a Address
	err := s.db.QueryRow(ctx, `
		SELECT id, name, phone, street, lat, lng FROM addresses WHERE id = $1`, string(id),
	).Scan(&a.ID, &a.Name, &a.Phone, &a.Street, &a.Point.Lat, &a.Point.Lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkProcessed appends PROCESS_COMPLETED and DELIVERY so the order enters
// the delivery queue. Both rows ride one transaction; clock_timestamp()
// keeps their timestamps strictly increasing within it.
func (s *Store) MarkProcessed(ctx context.Context, orderID types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, st := range []Status{StatusProcessCompleted, StatusDelivery} {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_statuses (id, order_id, name, updated_at)
			SELECT $1, $2, $3, clock_timestamp()
			WHERE NOT EXISTS (
				SELECT 1 FROM order_statuses WHERE order_id = $2 AND name = $3
			)`,
			uuid.NewString(), string(orderID), string(st),
		)
		if err != nil {
			return fmt.Errorf("appending %s: %w", st, err)
		}
	}

	return tx.Commit(ctx)
}
