// README: Task-queue and customer list queries over the status projection.
package order

import (
	"context"
	"fmt"
	"strings"

	"kilap/internal/types"
)

type Bucket string

const (
	BucketAll        Bucket = "all"
	BucketPickup     Bucket = "pickup"
	BucketInspection Bucket = "inspection"
	BucketDelivery   Bucket = "delivery"
)

// bucketStatuses maps a dashboard bucket to the latest-status values that
// place an order in it.
func bucketStatuses(b Bucket) []Status {
	switch b {
	case BucketPickup:
		return []Status{StatusPickupScheduled}
	case BucketInspection:
		return []Status{StatusInspection}
	case BucketDelivery:
		return []Status{StatusDelivery}
	default:
		return nil
	}
}

type QueueQuery struct {
	Bucket  Bucket
	Search  string
	Page    int
	PerPage int
}

type QueueCounts struct {
	All        int64
	Pickup     int64
	Inspection int64
	Delivery   int64
}

// latestCTE joins each order with its max-updated_at status row. Kept as a
// CTE so every queue query derives "current status" the same single way.
const latestCTE = `
	WITH latest AS (
		SELECT DISTINCT ON (order_id) order_id, name, updated_at
		FROM order_statuses
		ORDER BY order_id, updated_at DESC
	)`

func (s *Store) CountQueues(ctx context.Context) (QueueCounts, error) {
	var c QueueCounts
	err := s.db.QueryRow(ctx, latestCTE+`
		SELECT
			count(*) FILTER (WHERE l.name NOT IN ($1, $2)),
			count(*) FILTER (WHERE l.name = $3),
			count(*) FILTER (WHERE l.name = $4),
			count(*) FILTER (WHERE l.name = $5)
		FROM orders o
		JOIN latest l ON l.order_id = o.id`,
		string(StatusCompleted), string(StatusCancelled),
		string(StatusPickupScheduled), string(StatusInspection), string(StatusDelivery),
	).Scan(&c.All, &c.Pickup, &c.Inspection, &c.Delivery)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("counting queues: %w", err)
	}
	return c, nil
}

// ListQueue returns one staff dashboard bucket, oldest-created first (FIFO
// work queue), with optional free-text search across order number, address
// fields and localized status names.
func (s *Store) ListQueue(ctx context.Context, q QueueQuery) ([]Summary, int64, error) {
	where, args := queueFilter(q)
	total, err := s.countSummaries(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.listSummaries(ctx, where, args, "o.created_at ASC", q.Page, q.PerPage)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByUser returns a customer's own orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID types.ID, completed bool, page, perPage int) ([]Summary, int64, error) {
	op := "NOT IN"
	if completed {
		op = "IN"
	}
	where := fmt.Sprintf("o.user_id = $1 AND l.name %s ($2, $3)", op)
	args := []any{string(userID), string(StatusCompleted), string(StatusCancelled)}

	total, err := s.countSummaries(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.listSummaries(ctx, where, args, "o.created_at DESC", page, perPage)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func queueFilter(q QueueQuery) (string, []any) {
	var conds []string
	var args []any

	if statuses := bucketStatuses(q.Bucket); statuses != nil {
		ph := make([]string, len(statuses))
		for i, st := range statuses {
			args = append(args, string(st))
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, fmt.Sprintf("l.name IN (%s)", strings.Join(ph, ", ")))
	} else {
		args = append(args, string(StatusCompleted), string(StatusCancelled))
		conds = append(conds, fmt.Sprintf("l.name NOT IN ($%d, $%d)", len(args)-1, len(args)))
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		args = append(args, "%"+term+"%")
		like := fmt.Sprintf("$%d", len(args))
		search := []string{
			"o.number ILIKE " + like,
			"a.name ILIKE " + like,
			"a.phone ILIKE " + like,
			"a.street ILIKE " + like,
		}
		// Staff search by what they see: map the term back onto internal
		// status values through the display names.
		if matches := StatusesMatchingDisplay(term); len(matches) > 0 {
			ph := make([]string, len(matches))
			for i, st := range matches {
				args = append(args, string(st))
				ph[i] = fmt.Sprintf("$%d", len(args))
			}
			search = append(search, fmt.Sprintf("l.name IN (%s)", strings.Join(ph, ", ")))
		}
		conds = append(conds, "("+strings.Join(search, " OR ")+")")
	}

	return strings.Join(conds, " AND "), args
}

func (s *Store) countSummaries(ctx context.Context, where string, args []any) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, latestCTE+`
		SELECT count(*)
		FROM orders o
		JOIN latest l ON l.order_id = o.id
		JOIN addresses a ON a.id = o.address_id
		WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return total, nil
}

func (s *Store) listSummaries(ctx context.Context, where string, args []any, orderBy string, page, perPage int) ([]Summary, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.Query(ctx, fmt.Sprintf(latestCTE+`
		SELECT o.id, o.number, o.type, o.user_id, o.address_id, o.service_date, o.created_at,
		       a.id, a.name, a.phone, a.street, a.lat, a.lng,
		       l.name, l.updated_at
		FROM orders o
		JOIN latest l ON l.order_id = o.id
		JOIN addresses a ON a.id = o.address_id
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`, where, orderBy, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		err := rows.Scan(
			&sm.ID, &sm.Number, &sm.Type, &sm.UserID, &sm.AddressID, &sm.ServiceDate, &sm.CreatedAt,
			&sm.Address.ID, &sm.Address.Name, &sm.Address.Phone, &sm.Address.Street,
			&sm.Address.Point.Lat, &sm.Address.Point.Lng,
			&sm.CurrentStatus, &sm.StatusSince,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
