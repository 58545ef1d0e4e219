// README: Cleaning service price list.
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"kilap/internal/types"
)

var ErrUnknownService = errors.New("unknown service")

type Item struct {
	ID    types.ID `json:"id"`
	Name  string   `json:"name"`
	Price int64    `json:"price"`
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, price FROM services ORDER BY price`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetByIDs returns the named services and fails when any id is unknown, so
// an inspection form cannot quote a price for a service that does not exist.
func (s *Store) GetByIDs(ctx context.Context, ids []types.ID) (map[types.ID]Item, error) {
	if len(ids) == 0 {
		return map[types.ID]Item{}, nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `SELECT id, name, price FROM services WHERE id = ANY($1)`, strIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]Item, len(ids))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, ErrUnknownService
		}
	}
	return out, nil
}
