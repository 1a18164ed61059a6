package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

// CreateItem создаёт товар каталога с уникальным именем.
func (r *Postgres) CreateItem(ctx context.Context, item *model.Item) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO items (name, price) VALUES ($1, $2) RETURNING id, created_at`,
		item.Name, item.Price.String(),
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrItemExists, item.Name)
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// GetItemByID возвращает товар по идентификатору.
func (r *Postgres) GetItemByID(ctx context.Context, id int64) (*model.Item, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, price::text, created_at FROM items WHERE id = $1`,
		id,
	)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// GetItemsByIDs возвращает товары по списку идентификаторов одним запросом.
// Отсутствующие идентификаторы в результат не попадают: полноту проверяет
// вызывающая сторона.
func (r *Postgres) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]model.Item, error) {
	if len(ids) == 0 {
		return map[int64]model.Item{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price::text, created_at FROM items WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64]model.Item, len(ids))
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items[item.ID] = *item
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListItems возвращает каталог целиком.
func (r *Postgres) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, price::text, created_at FROM items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func scanItem(row pgx.Row) (*model.Item, error) {
	var (
		item  model.Item
		price string
	)

	if err := row.Scan(&item.ID, &item.Name, &price, &item.CreatedAt); err != nil {
		return nil, err
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}

	item.Price = p
	return &item, nil
}
