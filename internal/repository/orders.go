package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
)

// CreateOrder сохраняет заказ вместе с позициями в одной локальной транзакции
// и заполняет идентификаторы и время создания.
func (r *Postgres) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (user_id, status, total_price, deleted)
			 VALUES ($1, $2, $3, FALSE)
			 RETURNING id, created_at`,
			order.UserID, string(order.Status), order.TotalPrice.String(),
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		if err := insertOrderLines(ctx, tx, order); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

func insertOrderLines(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID

		err := tx.QueryRow(ctx,
			`INSERT INTO order_lines (order_id, item_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			line.OrderID, line.ItemID, line.Quantity, line.UnitPrice.String(),
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

// ReplaceOrder обновляет заказ, полностью заменяя список позиций:
// частичных патчей нет, позиции удаляются и создаются заново.
func (r *Postgres) ReplaceOrder(ctx context.Context, order *model.Order) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE orders SET status = $2, total_price = $3 WHERE id = $1`,
			order.ID, string(order.Status), order.TotalPrice.String(),
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}

		if err := insertOrderLines(ctx, tx, order); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		return nil
	})
}

// GetOrderByID возвращает заказ с позициями.
func (r *Postgres) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, status, total_price::text, deleted, created_at
		 FROM orders
		 WHERE id = $1`,
		id,
	)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadOrderLines(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// SoftDeleteOrder помечает заказ удалённым. Повторное удаление отклоняется.
func (r *Postgres) SoftDeleteOrder(ctx context.Context, id int64) (*model.Order, error) {
	var order *model.Order

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, user_id, status, total_price::text, deleted, created_at
			 FROM orders
			 WHERE id = $1
			 FOR UPDATE`,
			id,
		)

		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("get order: %w", err)
		}

		if o.Deleted {
			return ErrOrderDeleted
		}

		if _, err := tx.Exec(ctx, `UPDATE orders SET deleted = TRUE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("soft delete order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		o.Deleted = true
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders возвращает страницу заказов по фильтру и общее число совпадений.
func (r *Postgres) ListOrders(ctx context.Context, filter query.OrderFilter, page query.Page) ([]model.Order, int64, error) {
	conds := filter.Conditions()
	where, args := query.BuildWhere(conds, 1)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	limit, offset := page.LimitOffset()
	listArgs := append(args, limit, offset)
	sql := fmt.Sprintf(
		`SELECT id, user_id, status, total_price::text, deleted, created_at
		 FROM orders%s
		 ORDER BY created_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(conds)+1, len(conds)+2,
	)

	orders, err := r.queryOrders(ctx, sql, listArgs...)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListOrdersByUser возвращает все заказы пользователя.
func (r *Postgres) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT id, user_id, status, total_price::text, deleted, created_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// UpdateOrderStatus выставляет статус заказа абсолютным присваиванием,
// поэтому повторное применение того же события безопасно.
func (r *Postgres) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	return r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`,
			id, string(status),
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
}

func (r *Postgres) queryOrders(ctx context.Context, sql string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	refs := make([]*model.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.loadOrderLines(ctx, refs); err != nil {
		return nil, err
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o          model.Order
		status     string
		totalPrice string
	)

	if err := row.Scan(&o.ID, &o.UserID, &status, &totalPrice, &o.Deleted, &o.CreatedAt); err != nil {
		return nil, err
	}

	total, err := decimal.NewFromString(totalPrice)
	if err != nil {
		return nil, fmt.Errorf("parse total price: %w", err)
	}

	o.Status = model.OrderStatus(status)
	o.TotalPrice = total
	return &o, nil
}

func (r *Postgres) loadOrderLines(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*model.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, item_id, quantity, unit_price::text
		 FROM order_lines
		 WHERE order_id = ANY($1)
		 ORDER BY id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			line      model.OrderLine
			unitPrice string
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Quantity, &unitPrice); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}

		price, err := decimal.NewFromString(unitPrice)
		if err != nil {
			return fmt.Errorf("parse unit price: %w", err)
		}
		line.UnitPrice = price

		if order, ok := byID[line.OrderID]; ok {
			order.Lines = append(order.Lines, line)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}
