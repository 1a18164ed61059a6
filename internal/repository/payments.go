package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
)

// CreatePayment сохраняет платёж. Публикация события выполняется вызывающей
// стороной строго после фиксации записи.
func (r *Postgres) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return r.withRetry(ctx, func() error {
		err := r.pool.QueryRow(ctx,
			`INSERT INTO payments (order_id, user_id, status, amount)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, created_at`,
			payment.OrderID, payment.UserID, string(payment.Status), payment.Amount.String(),
		).Scan(&payment.ID, &payment.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
}

// ListPayments возвращает страницу платежей по фильтру и общее число совпадений.
func (r *Postgres) ListPayments(ctx context.Context, filter query.PaymentFilter, page query.Page) ([]model.Payment, int64, error) {
	conds := filter.Conditions()
	where, args := query.BuildWhere(conds, 1)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	limit, offset := page.LimitOffset()
	listArgs := append(args, limit, offset)
	sql := fmt.Sprintf(
		`SELECT id, order_id, user_id, status, amount::text, created_at
		 FROM payments%s
		 ORDER BY created_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(conds)+1, len(conds)+2,
	)

	rows, err := r.pool.Query(ctx, sql, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		var (
			p      model.Payment
			status string
			amount string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &p.UserID, &status, &amount, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}

		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, 0, fmt.Errorf("parse amount: %w", err)
		}

		p.Status = model.PaymentStatus(status)
		p.Amount = a
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return payments, total, nil
}

// TotalAmount возвращает сумму успешных платежей за период. При userID == nil
// считается сумма по всем пользователям.
func (r *Postgres) TotalAmount(ctx context.Context, start, end time.Time, userID *int64) (decimal.Decimal, error) {
	var total string

	if userID != nil {
		err := r.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0)::text
			 FROM payments
			 WHERE status = $1 AND user_id = $2 AND created_at BETWEEN $3 AND $4`,
			string(model.PaymentStatusSuccess), *userID, start, end,
		).Scan(&total)
		if err != nil {
			return decimal.Zero, fmt.Errorf("sum payments: %w", err)
		}
	} else {
		err := r.pool.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0)::text
			 FROM payments
			 WHERE status = $1 AND created_at BETWEEN $2 AND $3`,
			string(model.PaymentStatusSuccess), start, end,
		).Scan(&total)
		if err != nil {
			return decimal.Zero, fmt.Errorf("sum payments: %w", err)
		}
	}

	sum, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse total: %w", err)
	}

	return sum, nil
}
