package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

// CreateCard сохраняет платёжную карту пользователя.
func (r *Postgres) CreateCard(ctx context.Context, card *model.PaymentCard) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payment_cards (user_id, number, holder, expiry_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		card.UserID, card.Number, card.Holder, card.ExpiryDate,
	).Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

// ListCardsByUser возвращает карты пользователя.
func (r *Postgres) ListCardsByUser(ctx context.Context, userID int64) ([]model.PaymentCard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, number, holder, expiry_date, created_at
		 FROM payment_cards
		 WHERE user_id = $1
		 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}
	defer rows.Close()

	var cards []model.PaymentCard
	for rows.Next() {
		var card model.PaymentCard
		if err := rows.Scan(&card.ID, &card.UserID, &card.Number, &card.Holder, &card.ExpiryDate, &card.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cards, nil
}

// DeleteCard удаляет платёжную карту.
func (r *Postgres) DeleteCard(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM payment_cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}
