package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ordermart-system/internal/model"
	"github.com/mmeshcher/ordermart-system/internal/query"
)

// CreateUser создаёт пользователя с уникальным email.
func (r *Postgres) CreateUser(ctx context.Context, user *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, surname, email, active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING id, created_at`,
		user.Name, user.Surname, user.Email,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}

	user.Active = true
	return nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *Postgres) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, surname, email, active, created_at FROM users WHERE id = $1`,
		id,
	)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// UpdateUser обновляет имя, фамилию и email пользователя.
func (r *Postgres) UpdateUser(ctx context.Context, user *model.User) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET name = $2, surname = $3, email = $4 WHERE id = $1`,
		user.ID, user.Name, user.Surname, user.Email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с его картами.
func (r *Postgres) DeleteUser(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserActive переключает признак активности. Повторный перевод в то же
// состояние отклоняется как конфликт.
func (r *Postgres) SetUserActive(ctx context.Context, id int64, active bool) (*model.User, error) {
	var user *model.User

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, name, surname, email, active, created_at
			 FROM users
			 WHERE id = $1
			 FOR UPDATE`,
			id,
		)

		u, err := scanUser(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get user: %w", err)
		}

		if u.Active == active {
			return ErrUserStatusUnchanged
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active); err != nil {
			return fmt.Errorf("update user status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		u.Active = active
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ListUsers возвращает страницу пользователей по фильтру и общее число совпадений.
func (r *Postgres) ListUsers(ctx context.Context, filter query.UserFilter, page query.Page) ([]model.User, int64, error) {
	conds := filter.Conditions()
	where, args := query.BuildWhere(conds, 1)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit, offset := page.LimitOffset()
	listArgs := append(args, limit, offset)
	sql := fmt.Sprintf(
		`SELECT id, name, surname, email, active, created_at
		 FROM users%s
		 ORDER BY id
		 LIMIT $%d OFFSET $%d`,
		where, len(conds)+1, len(conds)+2,
	)

	rows, err := r.pool.Query(ctx, sql, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return users, total, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Name, &user.Surname, &user.Email, &user.Active, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
