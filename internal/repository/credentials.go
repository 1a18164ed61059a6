package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ordermart-system/internal/model"
)

// CreateCredential сохраняет учётные данные. Логин и идентификатор
// пользователя уникальны: нарушение обоих отображается в ErrCredentialExists.
func (r *Postgres) CreateCredential(ctx context.Context, cred *model.Credential) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO credentials (user_id, login, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		cred.UserID, cred.Login, cred.PasswordHash, string(cred.Role),
	).Scan(&cred.ID, &cred.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCredentialExists, cred.Login)
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// GetCredentialByLogin возвращает учётные данные по логину.
func (r *Postgres) GetCredentialByLogin(ctx context.Context, login string) (*model.Credential, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, login, password_hash, role, created_at
		 FROM credentials
		 WHERE login = $1`,
		login,
	)

	var (
		cred model.Credential
		role string
	)
	err := row.Scan(&cred.ID, &cred.UserID, &cred.Login, &cred.PasswordHash, &role, &cred.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}

	cred.Role = model.Role(role)
	return &cred, nil
}
