package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
)

// TelegramProfile is the identity payload received from the Telegram login.
type TelegramProfile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	IsPremium    bool
	LanguageCode string
	RawData      []byte
}

// UpsertTelegramUser creates the account on first login or refreshes the
// stored profile on subsequent logins, in one transaction.
func (s *Store) UpsertTelegramUser(ctx context.Context, profile TelegramProfile) (*models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM telegram_users WHERE telegram_id = $1
	`, profile.TelegramID).Scan(&userID)

	switch {
	case err == pgx.ErrNoRows:
		err = tx.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, username, avatar_url, last_login_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id
		`, profile.FirstName, profile.LastName, profile.Username, profile.PhotoURL).Scan(&userID)
		if err != nil {
			return nil, mapPgError(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, is_premium, language_code, raw_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, userID, profile.TelegramID, profile.Username, profile.FirstName, profile.LastName,
			profile.PhotoURL, profile.IsPremium, profile.LanguageCode, profile.RawData)
		if err != nil {
			return nil, mapPgError(err)
		}

	case err != nil:
		return nil, mapPgError(err)

	default:
		_, err = tx.Exec(ctx, `
			UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
		`, userID)
		if err != nil {
			return nil, mapPgError(err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE telegram_users
			SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
			    is_premium = $5, language_code = $6, raw_data = $7, updated_at = NOW()
			WHERE telegram_id = $8
		`, profile.Username, profile.FirstName, profile.LastName, profile.PhotoURL,
			profile.IsPremium, profile.LanguageCode, profile.RawData, profile.TelegramID)
		if err != nil {
			return nil, mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err)
	}

	return s.GetUser(ctx, userID)
}

// GetUser loads a user's public profile.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, avatar_url, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.AvatarURL, &user.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &user, nil
}
