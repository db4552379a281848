package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
)

// UpsertFavorite inserts a favorite keyed by (user, listing). The ON CONFLICT
// clause makes duplicate upserts no-ops, which is what makes guest
// reconciliation retry-safe without pre-checking.
func (s *Store) UpsertFavorite(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO favorites (id, user_id, listing_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_id) DO NOTHING
	`, uuid.New(), userID, listingID)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// DeleteFavorite removes a favorite.
func (s *Store) DeleteFavorite(ctx context.Context, userID, listingID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2
	`, userID, listingID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "listing %s is not in favorites", listingID)
	}
	return nil
}

// IsFavorite reports whether the user favorited the listing.
func (s *Store) IsFavorite(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)
	`, userID, listingID).Scan(&exists)
	if err != nil {
		return false, mapPgError(err)
	}
	return exists, nil
}

// ListFavorites returns a page of the user's favorites with their listings,
// newest first.
func (s *Store) ListFavorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.user_id, f.listing_id, f.created_at,
		       l.id, l.user_id, l.title, l.description, l.categories, l.condition, l.allow_trade, l.status, l.price, l.created_at, l.updated_at
		FROM favorites f
		JOIN listings l ON f.listing_id = l.id
		WHERE f.user_id = $1 AND l.status != 'deleted'
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var (
			fav            models.Favorite
			listing        models.Listing
			categoriesData []byte
		)
		err := rows.Scan(
			&fav.ID, &fav.UserID, &fav.ListingID, &fav.CreatedAt,
			&listing.ID, &listing.UserID, &listing.Title, &listing.Description,
			&categoriesData, &listing.Condition, &listing.AllowTrade,
			&listing.Status, &listing.Price, &listing.CreatedAt, &listing.UpdatedAt,
		)
		if err != nil {
			return nil, 0, apperror.Storage(err)
		}
		if len(categoriesData) > 0 {
			if err := json.Unmarshal(categoriesData, &listing.Categories); err != nil {
				listing.Categories = []string{}
			}
		}
		fav.Listing = &listing
		favorites = append(favorites, fav)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperror.Storage(err)
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM favorites f
		JOIN listings l ON f.listing_id = l.id
		WHERE f.user_id = $1 AND l.status != 'deleted'
	`, userID).Scan(&total)
	if err != nil {
		return nil, 0, mapPgError(err)
	}

	return favorites, total, nil
}

// MergePreferences merges the patch into the user's preferences with a single
// jsonb concatenation. Keys absent from the patch keep their stored values,
// which gives per-field last-write-wins in one atomic statement.
func (s *Store) MergePreferences(ctx context.Context, userID uuid.UUID, patch map[string]interface{}) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return apperror.Storage(err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET preferences = preferences || $1::jsonb, updated_at = NOW() WHERE id = $2
	`, data, userID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "user %s not found", userID)
	}
	return nil
}

// AppendSearchHistory prepends the terms to the user's search history,
// de-duplicated on insert, then truncates beyond the cap.
func (s *Store) AppendSearchHistory(ctx context.Context, userID uuid.UUID, terms []string, cap int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.Storage(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Terms arrive most-recent-first; insert in reverse so timestamps line up.
	for i := len(terms) - 1; i >= 0; i-- {
		_, err := tx.Exec(ctx, `
			INSERT INTO search_history (id, user_id, term)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, term) DO UPDATE SET created_at = NOW()
		`, uuid.New(), userID, terms[i])
		if err != nil {
			return mapPgError(err)
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM search_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM search_history
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)
	`, userID, cap)
	if err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// AppendViewedListings prepends the listing IDs to the user's viewed history,
// de-duplicated on insert, then truncates beyond the cap.
func (s *Store) AppendViewedListings(ctx context.Context, userID uuid.UUID, listingIDs []uuid.UUID, cap int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.Storage(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := len(listingIDs) - 1; i >= 0; i-- {
		_, err := tx.Exec(ctx, `
			INSERT INTO viewed_listings (id, user_id, listing_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, listing_id) DO UPDATE SET viewed_at = NOW()
		`, uuid.New(), userID, listingIDs[i])
		if err != nil {
			return mapPgError(err)
		}
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM viewed_listings
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM viewed_listings
			WHERE user_id = $1
			ORDER BY viewed_at DESC
			LIMIT $2
		)
	`, userID, cap)
	if err != nil {
		return mapPgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}
