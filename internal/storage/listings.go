package storage

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
)

// GetListingForUpdate loads a listing row with a row lock, so availability
// checks and the writes that follow are atomic within the transaction.
func (t *Tx) GetListingForUpdate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, user_id, title, description, categories, condition, allow_trade, status, price, created_at, updated_at
		FROM listings
		WHERE id = $1
		FOR UPDATE
	`, id)

	listing, err := scanListing(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return listing, nil
}

// SetListingStatus flips a listing's availability flag.
func (t *Tx) SetListingStatus(ctx context.Context, id uuid.UUID, status models.ListingStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE listings SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "listing %s not found", id)
	}
	return nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var (
		listing        models.Listing
		categoriesData []byte
	)
	err := row.Scan(
		&listing.ID,
		&listing.UserID,
		&listing.Title,
		&listing.Description,
		&categoriesData,
		&listing.Condition,
		&listing.AllowTrade,
		&listing.Status,
		&listing.Price,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(categoriesData) > 0 {
		if err := json.Unmarshal(categoriesData, &listing.Categories); err != nil {
			listing.Categories = []string{}
		}
	}
	return &listing, nil
}

// GetListing loads a listing with its images, outside any transaction.
func (s *Store) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, description, categories, condition, allow_trade, status, price, created_at, updated_at
		FROM listings
		WHERE id = $1
	`, id)

	listing, err := scanListing(row)
	if err != nil {
		return nil, mapPgError(err)
	}

	images, err := s.listingImages(ctx, id)
	if err != nil {
		return nil, err
	}
	listing.Images = images
	return listing, nil
}

// CreateListing inserts a listing and its images in one transaction.
func (s *Store) CreateListing(ctx context.Context, listing *models.Listing) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.Storage(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	categories, err := json.Marshal(listing.Categories)
	if err != nil {
		return apperror.Storage(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO listings (id, user_id, title, description, categories, condition, allow_trade, status, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, listing.ID, listing.UserID, listing.Title, listing.Description, categories,
		listing.Condition, listing.AllowTrade, listing.Status, listing.Price)
	if err != nil {
		return mapPgError(err)
	}

	for _, img := range listing.Images {
		metadata, err := json.Marshal(img.Metadata)
		if err != nil {
			return apperror.Storage(err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO listing_images (id, listing_id, url, preview_url, public_id, file_name, is_main, position, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, img.ID, listing.ID, img.URL, img.PreviewURL, img.PublicID, img.FileName, img.IsMain, img.Position, metadata)
		if err != nil {
			return mapPgError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// UpdateListing updates the editable fields of a listing owned by userID.
func (s *Store) UpdateListing(ctx context.Context, listing *models.Listing) error {
	categories, err := json.Marshal(listing.Categories)
	if err != nil {
		return apperror.Storage(err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET title = $1, description = $2, categories = $3, condition = $4,
		    allow_trade = $5, status = $6, price = $7, updated_at = NOW()
		WHERE id = $8 AND user_id = $9
	`, listing.Title, listing.Description, categories, listing.Condition,
		listing.AllowTrade, listing.Status, listing.Price, listing.ID, listing.UserID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "listing %s not found", listing.ID)
	}
	return nil
}

// DeleteListing soft deletes a listing owned by userID. The row stays so
// closed trades keep a valid reference.
func (s *Store) DeleteListing(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status != 'deleted'
	`, id, userID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "listing %s not found", id)
	}
	return nil
}

// ListUserListings returns a page of a user's listings, newest first, plus
// the total count for pagination.
func (s *Store) ListUserListings(ctx context.Context, userID uuid.UUID, status models.ListingStatus, limit, offset int) ([]models.Listing, int, error) {
	query := psql.Select("id", "user_id", "title", "description", "categories",
		"condition", "allow_trade", "status", "price", "created_at", "updated_at").
		From("listings").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.NotEq{"status": models.ListingStatusDeleted})
	count := psql.Select("COUNT(*)").From("listings").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.NotEq{"status": models.ListingStatusDeleted})

	if status != "" {
		query = query.Where(sq.Eq{"status": status})
		count = count.Where(sq.Eq{"status": status})
	}
	query = query.OrderBy("created_at DESC").
		Limit(uint64(limit)).Offset(uint64(offset))

	listings, err := s.queryListings(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return nil, 0, apperror.Storage(err)
	}
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}
	return listings, total, nil
}

// ListActiveListings returns a page of publicly browsable listings, newest
// first, plus the total count.
func (s *Store) ListActiveListings(ctx context.Context, limit, offset int) ([]models.Listing, int, error) {
	query := psql.Select("id", "user_id", "title", "description", "categories",
		"condition", "allow_trade", "status", "price", "created_at", "updated_at").
		From("listings").
		Where(sq.Eq{"status": models.ListingStatusActive}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).Offset(uint64(offset))

	listings, err := s.queryListings(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings WHERE status = 'active'`).Scan(&total)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	return listings, total, nil
}

func (s *Store) queryListings(ctx context.Context, query sq.SelectBuilder) ([]models.Listing, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, apperror.Storage(err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage(err)
	}

	for i := range listings {
		images, err := s.listingImages(ctx, listings[i].ID)
		if err != nil {
			return nil, err
		}
		listings[i].Images = images
	}
	return listings, nil
}

func (s *Store) listingImages(ctx context.Context, listingID uuid.UUID) ([]models.ListingImage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, listing_id, url, preview_url, public_id, file_name, is_main, position, created_at
		FROM listing_images
		WHERE listing_id = $1
		ORDER BY position ASC
	`, listingID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var images []models.ListingImage
	for rows.Next() {
		var img models.ListingImage
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &img.PreviewURL,
			&img.PublicID, &img.FileName, &img.IsMain, &img.Position, &img.CreatedAt); err != nil {
			return nil, apperror.Storage(err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage(err)
	}
	return images, nil
}
