package storage

import (
	"context"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
)

// psql builds queries with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const tradeColumns = `id, proposer_id, receiver_id, target_listing_id, offer, status, estimated_value,
	message, meeting_location, meeting_time, completion_code, rejection_reason,
	created_at, updated_at, completed_at`

// InsertTrade persists a freshly proposed trade.
func (t *Tx) InsertTrade(ctx context.Context, trade *models.Trade) error {
	offer, err := json.Marshal(trade.ProposerOffer)
	if err != nil {
		return apperror.Storage(err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO trades (id, proposer_id, receiver_id, target_listing_id, offer, status, estimated_value, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, trade.ID, trade.ProposerID, trade.ReceiverID, trade.TargetListingID, offer,
		trade.Status, trade.EstimatedValue, trade.Message, trade.CreatedAt, trade.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetTradeForUpdate loads a trade row with a row lock.
func (t *Tx) GetTradeForUpdate(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE id = $1
		FOR UPDATE
	`, id)

	trade, err := scanTrade(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return trade, nil
}

// UpdateTrade writes back the mutable trade fields after a transition.
func (t *Tx) UpdateTrade(ctx context.Context, trade *models.Trade) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE trades
		SET status = $1, meeting_location = $2, meeting_time = $3, completion_code = $4,
		    rejection_reason = $5, updated_at = $6, completed_at = $7
		WHERE id = $8
	`, trade.Status, trade.MeetingLocation, trade.MeetingTime, nullIfEmpty(trade.CompletionCode),
		trade.RejectionReason, trade.UpdatedAt, trade.CompletedAt, trade.ID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Newf(apperror.CodeNotFound, "trade %s not found", trade.ID)
	}
	return nil
}

// GetTrade loads a trade outside any transaction.
func (s *Store) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE id = $1
	`, id)

	trade, err := scanTrade(row)
	if err != nil {
		return nil, mapPgError(err)
	}
	return trade, nil
}

// ListPendingBefore returns IDs of pending trades created at or before cutoff.
func (s *Store) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM trades
		WHERE status = 'pending' AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, apperror.Storage(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage(err)
	}
	return ids, nil
}

// TradeFilter narrows ListTrades. Zero values mean "no filter".
type TradeFilter struct {
	// Direction is "incoming", "outgoing" or "" for both.
	Direction string
	Status    models.TradeStatus
	Limit     int
	Offset    int
}

// ListTrades returns the trades a user participates in, newest first.
func (s *Store) ListTrades(ctx context.Context, userID uuid.UUID, filter TradeFilter) ([]models.Trade, error) {
	builder := psql.Select(
		"id", "proposer_id", "receiver_id", "target_listing_id", "offer", "status",
		"estimated_value", "message", "meeting_location", "meeting_time",
		"completion_code", "rejection_reason", "created_at", "updated_at", "completed_at",
	).From("trades")

	switch filter.Direction {
	case "incoming":
		builder = builder.Where(sq.Eq{"receiver_id": userID})
	case "outgoing":
		builder = builder.Where(sq.Eq{"proposer_id": userID})
	default:
		builder = builder.Where(sq.Or{sq.Eq{"proposer_id": userID}, sq.Eq{"receiver_id": userID}})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	builder = builder.OrderBy("created_at DESC").Limit(uint64(limit)).Offset(uint64(filter.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, apperror.Storage(err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, apperror.Storage(err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage(err)
	}
	return trades, nil
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var (
		trade          models.Trade
		offerData      []byte
		completionCode *string
	)
	err := row.Scan(
		&trade.ID,
		&trade.ProposerID,
		&trade.ReceiverID,
		&trade.TargetListingID,
		&offerData,
		&trade.Status,
		&trade.EstimatedValue,
		&trade.Message,
		&trade.MeetingLocation,
		&trade.MeetingTime,
		&completionCode,
		&trade.RejectionReason,
		&trade.CreatedAt,
		&trade.UpdatedAt,
		&trade.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(offerData, &trade.ProposerOffer); err != nil {
		return nil, err
	}
	if completionCode != nil {
		trade.CompletionCode = *completionCode
	}
	return &trade, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
