// ABOUTME: Store methods for peer recognition: creation with atomic point
// ABOUTME: award to the recipient, and the public recognition feed.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Recognition is a peer-recognition record.
type Recognition struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Message     string
	Points      int
	CreatedAt   time.Time
}

// RecognitionFeedRow joins a recognition with sender and recipient display names.
type RecognitionFeedRow struct {
	Recognition
	SenderName    string
	RecipientName string
}

// CreateRecognition inserts a recognition and credits the recipient's points
// balance in the same transaction, so the feed and the balance never disagree.
func (s *Store) CreateRecognition(ctx context.Context, senderID, recipientID uuid.UUID, message string, points int) (*Recognition, error) {
	var rec Recognition
	err := s.withPgxTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO recognitions (sender_id, recipient_id, message, points)
			VALUES ($1, $2, $3, $4)
			RETURNING id, sender_id, recipient_id, message, points, created_at`,
			senderID, recipientID, message, points,
		).Scan(&rec.ID, &rec.SenderID, &rec.RecipientID, &rec.Message, &rec.Points, &rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert recognition: %w", err)
		}
		if points > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE users SET points_balance = points_balance + $2, updated_at = now()
				WHERE id = $1`, recipientID, points); err != nil {
				return fmt.Errorf("credit points: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecognitions returns a page of the recognition feed ordered by
// created_at DESC, id DESC. Callers pass limit+1 to detect a next page.
// afterTime/afterID are the cursor from the previous page's last row.
func (s *Store) ListRecognitions(ctx context.Context, afterTime *time.Time, afterID *uuid.UUID, limit int) ([]RecognitionFeedRow, error) {
	sb := psql.
		Select("r.id, r.sender_id, r.recipient_id, r.message, r.points, r.created_at",
			"s.display_name AS sender_name", "t.display_name AS recipient_name").
		From("recognitions r").
		Join("users s ON s.id = r.sender_id").
		Join("users t ON t.id = r.recipient_id").
		OrderBy("r.created_at DESC, r.id DESC").
		Limit(uint64(limit)) //nolint:gosec // G115: limit validated by caller

	if afterTime != nil && afterID != nil {
		sb = sb.Where("(r.created_at, r.id) < (?, ?)", *afterTime, *afterID)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list recognitions: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recognitions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []RecognitionFeedRow
	for rows.Next() {
		var r RecognitionFeedRow
		if err := rows.Scan(
			&r.ID, &r.SenderID, &r.RecipientID, &r.Message, &r.Points, &r.CreatedAt,
			&r.SenderName, &r.RecipientName,
		); err != nil {
			return nil, fmt.Errorf("list recognitions: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
