// Package messages provides the per-permit discussion thread.
package messages

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

// Message is one entry in a permit's thread
type Message struct {
	ID        int64     `json:"id"`
	PermitID  int64     `json:"permit_id"`
	SenderID  int64     `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Service provides message persistence. Permission checks happen in the
// facade.
type Service struct {
	db *sql.DB
}

// NewService creates a new message service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const maxBodyLength = 10000

// Send appends a message to the permit's thread
func (s *Service) Send(ctx context.Context, permitID, senderID int64, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.Validation("body", "body is required")
	}
	if len(body) > maxBodyLength {
		return nil, apperrors.Validation("body", "body exceeds maximum length")
	}

	message := &Message{
		PermitID: permitID,
		SenderID: senderID,
		Body:     body,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (permit_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		permitID, senderID, body,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return message, nil
}

// List returns a permit's messages, newest first, with offset/limit
func (s *Service) List(ctx context.Context, permitID int64, limit, offset int) ([]*Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, permit_id, sender_id, body, created_at
		FROM messages
		WHERE permit_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		permitID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*Message, 0)
	for rows.Next() {
		message := &Message{}
		if err := rows.Scan(
			&message.ID, &message.PermitID, &message.SenderID,
			&message.Body, &message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}
