package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/areachat/internal/models"
)

// ChatStore persists chat messages in Postgres.
//
// Schema:
//
//	CREATE TABLE messages (
//	    id           text PRIMARY KEY,
//	    company_id   text NOT NULL,
//	    sender_id    text NOT NULL,
//	    sender_name  text NOT NULL,
//	    recipient_id text,
//	    body         text NOT NULL,
//	    created_at   timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE INDEX idx_messages_company_created ON messages (company_id, created_at);
//
// recipient_id NULL marks a group message; non-NULL a private one.
type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

func (s *ChatStore) CreateGroupMessage(ctx context.Context, companyID models.ID, sender models.Participant, body string) (*models.Message, error) {
	return s.insert(ctx, companyID, sender, nil, body)
}

func (s *ChatStore) CreatePrivateMessage(ctx context.Context, companyID models.ID, sender models.Participant, recipient models.ID, body string) (*models.Message, error) {
	r := string(recipient)
	return s.insert(ctx, companyID, sender, &r, body)
}

func (s *ChatStore) insert(ctx context.Context, companyID models.ID, sender models.Participant, recipient *string, body string) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, company_id, sender_id, sender_name, recipient_id, body)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	msg := models.Message{
		ID:     models.ID(uuid.NewString()),
		Sender: sender,
		Body:   body,
	}
	if recipient != nil {
		msg.RecipientID = models.ID(*recipient)
	}

	var createdAt time.Time
	err := s.pool.QueryRow(ctx, query,
		string(msg.ID), string(companyID), string(sender.ID), sender.Name, recipient, body,
	).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg.CreatedAt = createdAt
	return &msg, nil
}

func (s *ChatStore) GroupHistory(ctx context.Context, companyID models.ID) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, sender_name, body, created_at
		FROM messages
		WHERE company_id = $1 AND recipient_id IS NULL
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, string(companyID))
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, false)
}

func (s *ChatStore) PrivateHistory(ctx context.Context, companyID, a, b models.ID) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, sender_name, recipient_id, body, created_at
		FROM messages
		WHERE company_id = $1
		  AND ((sender_id = $2 AND recipient_id = $3) OR (sender_id = $3 AND recipient_id = $2))
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, string(companyID), string(a), string(b))
	if err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows, true)
}

func scanMessages(rows pgx.Rows, withRecipient bool) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg       models.Message
			id        string
			senderID  string
			recipient *string
		)
		var err error
		if withRecipient {
			err = rows.Scan(&id, &senderID, &msg.Sender.Name, &recipient, &msg.Body, &msg.CreatedAt)
		} else {
			err = rows.Scan(&id, &senderID, &msg.Sender.Name, &msg.Body, &msg.CreatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ID = models.ID(id)
		msg.Sender.ID = models.ID(senderID)
		if recipient != nil {
			msg.RecipientID = models.ID(*recipient)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
