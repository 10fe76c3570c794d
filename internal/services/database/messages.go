// Package database provides database operations for the repayment negotiation engine.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"repayment-negotiation-engine/internal/models"
)

// MessageRepository handles conversation message database operations.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, message_id, borrower_id, manager_id, sender, text,
	conversation_state, metadata, sentiment, risk_score, is_automated, created_at`

// Create inserts a new conversation message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.MessageCreate) (*models.Message, error) {
	var metadata []byte
	if msg.Metadata != nil {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message metadata: %w", err)
		}
	}

	query := `
		INSERT INTO messages (message_id, borrower_id, manager_id, sender, text,
			conversation_state, metadata, sentiment, risk_score, is_automated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	created := &models.Message{
		MessageID:         msg.MessageID,
		BorrowerID:        msg.BorrowerID,
		ManagerID:         msg.ManagerID,
		Sender:            msg.Sender,
		Text:              msg.Text,
		ConversationState: msg.ConversationState,
		Metadata:          msg.Metadata,
		Sentiment:         msg.Sentiment,
		RiskScore:         msg.RiskScore,
		IsAutomated:       msg.IsAutomated,
	}

	err := r.db.QueryRowContext(ctx, query,
		msg.MessageID,
		msg.BorrowerID,
		msg.ManagerID,
		string(msg.Sender),
		msg.Text,
		string(msg.ConversationState),
		metadata,
		msg.Sentiment,
		msg.RiskScore,
		msg.IsAutomated,
		time.Now().UTC(),
	).Scan(&created.ID, &created.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return created, nil
}

// GetByBorrowerID returns the conversation history for a borrower, oldest first.
func (r *MessageRepository) GetByBorrowerID(ctx context.Context, borrowerID int64, limit int) ([]*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE borrower_id = $1
		ORDER BY created_at, id
		LIMIT $2`, messageColumns)

	rows, err := r.db.QueryContext(ctx, query, borrowerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// LatestPlanOffer returns the most recent plan_suggested message for the
// borrower at or after the given time, or nil if there is none.
func (r *MessageRepository) LatestPlanOffer(ctx context.Context, borrowerID int64, since time.Time) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE borrower_id = $1 AND conversation_state = $2 AND created_at >= $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, messageColumns)

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query,
		borrowerID, string(models.ConversationPlanSuggested), since))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan offers: %w", err)
	}

	return msg, nil
}

// LatestAutomated returns the borrower's most recent automated outbound
// message, or nil if there is none.
func (r *MessageRepository) LatestAutomated(ctx context.Context, borrowerID int64) (*models.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE borrower_id = $1 AND is_automated = true
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, messageColumns)

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, borrowerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	return msg, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var sender, state string
	var metadata []byte

	err := row.Scan(
		&msg.ID,
		&msg.MessageID,
		&msg.BorrowerID,
		&msg.ManagerID,
		&sender,
		&msg.Text,
		&state,
		&metadata,
		&msg.Sentiment,
		&msg.RiskScore,
		&msg.IsAutomated,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Sender = models.MessageSender(sender)
	msg.ConversationState = models.ConversationState(state)

	if len(metadata) > 0 {
		var m models.MessageMetadata
		if err := json.Unmarshal(metadata, &m); err != nil {
			return nil, fmt.Errorf("failed to decode message metadata: %w", err)
		}
		msg.Metadata = &m
	}

	return &msg, nil
}
