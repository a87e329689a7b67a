package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Conversation struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	Channel       string
	UnreadCount   int
	LastMessageAt time.Time
	CreatedAt     time.Time
}

// GetOrCreateConversation returns the lead's single conversation, creating
// it on first contact. The lead_id unique constraint makes concurrent
// creates collapse into one row.
func (r *Repository) GetOrCreateConversation(ctx context.Context, leadID uuid.UUID) (Conversation, error) {
	var conv Conversation
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (lead_id)
		VALUES ($1)
		ON CONFLICT (lead_id) DO UPDATE SET last_message_at = now()
		RETURNING id, lead_id, channel, unread_count, last_message_at, created_at
	`, leadID).Scan(&conv.ID, &conv.LeadID, &conv.Channel, &conv.UnreadCount, &conv.LastMessageAt, &conv.CreatedAt)
	return conv, err
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	KindText  = "text"
	KindAudio = "audio"
	KindImage = "image"
)

type Message struct {
	ID                uuid.UUID
	ConversationID    uuid.UUID
	Direction         string
	Kind              string
	Body              *string
	MediaKey          *string
	Transcription     *string
	ProviderMessageID *string
	SentAt            time.Time
}

type CreateMessageParams struct {
	ConversationID    uuid.UUID
	Direction         string
	Kind              string
	Body              *string
	MediaKey          *string
	Transcription     *string
	ProviderMessageID *string
}

// CreateMessage records a message. A replayed provider message id lands on
// the partial unique index and comes back as ErrDuplicateMessage so webhook
// retries stay side-effect free.
func (r *Repository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	kind := params.Kind
	if kind == "" {
		kind = KindText
	}

	var msg Message
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, direction, kind, body, media_key, transcription, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (conversation_id, provider_message_id) WHERE provider_message_id IS NOT NULL
		DO NOTHING
		RETURNING id, conversation_id, direction, kind, body, media_key, transcription, provider_message_id, sent_at
	`, params.ConversationID, params.Direction, kind, params.Body, params.MediaKey, params.Transcription, params.ProviderMessageID).Scan(
		&msg.ID, &msg.ConversationID, &msg.Direction, &msg.Kind, &msg.Body,
		&msg.MediaKey, &msg.Transcription, &msg.ProviderMessageID, &msg.SentAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrDuplicateMessage
	}
	if err != nil {
		return Message{}, err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE conversations SET last_message_at = msg.sent_at
		FROM (SELECT sent_at FROM messages WHERE id = $2) msg
		WHERE conversations.id = $1
	`, params.ConversationID, msg.ID)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ListRecentMessages returns the newest messages in chronological order.
func (r *Repository) ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, direction, kind, body, media_key, transcription, provider_message_id, sent_at
		FROM (
			SELECT id, conversation_id, direction, kind, body, media_key, transcription, provider_message_id, sent_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Direction, &msg.Kind, &msg.Body,
			&msg.MediaKey, &msg.Transcription, &msg.ProviderMessageID, &msg.SentAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountInbound returns how many lead messages the conversation has.
func (r *Repository) CountInbound(ctx context.Context, conversationID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND direction = $2
	`, conversationID, DirectionInbound).Scan(&count)
	return count, err
}

func (r *Repository) IncrementUnread(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET unread_count = unread_count + 1
		WHERE id = $1
	`, conversationID)
	return err
}

func (r *Repository) ResetUnread(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET unread_count = 0
		WHERE id = $1
	`, conversationID)
	return err
}
