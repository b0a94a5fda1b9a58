package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messenger/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository abstracts message persistence. Listing excludes
// soft-deleted messages unless includeDeleted is set; mutations run
// under the same versioned read-modify-write as groups so reaction and
// read-receipt appends never interleave.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListGroupMessages(ctx context.Context, groupID int, includeDeleted bool) ([]models.Message, error)
	ListDirectMessages(ctx context.Context, userID, otherID int, includeDeleted bool) ([]models.Message, error)
	UpdateMessage(ctx context.Context, messageID int, mutate func(*models.Message) error) (models.Message, error)
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, content, sender_id, group_id, recipient_id, is_private, reply_to,
    attachments, reactions, read_by, is_edited, edited_at, is_deleted, deleted_at, deleted_by, version, created_at`

// CreateMessage persists a constructed message.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (content, sender_id, group_id, recipient_id, is_private, reply_to, attachments, reactions, read_by)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
         RETURNING `+messageColumns,
		msg.Content, msg.SenderID, msg.GroupID, msg.RecipientID, msg.IsPrivate, msg.ReplyTo,
		msg.Attachments, msg.Reactions, msg.ReadBy).
		StructScan(&msg)
	return msg, err
}

// GetMessage fetches a single message, deleted or not.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListGroupMessages returns group messages in creation order.
func (r *MessageRepo) ListGroupMessages(ctx context.Context, groupID int, includeDeleted bool) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE group_id=$1 AND (is_deleted = FALSE OR $2)
         ORDER BY created_at ASC`, groupID, includeDeleted)
	return msgs, err
}

// ListDirectMessages returns the DM conversation between two users.
func (r *MessageRepo) ListDirectMessages(ctx context.Context, userID, otherID int, includeDeleted bool) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE ((sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1))
         AND (is_deleted = FALSE OR $3)
         ORDER BY created_at ASC`, userID, otherID, includeDeleted)
	return msgs, err
}

// UpdateMessage applies mutate under optimistic concurrency, retrying
// on version conflicts.
func (r *MessageRepo) UpdateMessage(ctx context.Context, messageID int, mutate func(*models.Message) error) (models.Message, error) {
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		msg, err := r.GetMessage(ctx, messageID)
		if err != nil {
			return models.Message{}, err
		}
		if err := mutate(&msg); err != nil {
			return models.Message{}, err
		}

		res, err := r.db.ExecContext(ctx,
			`UPDATE messages SET content=$1, reactions=$2, read_by=$3, is_edited=$4, edited_at=$5,
             is_deleted=$6, deleted_at=$7, deleted_by=$8, version=version+1
             WHERE id=$9 AND version=$10`,
			msg.Content, msg.Reactions, msg.ReadBy, msg.IsEdited, msg.EditedAt,
			msg.IsDeleted, msg.DeletedAt, msg.DeletedBy, messageID, msg.Version)
		if err != nil {
			return models.Message{}, err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return models.Message{}, err
		}
		if count == 1 {
			msg.Version++
			return msg, nil
		}
	}
	return models.Message{}, ErrWriteConflict
}
