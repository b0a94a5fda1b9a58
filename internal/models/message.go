package models

import (
	"database/sql/driver"
	"strings"
	"time"
	"unicode/utf8"
)

// AttachmentType classifies an uploaded attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentVideo AttachmentType = "video"
	AttachmentAudio AttachmentType = "audio"
)

// Attachment is a file referenced by a message.
type Attachment struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Type     AttachmentType `json:"type"`
	Size     int64          `json:"size"`
	MimeType string         `json:"mime_type"`
}

type AttachmentList []Attachment

func (l AttachmentList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *AttachmentList) Scan(src any) error          { return jsonbScan(src, l) }

// Reaction is one emoji reaction. A user may react with a given emoji
// at most once per message.
type Reaction struct {
	Emoji     string    `json:"emoji"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type ReactionList []Reaction

func (l ReactionList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *ReactionList) Scan(src any) error          { return jsonbScan(src, l) }

// ReadReceipt records that a user has seen the message.
type ReadReceipt struct {
	UserID int       `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type ReadReceiptList []ReadReceipt

func (l ReadReceiptList) Value() (driver.Value, error) { return jsonbValue(l) }
func (l *ReadReceiptList) Scan(src any) error          { return jsonbScan(src, l) }

const maxMessageContentLength = 2000

// Message is a chat message aggregate. Exactly one of GroupID and
// RecipientID is set; IsPrivate is derived from RecipientID.
type Message struct {
	ID          int             `db:"id" json:"id"`
	Content     string          `db:"content" json:"content"`
	SenderID    int             `db:"sender_id" json:"sender_id"`
	GroupID     *int            `db:"group_id" json:"group_id,omitempty"`
	RecipientID *int            `db:"recipient_id" json:"recipient_id,omitempty"`
	IsPrivate   bool            `db:"is_private" json:"is_private"`
	ReplyTo     *int            `db:"reply_to" json:"reply_to,omitempty"`
	Attachments AttachmentList  `db:"attachments" json:"attachments,omitempty"`
	Reactions   ReactionList    `db:"reactions" json:"reactions"`
	ReadBy      ReadReceiptList `db:"read_by" json:"read_by"`
	IsEdited    bool            `db:"is_edited" json:"is_edited"`
	EditedAt    *time.Time      `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted   bool            `db:"is_deleted" json:"is_deleted"`
	DeletedAt   *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedBy   *int            `db:"deleted_by" json:"deleted_by,omitempty"`
	Version     int             `db:"version" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewMessage validates and constructs a message. ReadBy is seeded with
// the sender so a message never appears unread to its author.
func NewMessage(content string, senderID int, groupID, recipientID *int, replyTo *int, attachments []Attachment) (Message, error) {
	if groupID == nil && recipientID == nil {
		return Message{}, ErrMissingTarget
	}
	if groupID != nil && recipientID != nil {
		return Message{}, ErrAmbiguousTarget
	}
	content = strings.TrimSpace(content)
	if content == "" && len(attachments) == 0 {
		return Message{}, validationError("message content must not be empty")
	}
	// limits are in characters, not bytes; multibyte text counts per rune
	if utf8.RuneCountInString(content) > maxMessageContentLength {
		return Message{}, validationError("message content must not exceed 2000 characters")
	}
	for _, a := range attachments {
		switch a.Type {
		case AttachmentImage, AttachmentFile, AttachmentVideo, AttachmentAudio:
		default:
			return Message{}, validationError("attachment type must be image, file, video or audio")
		}
	}

	return Message{
		Content:     content,
		SenderID:    senderID,
		GroupID:     groupID,
		RecipientID: recipientID,
		IsPrivate:   recipientID != nil,
		ReplyTo:     replyTo,
		Attachments: attachments,
		Reactions:   ReactionList{},
		ReadBy:      ReadReceiptList{{UserID: senderID, ReadAt: time.Now().UTC()}},
	}, nil
}

// AddReaction appends a reaction, enforcing (emoji, user) uniqueness.
func (m *Message) AddReaction(emoji string, userID int, username string) error {
	if strings.TrimSpace(emoji) == "" {
		return validationError("emoji must not be empty")
	}
	for _, r := range m.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			return ErrDuplicateReaction
		}
	}
	m.Reactions = append(m.Reactions, Reaction{
		Emoji:     emoji,
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// RemoveReaction deletes the (emoji, user) reaction.
func (m *Message) RemoveReaction(emoji string, userID int) error {
	for i, r := range m.Reactions {
		if r.Emoji == emoji && r.UserID == userID {
			m.Reactions = append(m.Reactions[:i], m.Reactions[i+1:]...)
			return nil
		}
	}
	return ErrReactionNotFound
}

// MarkAsRead records a read receipt. It is idempotent; the return
// reports whether the receipt was new.
func (m *Message) MarkAsRead(userID int) bool {
	if m.IsReadBy(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: time.Now().UTC()})
	return true
}

// IsReadBy reports whether the user has a read receipt.
func (m *Message) IsReadBy(userID int) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// Edit replaces the content and stamps the edit marker. Authorization
// (sender or group admin) is the caller's job.
func (m *Message) Edit(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return validationError("message content must not be empty")
	}
	if utf8.RuneCountInString(content) > maxMessageContentLength {
		return validationError("message content must not exceed 2000 characters")
	}
	now := time.Now().UTC()
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return nil
}

// SoftDelete marks the message deleted without removing the row.
// Default retrieval excludes deleted messages.
func (m *Message) SoftDelete(by int) {
	now := time.Now().UTC()
	m.IsDeleted = true
	m.DeletedAt = &now
	m.DeletedBy = &by
}
