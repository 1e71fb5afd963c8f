package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation is a stored thread
type Conversation struct {
	ID            string
	Subject       string
	MessageCount  int
	ScrollPercent float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Message is a stored message of a conversation. BodyHTML is the content region fragment.
type Message struct {
	ID             string
	ConversationID string
	Position       int
	MessageID      string
	From           string
	To             string
	Subject        string
	Date           time.Time
	BodyHTML       string
	ShowImages     bool
}

// InlinePart is an image referenced from a message body by Content-ID
type InlinePart struct {
	ContentID string
	MimeType  string
	Data      []byte
}

// ConversationStore persists conversations and their messages
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a conversation store from a base store
func NewConversationStore(store *Store) *ConversationStore {
	if store == nil {
		return nil
	}
	return &ConversationStore{db: store.DB()}
}

func (cs *ConversationStore) ready() error {
	if cs == nil || cs.db == nil {
		return fmt.Errorf("conversation store not initialized")
	}
	return nil
}

// CreateConversation inserts an empty conversation
func (cs *ConversationStore) CreateConversation(ctx context.Context, subject string) (*Conversation, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	now := time.Now()
	c := &Conversation{
		ID:        uuid.NewString(),
		Subject:   strings.TrimSpace(subject),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := cs.db.ExecContext(ctx, `INSERT INTO conversations(id, subject, scroll_percent, created_at, updated_at) VALUES(?,?,?,?,?)`,
		c.ID, c.Subject, 0.0, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

// AddMessage appends msg and its inline parts to a conversation.
// The message id and position are assigned here.
func (cs *ConversationStore) AddMessage(ctx context.Context, conversationID string, msg *Message, parts []InlinePart) error {
	if err := cs.ready(); err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("nil message")
	}
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var pos int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1, 0) FROM messages WHERE conversation_id=?`, conversationID).Scan(&pos)
	if err != nil {
		return fmt.Errorf("next position: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at=? WHERE id=?`, time.Now().Unix(), conversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}

	var sentAt int64
	if !msg.Date.IsZero() {
		sentAt = msg.Date.Unix()
	}
	msg.ID = uuid.NewString()
	msg.ConversationID = conversationID
	msg.Position = pos
	_, err = tx.ExecContext(ctx, `INSERT INTO messages(id, conversation_id, position, message_id, sender, recipients, subject, sent_at, body_html, show_images)
VALUES(?,?,?,?,?,?,?,?,?,?)`,
		msg.ID, conversationID, pos, msg.MessageID, msg.From, msg.To, msg.Subject, sentAt, msg.BodyHTML, msg.ShowImages)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	for _, p := range parts {
		_, err = tx.ExecContext(ctx, `INSERT INTO inline_parts(message_id, content_id, mime_type, data) VALUES(?,?,?,?)
ON CONFLICT(message_id, content_id) DO NOTHING`, msg.ID, p.ContentID, p.MimeType, p.Data)
		if err != nil {
			return fmt.Errorf("insert inline part: %w", err)
		}
	}
	return tx.Commit()
}

// ListConversations returns conversations, most recently updated first
func (cs *ConversationStore) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := cs.db.QueryContext(ctx, `
SELECT c.id, c.subject, c.scroll_percent, c.created_at, c.updated_at, COUNT(m.id)
FROM conversations c LEFT JOIN messages m ON m.conversation_id = c.id
GROUP BY c.id
ORDER BY c.updated_at DESC, c.rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns one conversation
func (cs *ConversationStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	row := cs.db.QueryRowContext(ctx, `
SELECT c.id, c.subject, c.scroll_percent, c.created_at, c.updated_at,
  (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
FROM conversations c WHERE c.id=?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListMessages returns the messages of a conversation in order
func (cs *ConversationStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	rows, err := cs.db.QueryContext(ctx, `
SELECT id, conversation_id, position, message_id, sender, recipients, subject, sent_at, body_html, show_images
FROM messages WHERE conversation_id=? ORDER BY position`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMessage returns one message
func (cs *ConversationStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	row := cs.db.QueryRowContext(ctx, `
SELECT id, conversation_id, position, message_id, sender, recipients, subject, sent_at, body_html, show_images
FROM messages WHERE id=?`, id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return m, err
}

// SetShowImages records whether remote images of a message are always shown
func (cs *ConversationStore) SetShowImages(ctx context.Context, id string, show bool) error {
	if err := cs.ready(); err != nil {
		return err
	}
	res, err := cs.db.ExecContext(ctx, `UPDATE messages SET show_images=? WHERE id=?`, show, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetScrollPercent stores the reading position of a conversation
func (cs *ConversationStore) SetScrollPercent(ctx context.Context, id string, percent float64) error {
	if err := cs.ready(); err != nil {
		return err
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	res, err := cs.db.ExecContext(ctx, `UPDATE conversations SET scroll_percent=? WHERE id=?`, percent, id)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// LoadInlinePart returns an inline part of a message
func (cs *ConversationStore) LoadInlinePart(ctx context.Context, messageID, contentID string) (*InlinePart, error) {
	if err := cs.ready(); err != nil {
		return nil, err
	}
	p := &InlinePart{ContentID: contentID}
	err := cs.db.QueryRowContext(ctx, `SELECT mime_type, data FROM inline_parts WHERE message_id=? AND content_id=?`,
		messageID, contentID).Scan(&p.MimeType, &p.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inline part %s: %w", contentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteConversation removes a conversation with its messages and parts
func (cs *ConversationStore) DeleteConversation(ctx context.Context, id string) error {
	if err := cs.ready(); err != nil {
		return err
	}
	tx, err := cs.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM inline_parts WHERE message_id IN (SELECT id FROM messages WHERE conversation_id=?)`, id); err != nil {
		return fmt.Errorf("delete parts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		c                Conversation
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Subject, &c.ScrollPercent, &created, &updated, &c.MessageCount); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(created, 0)
	c.UpdatedAt = time.Unix(updated, 0)
	return &c, nil
}

func scanMessage(row scanner) (*Message, error) {
	var (
		m    Message
		sent int64
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &m.Position, &m.MessageID, &m.From, &m.To, &m.Subject, &sent, &m.BodyHTML, &m.ShowImages); err != nil {
		return nil, err
	}
	if sent != 0 {
		m.Date = time.Unix(sent, 0)
	}
	return &m, nil
}
