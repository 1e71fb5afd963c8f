package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/ajramos/convview/internal/db"
	"github.com/ajramos/convview/internal/mailbox"
)

type importResult struct {
	Conversations []string
	Messages      int
	Skipped       int
}

// importMbox stores every thread of an mbox stream as a conversation. Messages that cannot be
// parsed are logged and skipped.
func importMbox(ctx context.Context, store *db.ConversationStore, r io.Reader, quoteClass string, logger *log.Logger) (importResult, error) {
	var res importResult
	msgs, err := mailbox.ReadMbox(r)
	if err != nil {
		if len(msgs) == 0 {
			return res, err
		}
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			res.Skipped = len(joined.Unwrap())
		}
		if logger != nil {
			logger.Printf("import: %v", err)
		}
	}

	for _, thread := range mailbox.GroupThreads(msgs) {
		c, err := store.CreateConversation(ctx, thread.Subject)
		if err != nil {
			return res, fmt.Errorf("create conversation: %w", err)
		}
		for _, m := range thread.Messages {
			stored := &db.Message{
				MessageID: m.MessageID,
				From:      m.From,
				To:        m.To,
				Subject:   m.Subject,
				Date:      m.Date,
				BodyHTML:  m.BodyHTML(quoteClass),
			}
			parts := make([]db.InlinePart, 0, len(m.Inline))
			for _, in := range m.Inline {
				parts = append(parts, db.InlinePart{ContentID: in.ContentID, MimeType: in.MimeType, Data: in.Data})
			}
			if err := store.AddMessage(ctx, c.ID, stored, parts); err != nil {
				return res, fmt.Errorf("store message %s: %w", m.MessageID, err)
			}
			res.Messages++
		}
		res.Conversations = append(res.Conversations, c.ID)
		if logger != nil {
			logger.Printf("import: %q as %s (%d messages)", thread.Subject, c.ID, len(thread.Messages))
		}
	}
	return res, nil
}
