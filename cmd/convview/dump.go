package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ajramos/convview/internal/conversation"
	"github.com/ajramos/convview/internal/host"
)

const settleRounds = 10

type dumpOutput struct {
	Conversation string                `json:"conversation"`
	Messages     []dumpMessage         `json:"messages"`
	Snapshot     conversation.Snapshot `json:"snapshot"`
	Reports      int                   `json:"reports"`
}

type dumpMessage struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Expanded   bool   `json:"expanded"`
	Hidden     bool   `json:"hidden"`
	ShowImages bool   `json:"show_images"`
}

// dump loads a conversation, waits for image loads and the passes they schedule, and writes
// the resulting state
func dump(ctx context.Context, s *session, conversationID string, w io.Writer) error {
	if err := s.harness.Open(ctx, conversationID); err != nil {
		return err
	}
	if err := s.bridge.Settle(ctx, settleRounds); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	s.loader.Wait()
	if err := s.bridge.Settle(ctx, settleRounds); err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	snap, err := s.bridge.Snapshot(ctx)
	if err != nil {
		return err
	}
	out := dumpOutput{
		Conversation: conversationID,
		Snapshot:     snap,
		Reports:      s.harness.Reports(),
	}
	for _, m := range s.harness.Messages() {
		out.Messages = append(out.Messages, dumpState(m))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dumpState(m host.MessageState) dumpMessage {
	return dumpMessage{ID: m.DOMID, Sender: m.Sender, Expanded: m.Expanded, Hidden: m.Hidden, ShowImages: m.ShowImages}
}
