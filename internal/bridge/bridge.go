// Package bridge is the call surface between a native host and the conversation content.
//
// Inbound commands arrive on host goroutines and are run on the event loop that owns the
// view; each call blocks until the command has finished. Lookup failures stay on the content
// side: they are logged and the call returns nil. Only transport errors (closed loop,
// cancelled context) reach the caller.
package bridge

import (
	"context"
	"errors"
	"log"

	"github.com/ajramos/convview/internal/conversation"
	"github.com/ajramos/convview/internal/eventloop"
)

// Host is the outbound half of the bridge, implemented by the native side
type Host = conversation.Host

// Commands is the inbound half of the bridge
type Commands interface {
	Load(ctx context.Context, markup string) error
	SetMessageBodyVisible(ctx context.Context, domID string, visible bool, spacerHeight int) error
	SetMessageHeaderSpacerHeight(ctx context.Context, domID string, spacerHeight int) error
	SetConversationHeaderSpacerHeight(ctx context.Context, height int) error
	ReplaceSuperCollapsedBlock(ctx context.Context, index int) error
	ReplaceMessageBodies(ctx context.Context, domIDs []string) error
	AppendMessageHTML(ctx context.Context) error
	UnblockImages(ctx context.Context, domID string) error
	ToggleQuotedText(ctx context.Context, domID string, n int) error
}

// Bridge runs commands against a View on its event loop
type Bridge struct {
	loop   *eventloop.Loop
	view   *conversation.View
	logger *log.Logger
}

var _ Commands = (*Bridge)(nil)

// New creates a bridge. The view must have been created with loop as its dispatcher.
func New(loop *eventloop.Loop, view *conversation.View, logger *log.Logger) *Bridge {
	return &Bridge{loop: loop, view: view, logger: logger}
}

// View returns the view behind the bridge. Only touch it from inside Inspect.
func (b *Bridge) View() *conversation.View { return b.view }

func (b *Bridge) run(ctx context.Context, op string, fn func() error) error {
	var cmdErr error
	if err := b.loop.Do(ctx, func() { cmdErr = fn() }); err != nil {
		return err
	}
	if cmdErr == nil {
		return nil
	}
	if conversation.IsLookupMiss(cmdErr) {
		// already logged by the view
		return nil
	}
	if b.logger != nil {
		b.logger.Printf("bridge: %s: %v", op, cmdErr)
	}
	if errors.Is(cmdErr, conversation.ErrNotLoaded) {
		return nil
	}
	return cmdErr
}

// Load renders a conversation page
func (b *Bridge) Load(ctx context.Context, markup string) error {
	return b.run(ctx, "load", func() error { return b.view.Load(markup) })
}

// SetMessageBodyVisible expands or collapses a message
func (b *Bridge) SetMessageBodyVisible(ctx context.Context, domID string, visible bool, spacerHeight int) error {
	return b.run(ctx, "setMessageBodyVisible", func() error {
		return b.view.SetMessageBodyVisible(domID, visible, spacerHeight)
	})
}

// SetMessageHeaderSpacerHeight resizes a message header spacer
func (b *Bridge) SetMessageHeaderSpacerHeight(ctx context.Context, domID string, spacerHeight int) error {
	return b.run(ctx, "setMessageHeaderSpacerHeight", func() error {
		return b.view.SetMessageHeaderSpacerHeight(domID, spacerHeight)
	})
}

// SetConversationHeaderSpacerHeight resizes the conversation header spacer
func (b *Bridge) SetConversationHeaderSpacerHeight(ctx context.Context, height int) error {
	return b.run(ctx, "setConversationHeaderSpacerHeight", func() error {
		return b.view.SetConversationHeaderSpacerHeight(height)
	})
}

// ReplaceSuperCollapsedBlock expands a run of omitted messages
func (b *Bridge) ReplaceSuperCollapsedBlock(ctx context.Context, index int) error {
	return b.run(ctx, "replaceSuperCollapsedBlock", func() error {
		return b.view.ReplaceSuperCollapsedBlock(index)
	})
}

// ReplaceMessageBodies reloads message bodies
func (b *Bridge) ReplaceMessageBodies(ctx context.Context, domIDs []string) error {
	ids := append([]string(nil), domIDs...)
	return b.run(ctx, "replaceMessageBodies", func() error {
		return b.view.ReplaceMessageBodies(ids)
	})
}

// AppendMessageHTML appends the staged message
func (b *Bridge) AppendMessageHTML(ctx context.Context) error {
	return b.run(ctx, "appendMessageHtml", func() error { return b.view.AppendMessageHTML() })
}

// UnblockImages shows the blocked images of a message
func (b *Bridge) UnblockImages(ctx context.Context, domID string) error {
	return b.run(ctx, "unblockImages", func() error { return b.view.UnblockImages(domID) })
}

// ToggleQuotedText flips the n-th quoted text control of a message, as a user click would
func (b *Bridge) ToggleQuotedText(ctx context.Context, domID string, n int) error {
	return b.run(ctx, "toggleQuotedText", func() error { return b.view.ToggleQuotedTextAt(domID, n) })
}

// Inspect runs fn on the loop with the view, for read-only tooling
func (b *Bridge) Inspect(ctx context.Context, fn func(v *conversation.View)) error {
	return b.loop.Do(ctx, func() { fn(b.view) })
}

// Snapshot returns a summary of the view
func (b *Bridge) Snapshot(ctx context.Context) (conversation.Snapshot, error) {
	var s conversation.Snapshot
	err := b.Inspect(ctx, func(v *conversation.View) { s = v.Snapshot() })
	return s, err
}

// Markup returns the serialised content tree
func (b *Bridge) Markup(ctx context.Context) (string, error) {
	var m string
	err := b.Inspect(ctx, func(v *conversation.View) { m = v.Markup() })
	return m, err
}

// Settle runs idle cycles until the loop queue is empty, at most rounds times.
// Image loads still in flight on other goroutines are not waited for.
func (b *Bridge) Settle(ctx context.Context, rounds int) error {
	for i := 0; i < rounds; i++ {
		if err := b.loop.Do(ctx, func() {}); err != nil {
			return err
		}
		if b.loop.Pending() == 0 {
			return nil
		}
	}
	return nil
}
