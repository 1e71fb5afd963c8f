package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore(openTestStore(t))

	conv, err := cs.CreateConversation(ctx, "  Lunch ")
	require.NoError(t, err)
	assert.Equal(t, "Lunch", conv.Subject)
	assert.NotEmpty(t, conv.ID)

	sent := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	first := &Message{MessageID: "a1@example.com", From: "Alice", Subject: "Lunch", Date: sent, BodyHTML: "<p>hi</p>"}
	second := &Message{MessageID: "b1@example.com", From: "Bob", BodyHTML: "<p>sure</p>"}
	require.NoError(t, cs.AddMessage(ctx, conv.ID, first, []InlinePart{{ContentID: "logo", MimeType: "image/png", Data: []byte{1, 2}}}))
	require.NoError(t, cs.AddMessage(ctx, conv.ID, second, nil))
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)

	msgs, err := cs.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, sent.Unix(), msgs[0].Date.Unix())
	assert.True(t, msgs[1].Date.IsZero())
	assert.Equal(t, "<p>sure</p>", msgs[1].BodyHTML)

	got, err := cs.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)

	part, err := cs.LoadInlinePart(ctx, first.ID, "logo")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, part.Data)
	_, err = cs.LoadInlinePart(ctx, first.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cs.SetShowImages(ctx, second.ID, true))
	m, err := cs.GetMessage(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, m.ShowImages)

	require.NoError(t, cs.SetScrollPercent(ctx, conv.ID, 1.7))
	got, err = cs.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.ScrollPercent)

	require.NoError(t, cs.DeleteConversation(ctx, conv.ID))
	_, err = cs.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cs.GetMessage(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cs.LoadInlinePart(ctx, first.ID, "logo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore(openTestStore(t))

	a, err := cs.CreateConversation(ctx, "a")
	require.NoError(t, err)
	b, err := cs.CreateConversation(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, cs.AddMessage(ctx, a.ID, &Message{BodyHTML: "x"}, nil))

	list, err := cs.ListConversations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	counts := map[string]int{}
	for _, c := range list {
		counts[c.ID] = c.MessageCount
	}
	assert.Equal(t, map[string]int{a.ID: 1, b.ID: 0}, counts)

	list, err = cs.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMissingRows(t *testing.T) {
	ctx := context.Background()
	cs := NewConversationStore(openTestStore(t))

	assert.ErrorIs(t, cs.AddMessage(ctx, "nope", &Message{BodyHTML: "x"}, nil), ErrNotFound)
	assert.ErrorIs(t, cs.SetShowImages(ctx, "nope", true), ErrNotFound)
	assert.ErrorIs(t, cs.SetScrollPercent(ctx, "nope", 0.5), ErrNotFound)
	assert.ErrorIs(t, cs.DeleteConversation(ctx, "nope"), ErrNotFound)
	_, err := cs.GetMessage(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	var nilStore *ConversationStore
	_, err = nilStore.ListConversations(ctx, 1)
	assert.Error(t, err)
}
