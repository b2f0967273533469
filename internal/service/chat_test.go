package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
)

func TestSendMessageLengthLimit(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	key := testCustomer.UserID

	_, err := s.chat.SendMessage(ctx, testCustomer, key, strings.Repeat("a", MaxMessageLength))
	require.NoError(t, err)

	// runes, not bytes
	_, err = s.chat.SendMessage(ctx, testCustomer, key, strings.Repeat("ñ", MaxMessageLength))
	require.NoError(t, err)

	_, err = s.chat.SendMessage(ctx, testCustomer, key, strings.Repeat("a", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.chat.SendMessage(ctx, testCustomer, key, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	msgs, err := s.chat.ListMessages(ctx, testCustomer, key)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSendMessageDerivesSender(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	key := testCustomer.UserID

	fromCustomer, err := s.chat.SendMessage(ctx, testCustomer, key, "  Is the 11kg available?  ")
	require.NoError(t, err)
	assert.Equal(t, models.SenderCustomer, fromCustomer.SenderRole)
	assert.Equal(t, "Is the 11kg available?", fromCustomer.Body)

	fromAdmin, err := s.chat.SendMessage(ctx, testAdmin, key, "Yes, delivering today.")
	require.NoError(t, err)
	assert.Equal(t, models.SenderAdmin, fromAdmin.SenderRole)
	assert.Equal(t, testAdmin.UserID, fromAdmin.SenderID)
	assert.Greater(t, fromAdmin.Seq, fromCustomer.Seq)

	_, err = s.chat.SendMessage(ctx, testOther, key, "hello")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.chat.ListMessages(ctx, testOther, key)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	e := s.events.events[len(s.events.events)-1]
	assert.Equal(t, realtime.TopicMessages, e.Topic)
	assert.Equal(t, key.String(), e.Scope)
}

func TestEditMessageKeepsOrderAndRevisions(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	key := testCustomer.UserID

	first, err := s.chat.SendMessage(ctx, testAdmin, key, "Delivery at 3pm")
	require.NoError(t, err)
	second, err := s.chat.SendMessage(ctx, testCustomer, key, "Thanks")
	require.NoError(t, err)

	_, err = s.chat.EditMessage(ctx, testCustomer, first.Seq, "hacked")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	edited, err := s.chat.EditMessage(ctx, testAdmin, first.Seq, "Delivery at 4pm")
	require.NoError(t, err)
	assert.Equal(t, first.Seq, edited.Seq)
	assert.Equal(t, first.CreatedAt, edited.CreatedAt)
	assert.Equal(t, 2, edited.Version)

	msgs, err := s.chat.ListMessages(ctx, testCustomer, key)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first.Seq, msgs[0].Seq)
	assert.Equal(t, "Delivery at 4pm", msgs[0].Body)
	assert.Equal(t, second.Seq, msgs[1].Seq)

	revs, err := s.chat.Revisions(ctx, testAdmin, first.Seq)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "Delivery at 3pm", revs[0].Body)

	_, err = s.chat.Revisions(ctx, testCustomer, first.Seq)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestDeleteMessageLeavesTombstone(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	key := testCustomer.UserID

	first, err := s.chat.SendMessage(ctx, testCustomer, key, "wrong address")
	require.NoError(t, err)
	_, err = s.chat.SendMessage(ctx, testCustomer, key, "Purok 3 po")
	require.NoError(t, err)

	assert.ErrorIs(t, s.chat.DeleteMessage(ctx, testCustomer, first.Seq), ErrPermissionDenied)
	require.NoError(t, s.chat.DeleteMessage(ctx, testAdmin, first.Seq))
	assert.ErrorIs(t, s.chat.DeleteMessage(ctx, testAdmin, first.Seq), ErrNotFound)

	_, err = s.chat.EditMessage(ctx, testAdmin, first.Seq, "revived")
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := s.chat.ListMessages(ctx, testCustomer, key)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Deleted)
	assert.Empty(t, msgs[0].Body)
	assert.Equal(t, "Purok 3 po", msgs[1].Body)
}

func TestMarkReadMarksOtherSide(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	key := testCustomer.UserID

	for _, body := range []string{"hi", "is anyone there?"} {
		_, err := s.chat.SendMessage(ctx, testCustomer, key, body)
		require.NoError(t, err)
	}
	_, err := s.chat.SendMessage(ctx, testAdmin, key, "yes")
	require.NoError(t, err)

	convs, err := s.chat.ListConversations(ctx, testAdmin)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].Unread)
	assert.Equal(t, "yes", convs[0].LastMessage)

	n, err := s.chat.MarkRead(ctx, testAdmin, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.chat.MarkRead(ctx, testCustomer, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.chat.MarkRead(ctx, testOther, key)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = s.chat.ListConversations(ctx, testCustomer)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
