package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"lpg-service/internal/auth"
	"lpg-service/internal/models"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
)

const MaxMessageLength = 500

// ChatRelay carries the support conversation between a customer and the
// shop. A conversation is keyed by the customer's user id. Messages are
// ordered by their store-assigned sequence, so every reader sees the same
// order no matter when events arrive.
type ChatRelay struct {
	messages repository.MessageRepository
	notifier *Notifier
	logger   *zap.Logger
}

func NewChatRelay(messages repository.MessageRepository, notifier *Notifier, logger *zap.Logger) *ChatRelay {
	return &ChatRelay{messages: messages, notifier: notifier, logger: logger}
}

func checkBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", invalid("message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", invalid("message cannot exceed %d characters", MaxMessageLength)
	}
	return body, nil
}

// canAccess reports whether actor takes part in the conversation.
func canAccess(actor auth.Principal, key uuid.UUID) bool {
	return actor.IsAdmin() || actor.UserID == key
}

func senderRole(actor auth.Principal) models.SenderRole {
	if actor.IsAdmin() {
		return models.SenderAdmin
	}
	return models.SenderCustomer
}

func (c *ChatRelay) SendMessage(ctx context.Context, actor auth.Principal, key uuid.UUID, body string) (*models.ChatMessage, error) {
	body, err := checkBody(body)
	if err != nil {
		return nil, err
	}
	if key == uuid.Nil {
		return nil, invalid("conversation is required")
	}
	if !canAccess(actor, key) {
		return nil, ErrPermissionDenied
	}

	msg := &models.ChatMessage{
		ConversationKey: key,
		SenderRole:      senderRole(actor),
		SenderID:        actor.UserID,
		Body:            body,
	}

	if err := c.messages.Append(ctx, msg); err != nil {
		return nil, translate(err)
	}

	c.notifier.Publish(ctx, realtime.TopicMessages, realtime.OpInsert, seqID(msg.Seq), key.String(), msg.UpdatedAt, msg)

	return msg, nil
}

// ListMessages returns the conversation in sequence order. Deleted messages
// stay in place as tombstones with an empty body.
func (c *ChatRelay) ListMessages(ctx context.Context, actor auth.Principal, key uuid.UUID) ([]models.ChatMessage, error) {
	if !canAccess(actor, key) {
		return nil, ErrPermissionDenied
	}

	msgs, err := c.messages.ListByConversation(ctx, key)
	if err != nil {
		return nil, translate(err)
	}
	return msgs, nil
}

// EditMessage replaces the body of a message. The old body is kept as a
// revision; sequence and creation time do not change.
func (c *ChatRelay) EditMessage(ctx context.Context, actor auth.Principal, seq int64, body string) (*models.ChatMessage, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	body, err := checkBody(body)
	if err != nil {
		return nil, err
	}

	msg, err := c.messages.Edit(ctx, seq, body)
	if err != nil {
		return nil, translate(err)
	}

	c.notifier.Publish(ctx, realtime.TopicMessages, realtime.OpUpdate, seqID(msg.Seq), msg.ConversationKey.String(), msg.UpdatedAt, msg)
	c.notifier.Audit(ctx, actor, "message.edit", seqID(seq), bson.M{"version": msg.Version})

	return msg, nil
}

func (c *ChatRelay) DeleteMessage(ctx context.Context, actor auth.Principal, seq int64) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}

	msg, err := c.messages.Tombstone(ctx, seq)
	if err != nil {
		return translate(err)
	}

	c.notifier.Publish(ctx, realtime.TopicMessages, realtime.OpUpdate, seqID(msg.Seq), msg.ConversationKey.String(), msg.UpdatedAt, msg)
	c.notifier.Audit(ctx, actor, "message.delete", seqID(seq), nil)

	return nil
}

func (c *ChatRelay) Revisions(ctx context.Context, actor auth.Principal, seq int64) ([]models.MessageRevision, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	revs, err := c.messages.Revisions(ctx, seq)
	if err != nil {
		return nil, translate(err)
	}
	return revs, nil
}

// MarkRead marks the other side's messages in the conversation as read.
func (c *ChatRelay) MarkRead(ctx context.Context, actor auth.Principal, key uuid.UUID) (int64, error) {
	if !canAccess(actor, key) {
		return 0, ErrPermissionDenied
	}

	from := models.SenderAdmin
	if actor.IsAdmin() {
		from = models.SenderCustomer
	}

	n, err := c.messages.MarkRead(ctx, key, from)
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

func (c *ChatRelay) ListConversations(ctx context.Context, actor auth.Principal) ([]models.Conversation, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	convs, err := c.messages.Conversations(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return convs, nil
}

func seqID(seq int64) string {
	return fmt.Sprintf("%d", seq)
}
