package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"lpg-service/internal/audit"
	"lpg-service/internal/auth"
	"lpg-service/internal/realtime"
)

// Notifier publishes change events and audit entries after a write has
// committed. Both are best effort: failures are logged and never undo or
// fail the write.
type Notifier struct {
	publisher realtime.Publisher
	auditor   audit.Auditor
	logger    *zap.Logger
}

func NewNotifier(publisher realtime.Publisher, auditor audit.Auditor, logger *zap.Logger) *Notifier {
	if auditor == nil {
		auditor = audit.Noop{}
	}
	return &Notifier{publisher: publisher, auditor: auditor, logger: logger}
}

func (n *Notifier) Publish(ctx context.Context, topic realtime.Topic, op realtime.Op, rowID, scope string, updatedAt time.Time, row any) {
	if n.publisher == nil {
		return
	}

	e, err := realtime.NewEvent(topic, op, rowID, scope, updatedAt, row)
	if err != nil {
		n.logger.Error("failed to build change event", zap.String("topic", string(topic)), zap.String("row_id", rowID), zap.Error(err))
		return
	}

	if err := n.publisher.Publish(ctx, e); err != nil {
		n.logger.Warn("failed to publish change event",
			zap.String("topic", string(topic)),
			zap.String("op", string(op)),
			zap.String("row_id", rowID),
			zap.Error(err),
		)
	}
}

func (n *Notifier) Audit(ctx context.Context, actor auth.Principal, action, entityID string, data bson.M) {
	entry := &audit.Entry{
		Actor:    actor.UserID.String(),
		Action:   action,
		EntityID: entityID,
		Data:     data,
	}

	if err := n.auditor.Record(ctx, entry); err != nil {
		n.logger.Warn("failed to record audit entry", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}
