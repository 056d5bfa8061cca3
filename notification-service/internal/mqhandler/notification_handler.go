package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contracts "smartplanner/contracts/mq"
	"smartplanner/pkg/logger"
	"smartplanner/pkg/metrics"
)

// Pusher delivers one typed event to a user's websocket, reporting whether
// the delivery happened.
type Pusher interface {
	Push(userID, event string, data json.RawMessage) bool
}

// NotificationHandler consumes the notifications fanout exchange and pushes
// each event to the target user's websocket. Delivery is best-effort: every
// message is acked whatever the outcome, because a user being offline at
// delivery time is final, not retryable.
type NotificationHandler struct {
	pusher Pusher
	logger *zap.Logger
}

func NewNotificationHandler(pusher Pusher, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{pusher: pusher, logger: log}
}

func (h *NotificationHandler) Handle(ctx context.Context, routingKey string, data json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var payload contracts.NotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warn("Discarding malformed notification", zap.Error(err))
		return nil
	}
	if payload.UserID == "" {
		log.Warn("Discarding notification without user id")
		return nil
	}

	event, err := payload.Type.ClientEvent()
	if err != nil {
		log.Warn("Discarding notification of unknown type",
			zap.String("type", string(payload.Type)),
			zap.String("user_id", payload.UserID))
		return nil
	}

	if h.pusher.Push(payload.UserID, event, data) {
		log.Info("Notification pushed",
			zap.String("type", string(payload.Type)),
			zap.String("user_id", payload.UserID))
		metrics.IncrementNotificationDelivered(string(payload.Type), "pushed")
	} else {
		log.Info("Notification dropped, user offline",
			zap.String("type", string(payload.Type)),
			zap.String("user_id", payload.UserID))
		metrics.IncrementNotificationDelivered(string(payload.Type), "dropped")
	}
	return nil
}
