package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/events"
)

// NotificationService relays reservation events to the change feed.
type NotificationService struct {
	dispatcher events.Dispatcher
	feed       events.Feed
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, feed events.Feed, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		feed:       feed,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.ReservationEvents() {
		n.dispatcher.Subscribe(eventType, n.handleReservationEvent)
	}
}

func (n *NotificationService) handleReservationEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("reservation event",
		zap.String("event_type", string(event.Type)),
		zap.Int64("reservation_id", event.ReservationID),
		zap.String("locker_id", event.LockerID),
		zap.Int64("user_id", event.UserID))

	if n.feed == nil {
		return nil
	}
	if err := n.feed.Publish(ctx, event); err != nil {
		n.logger.Warn("change feed publish failed", zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	return nil
}
