package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/service"
)

// StartNotificationWorker connects reservation events to the change feed.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		logger.Warn("notification worker disabled")
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification worker registered")
}
