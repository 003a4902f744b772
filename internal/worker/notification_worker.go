package worker

import (
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/service"
)

// StartNotificationWorker registers notification handlers and starts delivery
// when the dispatcher is asynchronous. The returned func drains the queue.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.RegisterHandlers()
	async, ok := dispatcher.(*events.AsyncDispatcher)
	if !ok {
		return func() {}
	}
	async.Start()
	return async.Close
}
