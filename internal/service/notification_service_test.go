package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []NotificationRequest
	err  error
}

func (n *captureNotifier) Send(_ context.Context, req NotificationRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, req)
	return n.err
}

func newNotificationFixture(notifier Notifier) (events.Dispatcher, *NotificationService) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	ns := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Notifier:   notifier,
	})
	ns.RegisterHandlers()
	return dispatcher, ns
}

func TestNotificationChannelByAudience(t *testing.T) {
	notifier := &captureNotifier{}
	dispatcher, _ := newNotificationFixture(notifier)
	ctx := context.Background()

	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventCaseResolved, "c1", "GRV-1",
		events.AudienceComplainant, "citizen@example.com", epoch, map[string]any{"resolution_summary": "done"})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventSLABreach, "c1", "GRV-1",
		events.AudienceStaff, paymentSpecialist, epoch, nil)))

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, ChannelEmail, notifier.sent[0].Channel)
	assert.Equal(t, "case_resolved", notifier.sent[0].TemplateKey)
	assert.Equal(t, "done", notifier.sent[0].Context["resolution_summary"])
	assert.Equal(t, "GRV-1", notifier.sent[0].Context["case_number"])
	assert.Equal(t, ChannelWebhook, notifier.sent[1].Channel)
	assert.Equal(t, paymentSpecialist, notifier.sent[1].Recipient)
}

func TestNotificationDropsEmptyRecipient(t *testing.T) {
	notifier := &captureNotifier{}
	dispatcher, _ := newNotificationFixture(notifier)

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventCaseOverdue, "c1", "GRV-1",
		events.AudienceStaff, " ", epoch, nil))

	require.NoError(t, err)
	assert.Empty(t, notifier.sent)
}

func TestNotificationFailureDoesNotReachPublisher(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("smtp refused")}
	dispatcher, ns := newNotificationFixture(notifier)
	event := events.NewEvent(events.EventCaseAssigned, "c1", "GRV-1", events.AudienceStaff, paymentSpecialist, epoch, nil)

	assert.Error(t, ns.handle(context.Background(), event))
	assert.NoError(t, dispatcher.Publish(context.Background(), event))
	assert.Len(t, notifier.sent, 2)
}

func TestLogNotifierSkipsUnconfiguredChannels(t *testing.T) {
	n := NewLogNotifier(config.NotificationConfig{}, nil)

	assert.NoError(t, n.Send(context.Background(), NotificationRequest{Channel: ChannelWebhook, Recipient: "x"}))
	assert.NoError(t, n.Send(context.Background(), NotificationRequest{Channel: ChannelEmail, Recipient: "x"}))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	n = NewLogNotifier(config.NotificationConfig{EmailFrom: "noreply@example.com"}, nil)
	assert.ErrorIs(t, n.Send(cancelled, NotificationRequest{Channel: ChannelEmail, Recipient: "x"}), context.Canceled)
}
