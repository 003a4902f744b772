package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/observability"
)

// NotificationChannel selects the delivery route.
type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
)

// ErrUnknownRecipient is returned when an event carries no usable recipient.
var ErrUnknownRecipient = errors.New("notification recipient unknown")

// NotificationRequest is one message for the notifier.
type NotificationRequest struct {
	Channel     NotificationChannel
	Recipient   string
	TemplateKey string
	Context     map[string]any
}

// Notifier delivers rendered notifications. Delivery itself lives outside this
// service; implementations must tolerate unknown recipients.
type Notifier interface {
	Send(ctx context.Context, req NotificationRequest) error
}

// LogNotifier records notifications in the log in place of real delivery.
type LogNotifier struct {
	cfg    config.NotificationConfig
	logger *zap.Logger
}

// NewLogNotifier builds the log-backed notifier.
func NewLogNotifier(cfg config.NotificationConfig, logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{cfg: cfg, logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, req NotificationRequest) error {
	switch req.Channel {
	case ChannelWebhook:
		if strings.TrimSpace(n.cfg.WebhookURL) == "" {
			return nil
		}
		n.logger.Debug("sendWebhookNotificationStub",
			zap.String("url", n.cfg.WebhookURL),
			zap.String("template", req.TemplateKey),
			zap.String("recipient", req.Recipient))
	default:
		if strings.TrimSpace(n.cfg.EmailFrom) == "" {
			return nil
		}
		n.logger.Debug("sendEmailNotificationStub",
			zap.String("from", n.cfg.EmailFrom),
			zap.String("template", req.TemplateKey),
			zap.String("recipient", req.Recipient))
	}
	return ctx.Err()
}

// NotificationService turns workflow events into notifier calls.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
	metrics    *observability.Metrics
	timeout    time.Duration
}

// NotificationDependencies wires the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Notifier   Notifier
	Config     config.NotificationConfig
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(deps.Config, logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		notifier:   notifier,
		logger:     logger,
		metrics:    deps.Metrics,
		timeout:    deps.Config.Timeout,
	}
}

// RegisterHandlers subscribes to every workflow event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func channelFor(audience events.Audience) NotificationChannel {
	if audience == events.AudienceComplainant {
		return ChannelEmail
	}
	return ChannelWebhook
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(event.Recipient) == "" {
		n.metrics.RecordNotification(string(event.Type), "dropped")
		n.logger.Warn("notification dropped",
			zap.String("case_id", event.CaseID),
			zap.String("event_type", string(event.Type)),
			zap.Error(ErrUnknownRecipient))
		return nil
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	payload := make(map[string]any, len(event.Payload)+3)
	for k, v := range event.Payload {
		payload[k] = v
	}
	payload["case_id"] = event.CaseID
	payload["case_number"] = event.CaseNumber
	payload["timestamp"] = event.Timestamp

	err := n.notifier.Send(ctx, NotificationRequest{
		Channel:     channelFor(event.Audience),
		Recipient:   event.Recipient,
		TemplateKey: string(event.Type),
		Context:     payload,
	})
	if err != nil {
		n.metrics.RecordNotification(string(event.Type), "failed")
		return err
	}
	n.metrics.RecordNotification(string(event.Type), "sent")
	n.logger.Info("notification sent",
		zap.String("case_id", event.CaseID),
		zap.String("case_number", event.CaseNumber),
		zap.String("event_type", string(event.Type)),
		zap.String("audience", string(event.Audience)))
	return nil
}
