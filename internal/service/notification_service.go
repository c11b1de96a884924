package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/notify"
)

// NotificationService forwards committed lifecycle events to the Notifier.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTechnicianAssigned, n.handleTechnicianAssigned)
	n.dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
}

func (n *NotificationService) handleTechnicianAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TechnicianAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if err := n.notifier.NotifyAssigned(ctx, event.TicketID, payload.TechnicianID); err != nil {
		n.logger.Warn("assigned notification failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketResolvedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if err := n.notifier.NotifyResolved(ctx, event.TicketID, payload.Solution); err != nil {
		n.logger.Warn("resolved notification failed", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return err
	}
	return nil
}
