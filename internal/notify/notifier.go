// Package notify delivers lifecycle notifications to customers and technicians.
// Delivery is best effort: nothing here is allowed to affect a committed transition.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Kind names the notification being delivered.
type Kind string

const (
	KindAssigned Kind = "assigned"
	KindResolved Kind = "resolved"
)

// Notifier is the outbound collaborator of the workflow engine.
type Notifier interface {
	NotifyAssigned(ctx context.Context, ticketID, technicianID string) error
	NotifyResolved(ctx context.Context, ticketID, solutionSummary string) error
}

// Message is the envelope handed to transports and dead-letter sinks.
type Message struct {
	Kind         Kind      `json:"kind"`
	TicketID     string    `json:"ticket_id"`
	TechnicianID string    `json:"technician_id,omitempty"`
	Solution     string    `json:"solution,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Send routes a message to the matching Notifier method.
func Send(ctx context.Context, n Notifier, msg Message) error {
	switch msg.Kind {
	case KindAssigned:
		return n.NotifyAssigned(ctx, msg.TicketID, msg.TechnicianID)
	default:
		return n.NotifyResolved(ctx, msg.TicketID, msg.Solution)
	}
}

// LogNotifier writes notifications to the log. Used when no transport is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyAssigned(_ context.Context, ticketID, technicianID string) error {
	n.logger.Info("notify assigned", zap.String("ticket_id", ticketID), zap.String("technician_id", technicianID))
	return nil
}

func (n *LogNotifier) NotifyResolved(_ context.Context, ticketID, solutionSummary string) error {
	n.logger.Info("notify resolved", zap.String("ticket_id", ticketID), zap.String("solution", solutionSummary))
	return nil
}
