package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// LifecycleSubscriber records every ticket lifecycle event in the log and in metrics.
type LifecycleSubscriber struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewLifecycleSubscriber creates the subscriber.
func NewLifecycleSubscriber(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *LifecycleSubscriber {
	return &LifecycleSubscriber{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (l *LifecycleSubscriber) RegisterHandlers() {
	if l.dispatcher == nil {
		return
	}
	l.dispatcher.Subscribe(events.EventTicketCreated, l.handleTicketCreated)
	l.dispatcher.Subscribe(events.EventTicketAssigned, l.handleTransition)
	l.dispatcher.Subscribe(events.EventTicketResolved, l.handleTransition)
	l.dispatcher.Subscribe(events.EventCommentAdded, l.handleCommentAdded)
}

func (l *LifecycleSubscriber) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("ticket_id", event.TicketID),
		zap.String("organization_id", event.OrganizationID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
	}
}

func (l *LifecycleSubscriber) handleTicketCreated(_ context.Context, event events.Event) error {
	fields := l.baseFields(event)
	if payload, ok := event.Payload.(events.TicketCreatedPayload); ok {
		fields = append(fields,
			zap.String("priority", string(payload.Priority)),
			zap.Int("attachments", payload.Attachments))
	}
	l.logger.Info("ticket created", fields...)
	l.metrics.RecordTransition("", "OPEN")
	return nil
}

func (l *LifecycleSubscriber) handleTransition(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketTransitionPayload)
	if !ok {
		return nil
	}
	fields := append(l.baseFields(event),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)))
	if payload.AssigneeID != nil {
		fields = append(fields, zap.String("assignee_id", *payload.AssigneeID))
	}
	if payload.PreviousAssigneeID != nil {
		fields = append(fields, zap.String("previous_assignee_id", *payload.PreviousAssigneeID))
	}
	msg := "ticket assigned"
	if event.Type == events.EventTicketResolved {
		msg = "ticket resolved"
	}
	l.logger.Info(msg, fields...)
	l.metrics.RecordTransition(string(payload.OldStatus), string(payload.NewStatus))
	return nil
}

func (l *LifecycleSubscriber) handleCommentAdded(_ context.Context, event events.Event) error {
	fields := l.baseFields(event)
	if payload, ok := event.Payload.(events.CommentAddedPayload); ok {
		fields = append(fields, zap.String("comment_id", payload.CommentID))
	}
	l.logger.Info("ticket comment added", fields...)
	return nil
}
