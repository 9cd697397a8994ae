package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/syncveil/apiserver/internal/events"
	"github.com/syncveil/apiserver/types"
)

// BreachEventRepository defines persistence operations for breach events.
type BreachEventRepository interface {
	Create(ctx context.Context, event types.BreachEvent) (types.BreachEvent, error)
	ListByUser(ctx context.Context, userID, limit int) ([]types.BreachEvent, error)
	CountByUser(ctx context.Context, userID int) (int, error)
}

const defaultBreachListLimit = 50

// MonitorService records security events as breach observations and serves
// them to the dashboard. Its Run loop is the consumer side of the event bus.
type MonitorService struct {
	breaches BreachEventRepository
	bus      *events.Bus
	logger   *slog.Logger
}

func NewMonitorService(breaches BreachEventRepository, bus *events.Bus, logger *slog.Logger) *MonitorService {
	return &MonitorService{breaches: breaches, bus: bus, logger: logger}
}

// Run consumes security events until ctx ends. Only events that map to a
// breach observation are recorded; the rest are dropped.
func (s *MonitorService) Run(ctx context.Context) error {
	return s.bus.Subscribe(ctx, func(ctx context.Context, event events.Event) error {
		record, ok := s.classify(event)
		if !ok {
			return nil
		}
		if _, err := s.breaches.Create(ctx, record); err != nil {
			s.logger.Error("record breach event failed", "type", event.Type, "error", err)
			return err
		}
		return nil
	})
}

// classify maps a bus event to a breach observation. Failed logins against
// unknown accounts have no user to attribute them to and are only logged.
func (s *MonitorService) classify(event events.Event) (types.BreachEvent, bool) {
	observedAt := event.At
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	switch event.Type {
	case events.TypeLoginFailed:
		if event.UserID == 0 {
			s.logger.Info("failed login against unknown account")
			return types.BreachEvent{}, false
		}
		return types.BreachEvent{
			UserID:     event.UserID,
			Kind:       types.BreachKindFailedLogin,
			Detail:     event.Detail,
			ObservedAt: observedAt,
		}, true
	case events.TypeLoginSucceeded:
		return types.BreachEvent{
			UserID:     event.UserID,
			Kind:       types.BreachKindNewSession,
			Detail:     "new session issued",
			ObservedAt: observedAt,
		}, true
	default:
		return types.BreachEvent{}, false
	}
}

// Breaches returns the most recent breach observations for the user.
func (s *MonitorService) Breaches(ctx context.Context, userID int) ([]types.BreachEvent, error) {
	return s.breaches.ListByUser(ctx, userID, defaultBreachListLimit)
}

// Count returns the total breach observations recorded for the user.
func (s *MonitorService) Count(ctx context.Context, userID int) (int, error) {
	return s.breaches.CountByUser(ctx, userID)
}
