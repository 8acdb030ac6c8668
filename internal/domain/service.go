// Package domain defines the activity registry and the enrollment workflows around it.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/enrollment/internal/events"
	"example.com/enrollment/internal/observability"
)

// EventPublisher receives roster events after successful mutations. Publish is
// called while the activity is locked, in roster order, and must not block.
type EventPublisher interface {
	Publish(ctx context.Context, event events.RosterChanged) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(context.Context, events.RosterChanged) error { return nil }

// Confirmation is returned by successful mutations.
type Confirmation struct {
	Activity string
	Email    string
	Message  string
}

// Service orchestrates enrollment workflows on top of the registry.
type Service struct {
	registry  *Registry
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithPublisher sets the roster event publisher.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the logger used to report publish failures.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService constructs a Service.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		registry:  registry,
		publisher: NoopPublisher{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range registry.Names() {
		if activity, err := registry.Get(name); err == nil {
			observability.SetRosterSize(name, len(activity.Participants))
		}
	}
	return s
}

// ListActivities returns every activity keyed by name.
func (s *Service) ListActivities(ctx context.Context) map[string]Activity {
	return s.registry.List()
}

// SignUp adds email to the named activity.
func (s *Service) SignUp(ctx context.Context, activityName, email string) (Confirmation, error) {
	_, err := s.registry.SignUp(activityName, email, func(activity Activity) {
		observability.RecordSignUp(activityName, len(activity.Participants))
		s.publish(ctx, events.TypeParticipantSignedUp, activityName, email, len(activity.Participants))
	})
	if err != nil {
		observability.RecordRejection("signup", rejectionReason(err))
		return Confirmation{}, err
	}

	return Confirmation{
		Activity: activityName,
		Email:    email,
		Message:  fmt.Sprintf("Signed up %s for %s", email, activityName),
	}, nil
}

// Unregister removes email from the named activity.
func (s *Service) Unregister(ctx context.Context, activityName, email string) (Confirmation, error) {
	_, err := s.registry.Unregister(activityName, email, func(activity Activity) {
		observability.RecordUnregister(activityName, len(activity.Participants))
		s.publish(ctx, events.TypeParticipantUnregistered, activityName, email, len(activity.Participants))
	})
	if err != nil {
		observability.RecordRejection("unregister", rejectionReason(err))
		return Confirmation{}, err
	}

	return Confirmation{
		Activity: activityName,
		Email:    email,
		Message:  fmt.Sprintf("Unregistered %s from %s", email, activityName),
	}, nil
}

// publish never fails the caller; the roster change has already happened.
// It runs under the activity lock.
func (s *Service) publish(ctx context.Context, eventType, activityName, email string, rosterSize int) {
	event := events.NewRosterChanged(eventType, activityName, email, rosterSize, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("roster event not published",
			zap.String("event_type", eventType),
			zap.String("event_id", event.EventID),
			zap.String("activity", activityName),
			zap.Error(err),
		)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return observability.ReasonNotFound
	case errors.Is(err, ErrAlreadySignedUp):
		return observability.ReasonAlreadySignedUp
	case errors.Is(err, ErrNotSignedUp):
		return observability.ReasonNotSignedUp
	case errors.Is(err, ErrActivityFull):
		return observability.ReasonFull
	default:
		return "unknown"
	}
}
