package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/pkg/jobs"
)

// Pairing event types.
const (
	EventRequestCreated     = "request.created"
	EventPairingConfirmed   = "pairing.confirmed"
	EventRequestCancelled   = "request.cancelled"
	EventRequestCompleted   = "request.completed"
	EventRequestArchived    = "request.archived"
	EventParticipantDeleted = "participant.deleted"
)

const matchingCachePattern = "matching:*"

// PairingEvent describes a committed state change.
type PairingEvent struct {
	Type           string    `json:"type"`
	RequestIDs     []string  `json:"request_ids"`
	ParticipantIDs []string  `json:"participant_ids"`
	Window         string    `json:"window,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type eventPublisher interface {
	Publish(ctx context.Context, event PairingEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, PairingEvent) {}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// PairingEventService fans committed state changes out to side effects on a
// background queue: the matching preview cache is invalidated and each
// affected participant gets a notification log entry.
type PairingEventService struct {
	queue  *jobs.Queue
	cache  cacheInvalidator
	logger *zap.Logger
}

// NewPairingEventService builds the service and its queue; call Start before publishing.
func NewPairingEventService(cache cacheInvalidator, logger *zap.Logger, workers, retries int) *PairingEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PairingEventService{cache: cache, logger: logger}
	s.queue = jobs.NewQueue("pairing-events", s.handle, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		RetryDelay: 500 * time.Millisecond,
		Logger:     logger,
	})
	return s
}

// Queue exposes the underlying queue for metrics registration.
func (s *PairingEventService) Queue() *jobs.Queue {
	return s.queue
}

// Start launches the queue workers.
func (s *PairingEventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *PairingEventService) Stop() {
	s.queue.Stop()
}

// Publish enqueues event. When the queue rejects it the cache is invalidated
// inline so previews never outlive a committed change.
func (s *PairingEventService) Publish(ctx context.Context, event PairingEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{ID: uuid.NewString(), Type: event.Type, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("pairing event not queued", zap.String("type", event.Type), zap.Error(err))
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx, matchingCachePattern)
		}
	}
}

func (s *PairingEventService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(PairingEvent)
	if !ok {
		s.logger.Error("unexpected pairing event payload", zap.String("job_id", job.ID))
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, matchingCachePattern); err != nil {
			return fmt.Errorf("invalidate matching cache: %w", err)
		}
	}
	for _, participantID := range event.ParticipantIDs {
		s.logger.Info("participant notified",
			zap.String("event", event.Type),
			zap.String("participant_id", participantID),
			zap.Strings("request_ids", event.RequestIDs),
			zap.String("window", event.Window),
			zap.Time("occurred_at", event.OccurredAt),
		)
	}
	return nil
}
