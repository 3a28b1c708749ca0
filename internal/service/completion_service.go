package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
)

type completionRequestStore interface {
	FindConfirmed(ctx context.Context, exec sqlx.ExtContext) ([]models.PairingRequest, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error)
	Save(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error
}

// CompletionService marks CONFIRMED requests COMPLETED once their window has ended.
type CompletionService struct {
	requests completionRequestStore
	tx       txProvider
	catalog  *timeslot.Catalog
	clock    timeslot.Clock
	metrics  *MetricsService
	events   eventPublisher
	logger   *zap.Logger
}

// NewCompletionService constructs the completion job body.
func NewCompletionService(
	requests completionRequestStore,
	tx txProvider,
	catalog *timeslot.Catalog,
	clock timeslot.Clock,
	metrics *MetricsService,
	events eventPublisher,
	logger *zap.Logger,
) *CompletionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if catalog == nil {
		catalog = timeslot.DefaultCatalog()
	}
	if clock == nil {
		clock = &timeslot.SystemClock{}
	}
	return &CompletionService{
		requests: requests,
		tx:       tx,
		catalog:  catalog,
		clock:    clock,
		metrics:  metrics,
		events:   events,
		logger:   logger,
	}
}

// Tick completes every CONFIRMED request whose window end is strictly before now.
// Rows without a schedule or with an unresolvable window are skipped. A failure on
// one row does not stop the others; all failures are joined into the returned error.
func (s *CompletionService) Tick(ctx context.Context) (int, error) {
	now := s.clock.Now()

	confirmed, err := s.requests.FindConfirmed(ctx, nil)
	if err != nil {
		s.metrics.ObserveCompletionTick(0, err)
		return 0, fmt.Errorf("load confirmed requests: %w", err)
	}

	var (
		completed []models.PairingRequest
		errs      []error
	)
	for i := range confirmed {
		req := confirmed[i]
		if req.ChosenWindow == nil || req.WeekAnchor == nil {
			s.logger.Debug("confirmed request without schedule skipped", zap.String("request_id", req.ID))
			continue
		}
		end, ok := s.catalog.ResolveEndTime(*req.WeekAnchor, *req.ChosenWindow)
		if !ok {
			s.logger.Debug("unresolvable window skipped", zap.String("request_id", req.ID), zap.String("window", *req.ChosenWindow))
			continue
		}
		if !now.After(end) {
			continue
		}

		done, err := s.complete(ctx, req.ID)
		if err != nil {
			s.logger.Warn("failed to complete request", zap.String("request_id", req.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("complete %s: %w", req.ID, err))
			continue
		}
		if done != nil {
			completed = append(completed, *done)
		}
	}

	joined := errors.Join(errs...)
	s.metrics.ObserveCompletionTick(len(completed), joined)
	if len(completed) > 0 {
		s.metrics.RecordTransition(string(models.RequestStatusCompleted), len(completed))
		for _, req := range completed {
			s.events.Publish(ctx, PairingEvent{
				Type:           EventRequestCompleted,
				RequestIDs:     []string{req.ID},
				ParticipantIDs: []string{req.OwnerID},
				Window:         *req.ChosenWindow,
			})
		}
		s.logger.Info("completion tick", zap.Int("completed", len(completed)), zap.Time("now", now))
	}
	return len(completed), joined
}

// complete re-reads the row under lock so a concurrent cancel wins cleanly.
func (s *CompletionService) complete(ctx context.Context, id string) (*models.PairingRequest, error) {
	var done *models.PairingRequest
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		req, err := s.requests.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if req.Status != models.RequestStatusConfirmed {
			return nil
		}
		if err := req.Complete(); err != nil {
			return err
		}
		if err := s.requests.Save(ctx, tx, req); err != nil {
			return err
		}
		done = req
		return nil
	})
	return done, err
}
