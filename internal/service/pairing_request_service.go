package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
	"github.com/noah-isme/peer-tutoring-api/pkg/database"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

type pairingRequestStore interface {
	FindByOwnerAndIntentAndSubjectAndStatus(ctx context.Context, exec sqlx.ExtContext, ownerID string, intent models.Intent, subject string, status models.RequestStatus) ([]models.PairingRequest, error)
	FindByOwnerAndPartnerAndStatusAndSubject(ctx context.Context, exec sqlx.ExtContext, ownerID, partnerID string, status models.RequestStatus, subject string) ([]models.PairingRequest, error)
	FindByPartnerAndStatus(ctx context.Context, exec sqlx.ExtContext, partnerID string, status models.RequestStatus) ([]models.PairingRequest, error)
	ClearPartnerReferences(ctx context.Context, exec sqlx.ExtContext, partnerID string) (int64, error)
	DeleteByOwner(ctx context.Context, exec sqlx.ExtContext, ownerID string) (int64, error)
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error
	Save(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error)
	ListByOwner(ctx context.Context, filter models.PairingRequestFilter) ([]models.PairingRequest, error)
}

type ownerStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Participant, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

// PairingRequestService drives the request lifecycle: creation, cancellation
// with partner cascade, archival and owner deletion.
type PairingRequestService struct {
	requests  pairingRequestStore
	owners    ownerStore
	tx        txProvider
	catalog   *timeslot.Catalog
	validator *validator.Validate
	metrics   *MetricsService
	events    eventPublisher
	logger    *zap.Logger
}

// NewPairingRequestService constructs the lifecycle manager.
func NewPairingRequestService(
	requests pairingRequestStore,
	owners ownerStore,
	tx txProvider,
	catalog *timeslot.Catalog,
	validate *validator.Validate,
	metrics *MetricsService,
	events eventPublisher,
	logger *zap.Logger,
) *PairingRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if catalog == nil {
		catalog = timeslot.DefaultCatalog()
	}
	return &PairingRequestService{
		requests:  requests,
		owners:    owners,
		tx:        tx,
		catalog:   catalog,
		validator: validate,
		metrics:   metrics,
		events:    events,
		logger:    logger,
	}
}

// CreateRequest registers a PENDING request for ownerID.
func (s *PairingRequestService) CreateRequest(ctx context.Context, ownerID string, req dto.CreatePairingRequest) (*models.PairingRequest, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	if len(req.Windows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one candidate window is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pairing request payload")
	}
	intent := models.Intent(req.Intent)
	if !intent.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown intent %q", req.Intent))
	}

	windows := make([]string, 0, len(req.Windows))
	seen := make(map[string]struct{}, len(req.Windows))
	for _, raw := range req.Windows {
		code := strings.TrimSpace(raw)
		if !s.catalog.Valid(code) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown time window %q", raw))
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		windows = append(windows, code)
	}

	if _, err := s.owners.FindByID(ctx, nil, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}

	existing, err := s.requests.FindByOwnerAndIntentAndSubjectAndStatus(ctx, nil, ownerID, intent, req.Subject, models.RequestStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}
	if len(existing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "a pending request with the same intent and subject already exists")
	}

	request := &models.PairingRequest{
		OwnerID:          ownerID,
		Intent:           intent,
		Subject:          req.Subject,
		CandidateWindows: windows,
		Status:           models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, nil, request); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateRequest, "a pending request with the same intent and subject already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pairing request")
	}

	s.metrics.RecordTransition(string(models.RequestStatusPending), 1)
	s.events.Publish(ctx, PairingEvent{
		Type:           EventRequestCreated,
		RequestIDs:     []string{request.ID},
		ParticipantIDs: []string{ownerID},
	})
	return request, nil
}

// CancelRequest cancels a PENDING or CONFIRMED request. A nil actor is an
// administrative override; otherwise the actor must own the request. Cancelling
// a CONFIRMED request also cancels the partner's counterpart in the same transaction.
func (s *PairingRequestService) CancelRequest(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	var (
		request     *models.PairingRequest
		counterpart *models.PairingRequest
	)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.requests.FindByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
			}
			return err
		}
		if actorID != nil && *actorID != request.OwnerID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner may cancel this request")
		}
		if !request.CanBeCancelled() {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request in status %s cannot be cancelled", request.Status))
		}

		prior := request.Status
		var partnerID string
		if request.PartnerID != nil {
			partnerID = *request.PartnerID
		}
		if err := request.Cancel(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, "request cannot be cancelled")
		}
		if err := s.requests.Save(ctx, tx, request); err != nil {
			return err
		}

		if prior != models.RequestStatusConfirmed || partnerID == "" {
			return nil
		}
		candidates, err := s.requests.FindByOwnerAndPartnerAndStatusAndSubject(ctx, tx, partnerID, request.OwnerID, models.RequestStatusConfirmed, request.Subject)
		if err != nil {
			return err
		}
		counterpart = pickCounterpart(request, candidates)
		if counterpart == nil {
			s.logger.Warn("confirmed request without counterpart", zap.String("request_id", request.ID), zap.String("partner_id", partnerID))
			return nil
		}
		if err := counterpart.Cancel(); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, "counterpart cannot be cancelled")
		}
		return s.requests.Save(ctx, tx, counterpart)
	})
	if err != nil {
		return nil, asAppError(err, "failed to cancel pairing request")
	}

	requestIDs := []string{request.ID}
	participantIDs := []string{request.OwnerID}
	if counterpart != nil {
		requestIDs = append(requestIDs, counterpart.ID)
		participantIDs = append(participantIDs, counterpart.OwnerID)
	}
	s.metrics.RecordTransition(string(models.RequestStatusCancelled), len(requestIDs))
	s.events.Publish(ctx, PairingEvent{Type: EventRequestCancelled, RequestIDs: requestIDs, ParticipantIDs: participantIDs})
	return request, nil
}

// pickCounterpart prefers the candidate scheduled in the same window and week.
func pickCounterpart(request *models.PairingRequest, candidates []models.PairingRequest) *models.PairingRequest {
	if len(candidates) == 0 {
		return nil
	}
	for i := range candidates {
		c := &candidates[i]
		if sameSchedule(request, c) {
			return c
		}
	}
	return &candidates[0]
}

func sameSchedule(a, b *models.PairingRequest) bool {
	if a.ChosenWindow == nil || b.ChosenWindow == nil || a.WeekAnchor == nil || b.WeekAnchor == nil {
		return false
	}
	ay, am, ad := a.WeekAnchor.Date()
	by, bm, bd := b.WeekAnchor.Date()
	return *a.ChosenWindow == *b.ChosenWindow && ay == by && am == bm && ad == bd
}

// DeleteOwner removes a participant and everything that references it, in order:
// counterparts confirmed with the owner are cancelled, remaining partner
// references are cleared, the owner's requests are deleted, then the owner.
func (s *PairingRequestService) DeleteOwner(ctx context.Context, ownerID string) (*models.DeletionSummary, error) {
	summary := &models.DeletionSummary{}
	var affected []string
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if _, err := s.owners.FindByID(ctx, tx, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "participant not found")
			}
			return err
		}

		counterparts, err := s.requests.FindByPartnerAndStatus(ctx, tx, ownerID, models.RequestStatusConfirmed)
		if err != nil {
			return err
		}
		for i := range counterparts {
			c := &counterparts[i]
			if err := c.Cancel(); err != nil {
				return err
			}
			if err := s.requests.Save(ctx, tx, c); err != nil {
				return err
			}
			affected = append(affected, c.OwnerID)
		}
		summary.CancelledCounterparts = len(counterparts)

		if summary.ClearedReferences, err = s.requests.ClearPartnerReferences(ctx, tx, ownerID); err != nil {
			return err
		}
		if summary.DeletedRequests, err = s.requests.DeleteByOwner(ctx, tx, ownerID); err != nil {
			return err
		}
		return s.owners.Delete(ctx, tx, ownerID)
	})
	if err != nil {
		return nil, asAppError(err, "failed to delete participant")
	}

	s.metrics.RecordTransition(string(models.RequestStatusCancelled), summary.CancelledCounterparts)
	s.events.Publish(ctx, PairingEvent{
		Type:           EventParticipantDeleted,
		ParticipantIDs: append([]string{ownerID}, affected...),
	})
	s.logger.Info("participant deleted",
		zap.String("participant_id", ownerID),
		zap.Int("cancelled_counterparts", summary.CancelledCounterparts),
		zap.Int64("cleared_references", summary.ClearedReferences),
		zap.Int64("deleted_requests", summary.DeletedRequests),
	)
	return summary, nil
}

// Archive hides a COMPLETED or CANCELLED request from default listings.
func (s *PairingRequestService) Archive(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	var request *models.PairingRequest
	changed := false
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		request, err = s.requests.FindByIDForUpdate(ctx, tx, requestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
			}
			return err
		}
		if actorID != nil && *actorID != request.OwnerID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner may archive this request")
		}
		if !request.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request in status %s cannot be archived", request.Status))
		}
		if request.Archived {
			return nil
		}
		request.Archived = true
		changed = true
		return s.requests.Save(ctx, tx, request)
	})
	if err != nil {
		return nil, asAppError(err, "failed to archive pairing request")
	}
	if changed {
		s.events.Publish(ctx, PairingEvent{Type: EventRequestArchived, RequestIDs: []string{request.ID}})
	}
	return request, nil
}

// ListMine lists the owner's requests.
func (s *PairingRequestService) ListMine(ctx context.Context, ownerID string, query dto.ListPairingRequestsQuery) ([]models.PairingRequest, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.PairingRequestFilter{OwnerID: ownerID, IncludeArchived: query.IncludeArchived}
	if query.Status != "" {
		status := models.RequestStatus(query.Status)
		filter.Status = &status
	}
	requests, err := s.requests.ListByOwner(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pairing requests")
	}
	if requests == nil {
		requests = []models.PairingRequest{}
	}
	return requests, nil
}

// Get loads one request. Non-admin actors may only see requests they own or are partnered on.
func (s *PairingRequestService) Get(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	request, err := s.requests.FindByID(ctx, nil, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pairing request")
	}
	if actorID != nil && *actorID != request.OwnerID && (request.PartnerID == nil || *request.PartnerID != *actorID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
	}
	return request, nil
}

// asAppError keeps typed errors and wraps anything else as internal.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
