package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
	"github.com/noah-isme/peer-tutoring-api/pkg/database"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

type participantRepository interface {
	List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, int, error)
	FindByEmail(ctx context.Context, email string) (*models.Participant, error)
	Create(ctx context.Context, participant *models.Participant) error
}

// ParticipantService manages participant profiles.
type ParticipantService struct {
	repo      participantRepository
	lookup    ownerStore
	catalog   *timeslot.Catalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewParticipantService creates an instance of ParticipantService.
func NewParticipantService(repo participantRepository, lookup ownerStore, catalog *timeslot.Catalog, validate *validator.Validate, logger *zap.Logger) *ParticipantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if catalog == nil {
		catalog = timeslot.DefaultCatalog()
	}
	return &ParticipantService{repo: repo, lookup: lookup, catalog: catalog, validator: validate, logger: logger}
}

// Create registers a participant.
func (s *ParticipantService) Create(ctx context.Context, req dto.CreateParticipantRequest) (*models.Participant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid participant payload")
	}
	for _, window := range req.Availability {
		if !s.catalog.Valid(window) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown time window %q", window))
		}
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	role := models.UserRole(req.Role)
	if role == "" {
		role = models.RoleParticipant
	}
	var track *string
	if req.Track != nil {
		if trimmed := strings.TrimSpace(*req.Track); trimmed != "" && !strings.EqualFold(trimmed, models.TrackNone) {
			track = &trimmed
		}
	}

	participant := &models.Participant{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Level:        req.Level,
		Track:        track,
		Subjects:     trimAll(req.Subjects),
		Availability: trimAll(req.Availability),
		Active:       true,
	}
	if err := s.repo.Create(ctx, participant); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create participant")
	}
	s.logger.Info("participant created", zap.String("participant_id", participant.ID), zap.String("role", string(role)))
	return participant, nil
}

// List returns paginated participants and pagination metadata.
func (s *ParticipantService) List(ctx context.Context, query dto.ListParticipantsQuery) ([]models.Participant, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.ParticipantFilter{
		Search:    query.Search,
		Level:     query.Level,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}

	participants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list participants")
	}
	if participants == nil {
		participants = []models.Participant{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return participants, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a participant by ID.
func (s *ParticipantService) Get(ctx context.Context, id string) (*models.Participant, error) {
	participant, err := s.lookup.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "participant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load participant")
	}
	return participant, nil
}

// EnsureAdmin creates the bootstrap administrator when the email is not yet registered.
// It returns true when an account was created.
func (s *ParticipantService) EnsureAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("lookup bootstrap admin: %w", err)
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	_, err := s.Create(ctx, dto.CreateParticipantRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     string(models.RoleAdmin),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
