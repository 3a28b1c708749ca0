package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
)

const participantColumns = `id, email, password_hash, full_name, role, level, track, subjects, availability, active, last_login, created_at, updated_at`

// ParticipantRepository provides database access for participant profiles.
type ParticipantRepository struct {
	db *sqlx.DB
}

// NewParticipantRepository creates a new instance of ParticipantRepository.
func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByEmail returns a participant by email address.
func (r *ParticipantRepository) FindByEmail(ctx context.Context, email string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var participant models.Participant
	if err := r.db.GetContext(ctx, &participant, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find participant by email: %w", err)
	}
	return &participant, nil
}

// FindByID returns a participant by identifier.
func (r *ParticipantRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1 LIMIT 1`
	var participant models.Participant
	if err := sqlx.GetContext(ctx, r.exec(exec), &participant, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find participant by id: %w", err)
	}
	return &participant, nil
}

// FindByIDs loads every participant whose id is in ids, keyed by id.
func (r *ParticipantRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.Participant, error) {
	result := make(map[string]models.Participant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = ANY($1)`
	var participants []models.Participant
	if err := sqlx.SelectContext(ctx, r.exec(exec), &participants, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find participants by ids: %w", err)
	}
	for _, p := range participants {
		result[p.ID] = p
	}
	return result, nil
}

// List returns participants based on filters with total count.
func (r *ParticipantRepository) List(ctx context.Context, filter models.ParticipantFilter) ([]models.Participant, int, error) {
	baseQuery := `FROM participants WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)+1))
		args = append(args, *filter.Level)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"full_name":  true,
		"level":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", participantColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count participants: %w", err)
	}
	return participants, total, nil
}

// Create inserts a new participant.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if participant.CreatedAt.IsZero() {
		participant.CreatedAt = now
	}
	participant.UpdatedAt = now
	if participant.Subjects == nil {
		participant.Subjects = pq.StringArray{}
	}
	if participant.Availability == nil {
		participant.Availability = pq.StringArray{}
	}

	const query = `INSERT INTO participants (id, email, password_hash, full_name, role, level, track, subjects, availability, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :level, :track, :subjects, :availability, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a participant.
func (r *ParticipantRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE participants SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// Delete removes the participant record.
func (r *ParticipantRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM participants WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("participant rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
