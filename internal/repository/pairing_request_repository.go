package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
)

const pairingRequestColumns = `id, owner_id, intent, subject, candidate_windows, status, chosen_window, week_anchor, partner_id, archived, created_at, updated_at`

// PairingRequestRepository persists pairing requests. Every method accepts an
// optional executor so callers can scope it to a transaction; nil uses the pool.
type PairingRequestRepository struct {
	db *sqlx.DB
}

// NewPairingRequestRepository constructs the repository.
func NewPairingRequestRepository(db *sqlx.DB) *PairingRequestRepository {
	return &PairingRequestRepository{db: db}
}

func (r *PairingRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *PairingRequestRepository) selectMany(ctx context.Context, exec sqlx.ExtContext, op, where string, args ...interface{}) ([]models.PairingRequest, error) {
	query := `SELECT ` + pairingRequestColumns + ` FROM pairing_requests WHERE ` + where
	var requests []models.PairingRequest
	if err := sqlx.SelectContext(ctx, r.exec(exec), &requests, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return requests, nil
}

// FindPendingByIntent lists PENDING, non-archived requests of the given intent in
// creation order. forUpdate locks the rows for the surrounding transaction.
func (r *PairingRequestRepository) FindPendingByIntent(ctx context.Context, exec sqlx.ExtContext, intent models.Intent, forUpdate bool) ([]models.PairingRequest, error) {
	where := `status = $1 AND intent = $2 AND archived = FALSE ORDER BY created_at, id`
	if forUpdate {
		where += ` FOR UPDATE`
	}
	return r.selectMany(ctx, exec, "find pending requests", where, models.RequestStatusPending, intent)
}

// FindConfirmed lists every CONFIRMED request.
func (r *PairingRequestRepository) FindConfirmed(ctx context.Context, exec sqlx.ExtContext) ([]models.PairingRequest, error) {
	return r.selectMany(ctx, exec, "find confirmed requests", `status = $1 ORDER BY id`, models.RequestStatusConfirmed)
}

// FindByOwnerAndIntentAndSubjectAndStatus backs the duplicate-request check.
func (r *PairingRequestRepository) FindByOwnerAndIntentAndSubjectAndStatus(ctx context.Context, exec sqlx.ExtContext, ownerID string, intent models.Intent, subject string, status models.RequestStatus) ([]models.PairingRequest, error) {
	return r.selectMany(ctx, exec, "find requests by owner intent subject",
		`owner_id = $1 AND intent = $2 AND subject = $3 AND status = $4 ORDER BY id`,
		ownerID, intent, subject, status)
}

// FindByOwnerAndPartnerAndStatusAndSubject locates the counterpart of a pairing.
func (r *PairingRequestRepository) FindByOwnerAndPartnerAndStatusAndSubject(ctx context.Context, exec sqlx.ExtContext, ownerID, partnerID string, status models.RequestStatus, subject string) ([]models.PairingRequest, error) {
	return r.selectMany(ctx, exec, "find requests by owner partner",
		`owner_id = $1 AND partner_id = $2 AND status = $3 AND subject = $4 ORDER BY id FOR UPDATE`,
		ownerID, partnerID, status, subject)
}

// FindByPartnerAndStatus lists requests whose partner is partnerID.
func (r *PairingRequestRepository) FindByPartnerAndStatus(ctx context.Context, exec sqlx.ExtContext, partnerID string, status models.RequestStatus) ([]models.PairingRequest, error) {
	return r.selectMany(ctx, exec, "find requests by partner",
		`partner_id = $1 AND status = $2 ORDER BY id FOR UPDATE`,
		partnerID, status)
}

// ClearPartnerReferences nulls every partner reference to partnerID. Archived rows are left untouched.
func (r *PairingRequestRepository) ClearPartnerReferences(ctx context.Context, exec sqlx.ExtContext, partnerID string) (int64, error) {
	const query = `UPDATE pairing_requests SET partner_id = NULL, updated_at = $2 WHERE partner_id = $1 AND archived = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, partnerID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear partner references: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear partner rows affected: %w", err)
	}
	return affected, nil
}

// DeleteByOwner removes every request owned by ownerID.
func (r *PairingRequestRepository) DeleteByOwner(ctx context.Context, exec sqlx.ExtContext, ownerID string) (int64, error) {
	const query = `DELETE FROM pairing_requests WHERE owner_id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete requests by owner: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete requests rows affected: %w", err)
	}
	return affected, nil
}

// Create inserts a new request.
func (r *PairingRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error {
	if req == nil {
		return fmt.Errorf("pairing request payload is nil")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	if req.CandidateWindows == nil {
		req.CandidateWindows = pq.StringArray{}
	}

	const query = `INSERT INTO pairing_requests (id, owner_id, intent, subject, candidate_windows, status, chosen_window, week_anchor, partner_id, archived, created_at, updated_at)
VALUES (:id, :owner_id, :intent, :subject, :candidate_windows, :status, :chosen_window, :week_anchor, :partner_id, :archived, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create pairing request: %w", err)
	}
	return nil
}

// Save writes the mutable columns of req. A request that breaks its invariants is rejected before any write.
func (r *PairingRequestRepository) Save(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error {
	if req == nil {
		return fmt.Errorf("pairing request payload is nil")
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("save pairing request %s: %w", req.ID, err)
	}
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE pairing_requests SET status = :status, chosen_window = :chosen_window, week_anchor = :week_anchor,
partner_id = :partner_id, archived = :archived, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req)
	if err != nil {
		return fmt.Errorf("save pairing request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save pairing request rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a request.
func (r *PairingRequestRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error) {
	return r.findOne(ctx, exec, id, false)
}

// FindByIDForUpdate loads a request and locks its row.
func (r *PairingRequestRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error) {
	return r.findOne(ctx, exec, id, true)
}

func (r *PairingRequestRepository) findOne(ctx context.Context, exec sqlx.ExtContext, id string, forUpdate bool) (*models.PairingRequest, error) {
	query := `SELECT ` + pairingRequestColumns + ` FROM pairing_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var req models.PairingRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find pairing request: %w", err)
	}
	return &req, nil
}

// ListByOwner lists an owner's requests, newest first.
func (r *PairingRequestRepository) ListByOwner(ctx context.Context, filter models.PairingRequestFilter) ([]models.PairingRequest, error) {
	where := `owner_id = $1`
	args := []interface{}{filter.OwnerID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !filter.IncludeArchived {
		where += ` AND archived = FALSE`
	}
	where += ` ORDER BY created_at DESC, id`
	return r.selectMany(ctx, nil, "list requests by owner", where, args...)
}

// ListRoster joins each CONFIRMED offer with its CONFIRMED seek counterpart.
func (r *PairingRequestRepository) ListRoster(ctx context.Context) ([]models.PairingRosterEntry, error) {
	const query = `SELECT o.id AS offer_request_id, s.id AS seek_request_id, o.subject, o.chosen_window, o.week_anchor,
o.owner_id AS tutor_id, tp.full_name AS tutor_name, s.owner_id AS learner_id, lp.full_name AS learner_name
FROM pairing_requests o
JOIN pairing_requests s ON s.owner_id = o.partner_id AND s.partner_id = o.owner_id AND s.subject = o.subject
	AND s.chosen_window = o.chosen_window AND s.week_anchor = o.week_anchor AND s.status = 'CONFIRMED' AND s.intent = 'SEEK'
JOIN participants tp ON tp.id = o.owner_id
JOIN participants lp ON lp.id = s.owner_id
WHERE o.status = 'CONFIRMED' AND o.intent = 'OFFER'
ORDER BY o.week_anchor, o.chosen_window, o.subject, o.id`
	var entries []models.PairingRosterEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list pairing roster: %w", err)
	}
	return entries, nil
}
