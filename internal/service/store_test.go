package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// expectCommits queues n successful transactions.
func expectCommits(mock sqlmock.Sqlmock, n int) {
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

// memoryStore is an in-memory stand-in for both repositories. Every read hands
// out copies so services only affect stored state through Save/Create/Delete.
type memoryStore struct {
	mu           sync.Mutex
	requests     map[string]models.PairingRequest
	participants map[string]models.Participant
	seq          int

	saveErr      error
	failSaveAt   int
	saves        int
	clearErr     error
	createErr    error
	findByIDErr  error
	confirmedErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		requests:     make(map[string]models.PairingRequest),
		participants: make(map[string]models.Participant),
	}
}

func (m *memoryStore) addParticipant(id string, level int, track string) models.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Participant{ID: id, Email: id + "@example.com", FullName: "Name " + id, Role: models.RoleParticipant, Level: level, Active: true}
	if track != "" {
		t := track
		p.Track = &t
	}
	m.participants[id] = p
	return p
}

func (m *memoryStore) addRequest(id, owner string, intent models.Intent, subject string, windows ...string) models.PairingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	req := models.PairingRequest{
		ID:               id,
		OwnerID:          owner,
		Intent:           intent,
		Subject:          subject,
		CandidateWindows: pq.StringArray(windows),
		Status:           models.RequestStatusPending,
		CreatedAt:        time.Date(2024, time.March, 1, 0, 0, m.seq, 0, time.UTC),
	}
	m.requests[id] = req
	return req
}

func (m *memoryStore) addConfirmed(id, owner string, intent models.Intent, subject, window string, anchor time.Time, partner string) models.PairingRequest {
	req := m.addRequest(id, owner, intent, subject, window)
	m.mu.Lock()
	defer m.mu.Unlock()
	w, a, p := window, anchor, partner
	req.Status = models.RequestStatusConfirmed
	req.ChosenWindow = &w
	req.WeekAnchor = &a
	req.PartnerID = &p
	m.requests[id] = req
	return req
}

func (m *memoryStore) get(id string) models.PairingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRequest(m.requests[id])
}

func (m *memoryStore) all() []models.PairingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PairingRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyRequest(r models.PairingRequest) models.PairingRequest {
	out := r
	out.CandidateWindows = append(pq.StringArray(nil), r.CandidateWindows...)
	if r.ChosenWindow != nil {
		w := *r.ChosenWindow
		out.ChosenWindow = &w
	}
	if r.WeekAnchor != nil {
		a := *r.WeekAnchor
		out.WeekAnchor = &a
	}
	if r.PartnerID != nil {
		p := *r.PartnerID
		out.PartnerID = &p
	}
	return out
}

func (m *memoryStore) filter(match func(models.PairingRequest) bool) []models.PairingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PairingRequest
	for _, r := range m.requests {
		if match(r) {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryStore) FindPendingByIntent(_ context.Context, _ sqlx.ExtContext, intent models.Intent, _ bool) ([]models.PairingRequest, error) {
	return m.filter(func(r models.PairingRequest) bool {
		return r.Status == models.RequestStatusPending && r.Intent == intent && !r.Archived
	}), nil
}

func (m *memoryStore) FindConfirmed(_ context.Context, _ sqlx.ExtContext) ([]models.PairingRequest, error) {
	if m.confirmedErr != nil {
		return nil, m.confirmedErr
	}
	return m.filter(func(r models.PairingRequest) bool { return r.Status == models.RequestStatusConfirmed }), nil
}

func (m *memoryStore) FindByOwnerAndIntentAndSubjectAndStatus(_ context.Context, _ sqlx.ExtContext, ownerID string, intent models.Intent, subject string, status models.RequestStatus) ([]models.PairingRequest, error) {
	return m.filter(func(r models.PairingRequest) bool {
		return r.OwnerID == ownerID && r.Intent == intent && r.Subject == subject && r.Status == status
	}), nil
}

func (m *memoryStore) FindByOwnerAndPartnerAndStatusAndSubject(_ context.Context, _ sqlx.ExtContext, ownerID, partnerID string, status models.RequestStatus, subject string) ([]models.PairingRequest, error) {
	return m.filter(func(r models.PairingRequest) bool {
		return r.OwnerID == ownerID && r.PartnerID != nil && *r.PartnerID == partnerID && r.Status == status && r.Subject == subject
	}), nil
}

func (m *memoryStore) FindByPartnerAndStatus(_ context.Context, _ sqlx.ExtContext, partnerID string, status models.RequestStatus) ([]models.PairingRequest, error) {
	return m.filter(func(r models.PairingRequest) bool {
		return r.PartnerID != nil && *r.PartnerID == partnerID && r.Status == status
	}), nil
}

func (m *memoryStore) ClearPartnerReferences(_ context.Context, _ sqlx.ExtContext, partnerID string) (int64, error) {
	if m.clearErr != nil {
		return 0, m.clearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.requests {
		if !r.Archived && r.PartnerID != nil && *r.PartnerID == partnerID {
			r.PartnerID = nil
			m.requests[id] = r
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) DeleteByOwner(_ context.Context, _ sqlx.ExtContext, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.requests {
		if r.OwnerID == ownerID {
			delete(m.requests, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Create(_ context.Context, _ sqlx.ExtContext, req *models.PairingRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if req.ID == "" {
		req.ID = fmt.Sprintf("req-%03d", m.seq)
	}
	req.CreatedAt = time.Date(2024, time.March, 1, 0, 0, m.seq, 0, time.UTC)
	m.requests[req.ID] = copyRequest(*req)
	return nil
}

func (m *memoryStore) Save(_ context.Context, _ sqlx.ExtContext, req *models.PairingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil && (m.failSaveAt == 0 || m.saves == m.failSaveAt) {
		return m.saveErr
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if _, ok := m.requests[req.ID]; !ok {
		return sql.ErrNoRows
	}
	m.requests[req.ID] = copyRequest(*req)
	return nil
}

func (m *memoryStore) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.PairingRequest, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := copyRequest(r)
	return &out, nil
}

func (m *memoryStore) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.PairingRequest, error) {
	return m.FindByID(ctx, exec, id)
}

func (m *memoryStore) ListByOwner(_ context.Context, filter models.PairingRequestFilter) ([]models.PairingRequest, error) {
	return m.filter(func(r models.PairingRequest) bool {
		if r.OwnerID != filter.OwnerID {
			return false
		}
		if filter.Status != nil && r.Status != *filter.Status {
			return false
		}
		return filter.IncludeArchived || !r.Archived
	}), nil
}

// participants side

type participantView struct{ *memoryStore }

func (m *memoryStore) participantsRepo() participantView { return participantView{m} }

func (v participantView) FindByID(_ context.Context, _ sqlx.ExtContext, id string) (*models.Participant, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.participants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (v participantView) FindByIDs(_ context.Context, _ sqlx.ExtContext, ids []string) (map[string]models.Participant, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]models.Participant, len(ids))
	for _, id := range ids {
		if p, ok := v.participants[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (v participantView) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.participants[id]; !ok {
		return sql.ErrNoRows
	}
	delete(v.participants, id)
	return nil
}

func (v participantView) FindByEmail(_ context.Context, email string) (*models.Participant, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.participants {
		if strings.EqualFold(p.Email, email) {
			out := p
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (v participantView) Create(_ context.Context, p *models.Participant) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p.ID == "" {
		p.ID = fmt.Sprintf("p-%03d", len(v.participants)+1)
	}
	v.participants[p.ID] = *p
	return nil
}

func (v participantView) List(_ context.Context, filter models.ParticipantFilter) ([]models.Participant, int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []models.Participant
	for _, p := range v.participants {
		if filter.Role != nil && p.Role != *filter.Role {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (v participantView) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, ok := v.participants[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.LastLogin = &ts
	v.participants[id] = p
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []PairingEvent
}

func (r *recordingPublisher) Publish(_ context.Context, event PairingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
