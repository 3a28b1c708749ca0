package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/pkg/export"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
	"github.com/noah-isme/peer-tutoring-api/pkg/storage"
)

type rosterRepository interface {
	ListRoster(ctx context.Context) ([]models.PairingRosterEntry, error)
}

type datasetRenderer interface {
	Render(format export.Format, data export.Dataset, title string) ([]byte, error)
}

type snapshotStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type linkSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string) (id, relPath string, expiresAt time.Time, err error)
	TTL() time.Duration
}

// RosterExport is a rendered roster ready to be streamed.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// RosterSnapshot is a stored roster reachable through a signed download token.
type RosterSnapshot struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

var rosterHeaders = []string{"Week", "Window", "Subject", "Tutor", "Learner", "Offer Request", "Seek Request"}

// RosterService renders the confirmed pairing roster as CSV or PDF.
type RosterService struct {
	repo     rosterRepository
	renderer datasetRenderer
	clock    func() time.Time
	logger   *zap.Logger

	snapshots snapshotStore
	signer    linkSigner
}

// NewRosterService constructs a RosterService.
func NewRosterService(repo rosterRepository, renderer datasetRenderer, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &RosterService{repo: repo, renderer: renderer, clock: func() time.Time { return time.Now().UTC() }, logger: logger}
}

// WithSnapshots enables stored roster snapshots behind signed links.
func (s *RosterService) WithSnapshots(store snapshotStore, signer linkSigner) *RosterService {
	s.snapshots = store
	s.signer = signer
	return s
}

// Export renders every confirmed pairing in the requested format.
func (s *RosterService) Export(ctx context.Context, rawFormat string) (*RosterExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}

	entries, err := s.repo.ListRoster(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Week":          entry.WeekAnchor.Format("2006-01-02"),
			"Window":        entry.Window,
			"Subject":       entry.Subject,
			"Tutor":         entry.TutorName,
			"Learner":       entry.LearnerName,
			"Offer Request": entry.OfferRequestID,
			"Seek Request":  entry.SeekRequestID,
		})
	}

	generatedAt := s.clock()
	body, err := s.renderer.Render(format, export.Dataset{Headers: rosterHeaders, Rows: rows}, fmt.Sprintf("Tutoring Roster %s", generatedAt.Format("2006-01-02")))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	s.logger.Debug("roster exported", zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &RosterExport{
		Filename:    fmt.Sprintf("roster_%s.%s", generatedAt.Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}

// Snapshot renders the roster, stores it and returns a signed download token.
// Snapshots older than the link lifetime are pruned on the way.
func (s *RosterService) Snapshot(ctx context.Context, rawFormat string) (*RosterSnapshot, error) {
	if s.snapshots == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "roster snapshots are not enabled")
	}
	out, err := s.Export(ctx, rawFormat)
	if err != nil {
		return nil, err
	}

	if removed, err := s.snapshots.CleanupOlderThan(s.signer.TTL()); err != nil {
		s.logger.Warn("roster snapshot cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Debug("roster snapshots pruned", zap.Int("count", len(removed)))
	}

	id := uuid.NewString()
	relPath, err := s.snapshots.Save(path.Join("roster", id+path.Ext(out.Filename)), out.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store roster snapshot")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign roster snapshot")
	}

	s.logger.Info("roster snapshot stored", zap.String("id", id), zap.Int("rows", out.Rows))
	return &RosterSnapshot{ID: id, Token: token, Filename: out.Filename, Rows: out.Rows, ExpiresAt: expiresAt}, nil
}

// OpenSnapshot resolves a signed token back to the stored roster file.
func (s *RosterService) OpenSnapshot(ctx context.Context, token string) (*RosterExport, error) {
	if s.snapshots == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "roster snapshots are not enabled")
	}
	id, relPath, _, err := s.signer.Parse(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}

	file, err := s.snapshots.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open roster snapshot")
	}
	defer file.Close() //nolint:errcheck

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read roster snapshot")
	}
	ext := strings.TrimPrefix(path.Ext(relPath), ".")
	format, err := export.ParseFormat(ext)
	if err != nil {
		format = export.FormatCSV
	}
	return &RosterExport{
		Filename:    "roster_" + id + "." + string(format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}
