package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

const previewCacheKey = "matching:preview"

const (
	baseWeight  = 100
	trackBonus  = 50
	gapDisabled = 0
)

// levelBonus is indexed by offer level minus seek level.
var levelBonus = map[int]int{0: 25, 1: 30, 2: 20, 3: 15, 4: 10}

type matchingRequestStore interface {
	FindPendingByIntent(ctx context.Context, exec sqlx.ExtContext, intent models.Intent, forUpdate bool) ([]models.PairingRequest, error)
	FindConfirmed(ctx context.Context, exec sqlx.ExtContext) ([]models.PairingRequest, error)
	Save(ctx context.Context, exec sqlx.ExtContext, req *models.PairingRequest) error
}

type participantLookup interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) (map[string]models.Participant, error)
}

// MatchingConfig tunes the matching engine.
type MatchingConfig struct {
	// MaxLevelGap rejects edges whose level difference exceeds it; 0 keeps the gap a weight-only signal.
	MaxLevelGap int
	PreviewTTL  time.Duration
}

// MatchingService pairs pending offers with pending seeks.
type MatchingService struct {
	requests     matchingRequestStore
	participants participantLookup
	tx           txProvider
	catalog      *timeslot.Catalog
	clock        timeslot.Clock
	cache        *CacheService
	metrics      *MetricsService
	events       eventPublisher
	logger       *zap.Logger
	config       MatchingConfig

	runMu sync.Mutex
}

// NewMatchingService wires the matching engine.
func NewMatchingService(
	requests matchingRequestStore,
	participants participantLookup,
	tx txProvider,
	catalog *timeslot.Catalog,
	clock timeslot.Clock,
	cache *CacheService,
	metrics *MetricsService,
	events eventPublisher,
	logger *zap.Logger,
	cfg MatchingConfig,
) *MatchingService {
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
	if cfg.MaxLevelGap < 0 {
		cfg.MaxLevelGap = gapDisabled
	}
	return &MatchingService{
		requests:     requests,
		participants: participants,
		tx:           tx,
		catalog:      catalog,
		clock:        clock,
		cache:        cache,
		metrics:      metrics,
		events:       events,
		logger:       logger,
		config:       cfg,
	}
}

// RunMatching computes the pairings a run would confirm without persisting anything.
func (s *MatchingService) RunMatching(ctx context.Context) ([]models.Pairing, error) {
	outcome, err := s.compute(ctx, nil, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute matching")
	}
	return outcome.pairings, nil
}

// PerformMatching confirms every accepted pairing inside one transaction and
// returns the number of requests transitioned (two per pairing).
func (s *MatchingService) PerformMatching(ctx context.Context) (int, []models.Pairing, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var accepted []models.Pairing
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		outcome, err := s.compute(ctx, tx, true)
		if err != nil {
			return err
		}
		anchor := timeslot.WeekAnchor(s.clock.Now().In(s.catalog.Location()))
		for _, pairing := range outcome.pairings {
			if err := pairing.Offer.Confirm(pairing.Window, anchor, pairing.Seek.OwnerID); err != nil {
				return err
			}
			if err := pairing.Seek.Confirm(pairing.Window, anchor, pairing.Offer.OwnerID); err != nil {
				return err
			}
			if err := s.requests.Save(ctx, tx, pairing.Offer); err != nil {
				return err
			}
			if err := s.requests.Save(ctx, tx, pairing.Seek); err != nil {
				return err
			}
		}
		accepted = outcome.pairings
		return nil
	})
	if err != nil {
		return 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to perform matching")
	}

	transitioned := 2 * len(accepted)
	s.metrics.AddPairingsAccepted(len(accepted))
	s.metrics.RecordTransition(string(models.RequestStatusConfirmed), transitioned)
	for _, pairing := range accepted {
		s.events.Publish(ctx, PairingEvent{
			Type:           EventPairingConfirmed,
			RequestIDs:     []string{pairing.Offer.ID, pairing.Seek.ID},
			ParticipantIDs: []string{pairing.Offer.OwnerID, pairing.Seek.OwnerID},
			Window:         pairing.Window,
		})
	}
	s.logger.Info("matching run persisted", zap.Int("pairings", len(accepted)), zap.Int("transitioned", transitioned))
	return transitioned, accepted, nil
}

// Preview returns the read-only matching result, served from cache when fresh.
// The boolean reports a cache hit.
func (s *MatchingService) Preview(ctx context.Context) (*models.MatchingPreview, bool, error) {
	var cached models.MatchingPreview
	if s.cache.Get(ctx, previewCacheKey, &cached) {
		return &cached, true, nil
	}

	pairings, err := s.RunMatching(ctx)
	if err != nil {
		return nil, false, err
	}
	preview := &models.MatchingPreview{
		Pairings:    pairings,
		TotalWeight: totalWeight(pairings),
		GeneratedAt: s.clock.Now().UTC(),
	}
	s.cache.Set(ctx, previewCacheKey, preview, s.config.PreviewTTL)
	return preview, false, nil
}

type matchOutcome struct {
	pairings []models.Pairing
	matched  int
	rejected int
}

func (s *MatchingService) compute(ctx context.Context, exec sqlx.ExtContext, lock bool) (matchOutcome, error) {
	start := time.Now()

	offers, err := s.requests.FindPendingByIntent(ctx, exec, models.IntentOffer, lock)
	if err != nil {
		return matchOutcome{}, err
	}
	seeks, err := s.requests.FindPendingByIntent(ctx, exec, models.IntentSeek, lock)
	if err != nil {
		return matchOutcome{}, err
	}
	if len(offers) == 0 || len(seeks) == 0 {
		s.logger.Debug("matching skipped: empty pool", zap.Int("offers", len(offers)), zap.Int("seeks", len(seeks)))
		return matchOutcome{}, nil
	}

	ownerIDs := make([]string, 0, len(offers)+len(seeks))
	seen := make(map[string]struct{}, cap(ownerIDs))
	for _, group := range [][]models.PairingRequest{offers, seeks} {
		for _, req := range group {
			if _, ok := seen[req.OwnerID]; !ok {
				seen[req.OwnerID] = struct{}{}
				ownerIDs = append(ownerIDs, req.OwnerID)
			}
		}
	}
	owners, err := s.participants.FindByIDs(ctx, exec, ownerIDs)
	if err != nil {
		return matchOutcome{}, err
	}
	confirmed, err := s.requests.FindConfirmed(ctx, exec)
	if err != nil {
		return matchOutcome{}, err
	}

	occupied := newOccupancy(confirmed)
	remainingOffers := pointers(offers)
	remainingSeeks := pointers(seeks)
	var outcome matchOutcome
	// Each round only sees requests the previous rounds left unused, so a
	// request stranded by a conflict still gets its next-best partner. The loop
	// ends on the first round that accepts nothing, which is what a rerun would see.
	for round := 1; ; round++ {
		components := buildComponents(remainingOffers, remainingSeeks, owners, occupied, s.logger)
		edges := maximumWeightEdges(components, s.config.MaxLevelGap)
		accepted, rejected := resolveConflicts(edges, occupied)
		outcome.matched += len(edges)
		outcome.rejected += rejected
		if len(accepted) == 0 {
			break
		}
		outcome.pairings = append(outcome.pairings, accepted...)
		remainingOffers = unused(remainingOffers, accepted)
		remainingSeeks = unused(remainingSeeks, accepted)
		s.logger.Debug("matching round", zap.Int("round", round), zap.Int("accepted", len(accepted)))
	}

	s.metrics.ObserveMatching(time.Since(start), outcome.rejected)
	s.logger.Debug("matching computed",
		zap.Int("offers", len(offers)),
		zap.Int("seeks", len(seeks)),
		zap.Int("matched_edges", outcome.matched),
		zap.Int("accepted", len(outcome.pairings)),
		zap.Int("conflict_rejections", outcome.rejected),
	)
	return outcome, nil
}

func pointers(reqs []models.PairingRequest) []*models.PairingRequest {
	out := make([]*models.PairingRequest, len(reqs))
	for i := range reqs {
		out[i] = &reqs[i]
	}
	return out
}

func unused(reqs []*models.PairingRequest, accepted []models.Pairing) []*models.PairingRequest {
	taken := make(map[string]struct{}, 2*len(accepted))
	for _, p := range accepted {
		taken[p.Offer.ID] = struct{}{}
		taken[p.Seek.ID] = struct{}{}
	}
	out := reqs[:0:0]
	for _, req := range reqs {
		if _, ok := taken[req.ID]; !ok {
			out = append(out, req)
		}
	}
	return out
}

type slot struct{ participant, window string }

// occupancy is the conflict map: windows each participant is already committed to.
type occupancy map[slot]struct{}

func newOccupancy(confirmed []models.PairingRequest) occupancy {
	occupied := make(occupancy, len(confirmed))
	for _, req := range confirmed {
		if req.ChosenWindow != nil {
			occupied[slot{req.OwnerID, *req.ChosenWindow}] = struct{}{}
		}
	}
	return occupied
}

func (o occupancy) busy(participant, window string) bool {
	_, ok := o[slot{participant, window}]
	return ok
}

// candidateVertex is one (request, window) node of the compatibility graph.
type candidateVertex struct {
	request *models.PairingRequest
	owner   *models.Participant
}

// component holds the vertices sharing one window code and subject. Edges can
// only exist inside a component, so each one is solved independently.
type component struct {
	window string
	offers []candidateVertex
	seeks  []candidateVertex
}

type matchedEdge struct {
	offer  *models.PairingRequest
	seek   *models.PairingRequest
	window string
	weight int
}

func buildComponents(offers, seeks []*models.PairingRequest, owners map[string]models.Participant, occupied occupancy, logger *zap.Logger) []*component {
	byKey := make(map[[2]string]*component)
	add := func(reqs []*models.PairingRequest, isOffer bool) {
		for _, req := range reqs {
			owner, ok := owners[req.OwnerID]
			if !ok {
				logger.Warn("pending request without owner skipped", zap.String("request_id", req.ID), zap.String("owner_id", req.OwnerID))
				continue
			}
			ownerRef := owner
			windows := make(map[string]struct{}, len(req.CandidateWindows))
			for _, window := range req.CandidateWindows {
				if _, dup := windows[window]; dup || occupied.busy(req.OwnerID, window) {
					continue
				}
				windows[window] = struct{}{}
				key := [2]string{window, req.Subject}
				comp, ok := byKey[key]
				if !ok {
					comp = &component{window: window}
					byKey[key] = comp
				}
				vertex := candidateVertex{request: req, owner: &ownerRef}
				if isOffer {
					comp.offers = append(comp.offers, vertex)
				} else {
					comp.seeks = append(comp.seeks, vertex)
				}
			}
		}
	}
	add(offers, true)
	add(seeks, false)

	keys := make([][2]string, 0, len(byKey))
	for key, comp := range byKey {
		if len(comp.offers) == 0 || len(comp.seeks) == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	components := make([]*component, 0, len(keys))
	for _, key := range keys {
		comp := byKey[key]
		sort.Slice(comp.offers, func(i, j int) bool { return comp.offers[i].request.ID < comp.offers[j].request.ID })
		sort.Slice(comp.seeks, func(i, j int) bool { return comp.seeks[i].request.ID < comp.seeks[j].request.ID })
		components = append(components, comp)
	}
	return components
}

// pairWeight applies the hard constraints and returns the edge weight, or
// false when the pair is not eligible.
func pairWeight(offer, seek *models.Participant, maxLevelGap int) (int, bool) {
	if offer.ID == seek.ID {
		return 0, false
	}
	gap := offer.Level - seek.Level
	if gap < 0 {
		return 0, false
	}
	if maxLevelGap > gapDisabled && gap > maxLevelGap {
		return 0, false
	}
	weight := baseWeight
	if track := offer.TrackValue(); track != "" && track == seek.TrackValue() {
		weight += trackBonus
	}
	weight += levelBonus[gap]
	return weight, weight > 0
}

func maximumWeightEdges(components []*component, maxLevelGap int) []matchedEdge {
	var edges []matchedEdge
	for _, comp := range components {
		weights := make([][]int, len(comp.offers))
		for i, offer := range comp.offers {
			weights[i] = make([]int, len(comp.seeks))
			for j, seek := range comp.seeks {
				if offer.request.Subject != seek.request.Subject {
					continue
				}
				if w, ok := pairWeight(offer.owner, seek.owner, maxLevelGap); ok {
					weights[i][j] = w
				}
			}
		}
		for i, j := range maxWeightAssignment(weights) {
			if j < 0 {
				continue
			}
			edges = append(edges, matchedEdge{
				offer:  comp.offers[i].request,
				seek:   comp.seeks[j].request,
				window: comp.window,
				weight: weights[i][j],
			})
		}
	}
	return edges
}

// resolveConflicts walks matched edges by descending weight (ties by offer id,
// seek id, then window) and keeps an edge only when both requests are still
// unused and neither participant already occupies the window. Accepted windows
// are added to occupied.
func resolveConflicts(edges []matchedEdge, occupied occupancy) ([]models.Pairing, int) {
	sort.SliceStable(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		if a.offer.ID != b.offer.ID {
			return a.offer.ID < b.offer.ID
		}
		if a.seek.ID != b.seek.ID {
			return a.seek.ID < b.seek.ID
		}
		return a.window < b.window
	})

	used := make(map[string]struct{}, 2*len(edges))
	var pairings []models.Pairing
	rejected := 0
	for _, edge := range edges {
		offer, seek := edge.offer, edge.seek
		if offer.Intent != models.IntentOffer {
			offer, seek = seek, offer
		}
		_, offerUsed := used[offer.ID]
		_, seekUsed := used[seek.ID]
		if offerUsed || seekUsed || occupied.busy(offer.OwnerID, edge.window) || occupied.busy(seek.OwnerID, edge.window) {
			rejected++
			continue
		}
		used[offer.ID] = struct{}{}
		used[seek.ID] = struct{}{}
		occupied[slot{offer.OwnerID, edge.window}] = struct{}{}
		occupied[slot{seek.OwnerID, edge.window}] = struct{}{}
		pairings = append(pairings, models.Pairing{Offer: offer, Seek: seek, Window: edge.window, Weight: edge.weight})
	}
	return pairings, rejected
}

func totalWeight(pairings []models.Pairing) int {
	total := 0
	for _, p := range pairings {
		total += p.Weight
	}
	return total
}
