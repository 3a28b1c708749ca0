package dto

import "time"

// CreatePairingRequest declares an intent to offer or seek help in a subject.
type CreatePairingRequest struct {
	Intent  string   `json:"intent" validate:"required,oneof=OFFER SEEK"`
	Subject string   `json:"subject" validate:"required,max=100"`
	Windows []string `json:"windows" validate:"required,min=1,max=40,dive,required"`
}

// ListPairingRequestsQuery filters the caller's requests.
type ListPairingRequestsQuery struct {
	Status          string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED COMPLETED CANCELLED"`
	IncludeArchived bool   `form:"includeArchived"`
}

// PairingSummary is one pairing produced by a matching run.
type PairingSummary struct {
	OfferRequestID string `json:"offerRequestId"`
	SeekRequestID  string `json:"seekRequestId"`
	TutorID        string `json:"tutorId"`
	LearnerID      string `json:"learnerId"`
	Subject        string `json:"subject"`
	Window         string `json:"window"`
	Weight         int    `json:"weight"`
}

// MatchingPreviewResponse reports what a matching run would confirm right now.
type MatchingPreviewResponse struct {
	Pairings    []PairingSummary `json:"pairings"`
	TotalWeight int              `json:"totalWeight"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Cached      bool             `json:"cached"`
}

// MatchingRunResponse reports the outcome of a persisted matching run.
type MatchingRunResponse struct {
	Transitioned int              `json:"transitioned"`
	Pairings     []PairingSummary `json:"pairings"`
}

// CompletionRunResponse reports the outcome of an on-demand completion tick.
type CompletionRunResponse struct {
	Completed int       `json:"completed"`
	RanAt     time.Time `json:"ranAt"`
}

// TimeslotCatalogResponse describes the weekly window grid requests may use.
type TimeslotCatalogResponse struct {
	Days       []string `json:"days"`
	PeriodEnds []string `json:"periodEnds"`
	Windows    []string `json:"windows"`
	Location   string   `json:"location"`
}
