package models

import "time"

// Pairing is a matched offer/seek couple produced by one matching run.
type Pairing struct {
	Offer  *PairingRequest `json:"offer"`
	Seek   *PairingRequest `json:"seek"`
	Window string          `json:"window"`
	Weight int             `json:"weight"`
}

// PairingRosterEntry is a confirmed pairing joined with participant names.
type PairingRosterEntry struct {
	OfferRequestID string    `db:"offer_request_id" json:"offer_request_id"`
	SeekRequestID  string    `db:"seek_request_id" json:"seek_request_id"`
	Subject        string    `db:"subject" json:"subject"`
	Window         string    `db:"chosen_window" json:"window"`
	WeekAnchor     time.Time `db:"week_anchor" json:"week_anchor"`
	TutorID        string    `db:"tutor_id" json:"tutor_id"`
	TutorName      string    `db:"tutor_name" json:"tutor_name"`
	LearnerID      string    `db:"learner_id" json:"learner_id"`
	LearnerName    string    `db:"learner_name" json:"learner_name"`
}

// MatchingPreview is the cached outcome of a read-only matching run.
type MatchingPreview struct {
	Pairings    []Pairing `json:"pairings"`
	TotalWeight int       `json:"total_weight"`
	GeneratedAt time.Time `json:"generated_at"`
}

// DeletionSummary reports what a participant deletion cascade touched.
type DeletionSummary struct {
	CancelledCounterparts int   `json:"cancelled_counterparts"`
	ClearedReferences     int64 `json:"cleared_references"`
	DeletedRequests       int64 `json:"deleted_requests"`
}
