package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Intent is the direction of a pairing request.
type Intent string

const (
	IntentOffer Intent = "OFFER"
	IntentSeek  Intent = "SEEK"
)

// Valid reports whether the intent is one of the known variants.
func (i Intent) Valid() bool {
	switch i {
	case IntentOffer, IntentSeek:
		return true
	default:
		return false
	}
}

// RequestStatus is the lifecycle state of a pairing request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusConfirmed RequestStatus = "CONFIRMED"
	RequestStatusCompleted RequestStatus = "COMPLETED"
	RequestStatusCancelled RequestStatus = "CANCELLED"
)

// Valid reports whether the status is one of the known variants.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusConfirmed, RequestStatusCompleted, RequestStatusCancelled:
		return true
	default:
		return false
	}
}

// CanBeCancelled is true for PENDING and CONFIRMED requests.
func (s RequestStatus) CanBeCancelled() bool {
	switch s {
	case RequestStatusPending, RequestStatusConfirmed:
		return true
	case RequestStatusCompleted, RequestStatusCancelled:
		return false
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusCompleted, RequestStatusCancelled:
		return true
	case RequestStatusPending, RequestStatusConfirmed:
		return false
	default:
		return false
	}
}

// PairingRequest is one participant's intent to offer or seek help in a subject.
type PairingRequest struct {
	ID               string         `db:"id" json:"id"`
	OwnerID          string         `db:"owner_id" json:"owner_id"`
	Intent           Intent         `db:"intent" json:"intent"`
	Subject          string         `db:"subject" json:"subject"`
	CandidateWindows pq.StringArray `db:"candidate_windows" json:"candidate_windows"`
	Status           RequestStatus  `db:"status" json:"status"`
	ChosenWindow     *string        `db:"chosen_window" json:"chosen_window,omitempty"`
	WeekAnchor       *time.Time     `db:"week_anchor" json:"week_anchor,omitempty"`
	PartnerID        *string        `db:"partner_id" json:"partner_id,omitempty"`
	Archived         bool           `db:"archived" json:"archived"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// CanBeCancelled reports whether the request may transition to CANCELLED.
func (r *PairingRequest) CanBeCancelled() bool {
	return r != nil && r.Status.CanBeCancelled()
}

// Confirm moves a PENDING request to CONFIRMED with the agreed window and partner.
func (r *PairingRequest) Confirm(window string, weekAnchor time.Time, partnerID string) error {
	if r.Status != RequestStatusPending {
		return fmt.Errorf("request %s cannot be confirmed from %s", r.ID, r.Status)
	}
	r.Status = RequestStatusConfirmed
	r.ChosenWindow = &window
	r.WeekAnchor = &weekAnchor
	r.PartnerID = &partnerID
	return nil
}

// Cancel moves a cancellable request to CANCELLED and drops its partner reference.
func (r *PairingRequest) Cancel() error {
	if !r.Status.CanBeCancelled() {
		return fmt.Errorf("request %s cannot be cancelled from %s", r.ID, r.Status)
	}
	r.Status = RequestStatusCancelled
	r.PartnerID = nil
	return nil
}

// Complete moves a CONFIRMED request to COMPLETED. The schedule is kept; the
// partner reference only lives while the pairing is active.
func (r *PairingRequest) Complete() error {
	if r.Status != RequestStatusConfirmed {
		return fmt.Errorf("request %s cannot be completed from %s", r.ID, r.Status)
	}
	r.Status = RequestStatusCompleted
	r.PartnerID = nil
	return nil
}

// Validate checks the structural invariants of a request.
func (r *PairingRequest) Validate() error {
	if !r.Intent.Valid() {
		return fmt.Errorf("unknown intent %q", r.Intent)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown status %q", r.Status)
	}
	if r.Status == RequestStatusPending && len(r.CandidateWindows) == 0 {
		return fmt.Errorf("pending request requires at least one candidate window")
	}
	if (r.ChosenWindow == nil) != (r.WeekAnchor == nil) {
		return fmt.Errorf("chosen window and week anchor must be set together")
	}
	if (r.PartnerID != nil) != (r.Status == RequestStatusConfirmed) {
		return fmt.Errorf("partner must be set exactly while confirmed")
	}
	return nil
}

// PairingRequestFilter narrows listing queries.
type PairingRequestFilter struct {
	OwnerID         string
	Status          *RequestStatus
	IncludeArchived bool
}
