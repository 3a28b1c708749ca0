package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// TrackNone is the sentinel stored for participants without a track.
const TrackNone = "NONE"

// Participant is a learner who can offer or seek tutoring.
type Participant struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Role         UserRole       `db:"role" json:"role"`
	Level        int            `db:"level" json:"level"`
	Track        *string        `db:"track" json:"track,omitempty"`
	Subjects     pq.StringArray `db:"subjects" json:"subjects"`
	Availability pq.StringArray `db:"availability" json:"availability"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// TrackValue returns the normalised track, or "" when unset or NONE.
func (p *Participant) TrackValue() string {
	if p == nil || p.Track == nil {
		return ""
	}
	track := strings.TrimSpace(*p.Track)
	if strings.EqualFold(track, TrackNone) {
		return ""
	}
	return track
}

// ParticipantFilter captures supported filters for listing participants.
type ParticipantFilter struct {
	Search    string
	Role      *UserRole
	Level     *int
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
