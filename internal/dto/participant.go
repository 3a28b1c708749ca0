package dto

// CreateParticipantRequest registers a participant profile.
type CreateParticipantRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	Password     string   `json:"password" validate:"required,min=8"`
	FullName     string   `json:"fullName" validate:"required,max=150"`
	Role         string   `json:"role" validate:"omitempty,oneof=ADMIN PARTICIPANT"`
	Level        int      `json:"level" validate:"min=0,max=20"`
	Track        *string  `json:"track" validate:"omitempty,max=50"`
	Subjects     []string `json:"subjects" validate:"omitempty,dive,required,max=100"`
	Availability []string `json:"availability" validate:"omitempty,dive,required"`
}

// ListParticipantsQuery captures list filters from the query string.
type ListParticipantsQuery struct {
	Search    string `form:"search"`
	Role      string `form:"role" validate:"omitempty,oneof=ADMIN PARTICIPANT"`
	Level     *int   `form:"level"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}

// DeleteParticipantResponse summarises the cascade performed on deletion.
type DeleteParticipantResponse struct {
	CancelledCounterparts int   `json:"cancelledCounterparts"`
	ClearedReferences     int64 `json:"clearedReferences"`
	DeletedRequests       int64 `json:"deletedRequests"`
}
