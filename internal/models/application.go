package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationDraft    ApplicationStatus = "draft"
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// SectionName identifies one wizard step's worth of form data.
type SectionName string

const (
	SectionBusiness SectionName = "business"
	SectionContact  SectionName = "contact"
	SectionProduct  SectionName = "product"
)

// Sections holds the completed sections of a draft. A section that has not
// been filled in is absent from the map, never present as null.
type Sections map[SectionName]json.RawMessage

// Clone returns a copy that shares no map with s.
func (s Sections) Clone() Sections {
	out := make(Sections, len(s))
	for k, v := range s {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Application is the remote record backing a seller registration draft.
type Application struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	OwnerID         string            `json:"owner_id" db:"owner_id"`
	IdempotencyKey  uuid.UUID         `json:"idempotency_key" db:"idempotency_key"`
	Sections        Sections          `json:"sections" db:"sections"`
	Status          ApplicationStatus `json:"status" db:"status"`
	AppliedAt       *time.Time        `json:"applied_at,omitempty" db:"applied_at"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty" db:"reviewed_at"`
	RejectionReason *string           `json:"rejection_reason,omitempty" db:"rejection_reason"`
	Version         int64             `json:"version" db:"version"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}
