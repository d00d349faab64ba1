package models

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
	VerificationDeleted  VerificationStatus = "deleted"
)

// Store is a seller-owned storefront counted against the owner's plan.
type Store struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	OwnerID            string             `json:"owner_id" db:"owner_id"`
	Name               string             `json:"name" db:"name"`
	Description        string             `json:"description" db:"description"`
	Category           string             `json:"category" db:"category"`
	LogoURL            *string            `json:"logo_url,omitempty" db:"logo_url"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// StoreAttributes are the caller-supplied fields of a new store.
type StoreAttributes struct {
	Name        string `json:"name" form:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" form:"description" validate:"max=1000"`
	Category    string `json:"category" form:"category" validate:"required,store_category"`
}

// StoreUpdate carries a partial update; nil fields are left unchanged.
type StoreUpdate struct {
	Name        *string `json:"name,omitempty" form:"name" validate:"omitempty,min=2,max=120"`
	Description *string `json:"description,omitempty" form:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category,omitempty" form:"category" validate:"omitempty,store_category"`
	IsActive    *bool   `json:"is_active,omitempty" form:"is_active"`
}

// QuotaUsage reports an owner's store count against their plan.
type QuotaUsage struct {
	OwnerID string `json:"owner_id"`
	Plan    Plan   `json:"plan"`
	Limit   int    `json:"limit"`
	Active  int    `json:"active"`
}

// OverQuotaOwner is an owner holding more stores than the current plan allows.
type OverQuotaOwner struct {
	OwnerID  string `json:"owner_id" db:"owner_id"`
	PlanName string `json:"plan" db:"plan"`
	Active   int    `json:"active" db:"active_count"`
}
