package models

import (
	"strings"
	"time"
)

// Plan is a subscription tier. The set is closed: every switch over Plan
// must name each tier.
type Plan int

const (
	PlanFree Plan = iota
	PlanStandard
	PlanPremium
	PlanBusiness
	PlanEnterprise
)

// UploadPolicy bounds the media a plan may attach to a store.
type UploadPolicy struct {
	MaxBytes            int64         `json:"max_bytes"`
	MaxDuration         time.Duration `json:"max_duration"`
	AllowedContentTypes []string      `json:"allowed_content_types"`
}

var imageContentTypes = []string{"image/jpeg", "image/png", "image/webp"}

var mediaContentTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif", "video/mp4"}

// ParsePlan resolves a stored plan name. Unknown names resolve to PlanFree,
// the most restrictive tier, with ok=false.
func ParsePlan(name string) (Plan, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "free":
		return PlanFree, true
	case "standard":
		return PlanStandard, true
	case "premium":
		return PlanPremium, true
	case "business":
		return PlanBusiness, true
	case "enterprise":
		return PlanEnterprise, true
	}
	return PlanFree, false
}

func (p Plan) String() string {
	switch p {
	case PlanFree:
		return "free"
	case PlanStandard:
		return "standard"
	case PlanPremium:
		return "premium"
	case PlanBusiness:
		return "business"
	case PlanEnterprise:
		return "enterprise"
	}
	return "free"
}

// StoreLimit returns how many non-deleted stores an owner on this plan may hold.
func (p Plan) StoreLimit() int {
	switch p {
	case PlanFree:
		return 0
	case PlanStandard:
		return 1
	case PlanPremium:
		return 3
	case PlanBusiness:
		return 10
	case PlanEnterprise:
		return 99
	}
	return 0
}

func (p Plan) UploadPolicy() UploadPolicy {
	switch p {
	case PlanFree:
		return UploadPolicy{MaxBytes: 1 << 20, AllowedContentTypes: imageContentTypes}
	case PlanStandard:
		return UploadPolicy{MaxBytes: 2 << 20, AllowedContentTypes: imageContentTypes}
	case PlanPremium:
		return UploadPolicy{MaxBytes: 5 << 20, MaxDuration: 15 * time.Second, AllowedContentTypes: mediaContentTypes}
	case PlanBusiness:
		return UploadPolicy{MaxBytes: 10 << 20, MaxDuration: 30 * time.Second, AllowedContentTypes: mediaContentTypes}
	case PlanEnterprise:
		return UploadPolicy{MaxBytes: 25 << 20, MaxDuration: 60 * time.Second, AllowedContentTypes: mediaContentTypes}
	}
	return UploadPolicy{}
}

func (p Plan) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
