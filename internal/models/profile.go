package models

import "time"

// Profile is the marketplace account of an identity-provider user.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	PlanName  string    `json:"plan" db:"plan"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Plan resolves the stored plan name; see ParsePlan.
func (p *Profile) Plan() (Plan, bool) {
	return ParsePlan(p.PlanName)
}
