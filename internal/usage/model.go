package usage

import "time"

// PlanFree is the entitlement every account starts with.
const PlanFree = "free"

// Entitlement is an account's download allowance.
type Entitlement struct {
	UserID             string     `json:"-"`
	Plan               string     `json:"plan"`
	DownloadsRemaining int        `json:"downloadsRemaining"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	ExternalCustomerID string     `json:"-"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// Expired reports whether a dated plan has lapsed at now.
func (e Entitlement) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Active reports whether at least one download can be consumed at now.
func (e Entitlement) Active(now time.Time) bool {
	return e.DownloadsRemaining > 0 && !e.Expired(now)
}

// Grant replaces an entitlement wholesale. It is applied only by the
// payment ledger after a completed checkout.
type Grant struct {
	Plan               string
	Downloads          int
	ExpiresAt          *time.Time
	ExternalCustomerID string
}

func defaultEntitlement(userID string, now time.Time) Entitlement {
	return Entitlement{
		UserID:             userID,
		Plan:               PlanFree,
		DownloadsRemaining: 0,
		UpdatedAt:          now,
	}
}
