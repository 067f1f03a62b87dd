package billing

import "time"

// Entitlement is the locally stored answer to "does this user currently have
// paid access, and to what tier". One row per user, always upserted in place.
// Both the webhook path and the reconciler overwrite it; last writer wins.
type Entitlement struct {
	ID     uint `gorm:"primaryKey" json:"-"`
	UserID uint `gorm:"not null;uniqueIndex:idx_entitlements_user_id" json:"user_id"`

	// Denormalized because every provider identifies customers by email,
	// not by our internal id.
	Email string `gorm:"not null" json:"email"`

	Subscribed bool `gorm:"not null;default:false" json:"subscribed"`

	// Retained after a lapse so the UI can still show the last plan.
	SubscriptionTier *string `json:"subscription_tier,omitempty"`

	ProviderCustomerID *string    `gorm:"column:provider_customer_id" json:"provider_customer_id,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end" json:"current_period_end,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}
