package billing

import "time"

// Payment is the append-only audit trail of provider-confirmed transactions.
// Rows are never mutated and never read back to compute entitlement.
// The (provider, transaction_id) unique index makes webhook redelivery a
// visible no-op instead of a duplicate audit row.
type Payment struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Provider      string `gorm:"not null;uniqueIndex:idx_payments_provider_txn,priority:1" json:"provider"`
	TransactionID string `gorm:"not null;uniqueIndex:idx_payments_provider_txn,priority:2" json:"transaction_id"`

	UserID uint    `gorm:"index" json:"user_id"`
	PlanID *string `json:"plan_id,omitempty"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`

	// Raw provider payload, kept verbatim for debugging disputes.
	RawPayload string `gorm:"type:text" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
