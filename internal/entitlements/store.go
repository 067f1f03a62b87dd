// Package entitlements owns every write to the entitlement row. Both the
// webhook (push) path and the reconciler (pull) path funnel through here so
// the upsert logic exists exactly once, outside any provider adapter.
//
// Writes are plain last-writer-wins upserts keyed by user_id. The push and
// pull paths may race on the same row; both converge on provider ground
// truth, and the next reconciliation corrects any stale overwrite, so no
// version column or row lock is used.
package entitlements

import (
	"errors"
	"time"

	"jusdash-backend/internal/domain/billing"
	"jusdash-backend/internal/domain/plans"
	"jusdash-backend/internal/domain/users"
	"jusdash-backend/internal/providers"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a user has no entitlement row yet.
var ErrNotFound = errors.New("entitlement not found")

// Get reads the stored entitlement for a user.
func Get(db *gorm.DB, userID uint) (*billing.Entitlement, error) {
	var ent billing.Entitlement
	if err := db.Where("user_id = ?", userID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ent, nil
}

// ApplyPaymentEvent records an approved payment and grants entitlement, in
// one transaction. The payment append ignores (provider, transaction_id)
// conflicts so provider redelivery rewrites the same state instead of
// double-logging; the entitlement upsert is idempotent by construction.
func ApplyPaymentEvent(db *gorm.DB, user *users.User, ev *providers.PaymentEvent) (*billing.Entitlement, error) {
	var out *billing.Entitlement
	err := db.Transaction(func(tx *gorm.DB) error {
		payment := billing.Payment{
			Provider:      ev.Provider,
			TransactionID: ev.TransactionID,
			UserID:        user.ID,
			Amount:        ev.Amount,
			Status:        string(ev.Status),
			RawPayload:    string(ev.Raw),
		}
		if ev.PlanID != "" {
			planID := ev.PlanID
			payment.PlanID = &planID
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "transaction_id"}},
			DoNothing: true,
		}).Create(&payment).Error; err != nil {
			return err
		}

		tier := plans.NormalizeTier(ev.PlanID)
		ent := billing.Entitlement{
			UserID:           user.ID,
			Email:            user.Email,
			Subscribed:       true,
			SubscriptionTier: &tier,
			CurrentPeriodEnd: periodEndOrDefault(ev.PeriodEnd, ev.PlanID),
		}
		columns := []string{"email", "subscribed", "subscription_tier", "current_period_end", "updated_at"}
		if ev.ProviderCustomerID != "" {
			cid := ev.ProviderCustomerID
			ent.ProviderCustomerID = &cid
			columns = append(columns, "provider_customer_id")
		}
		if err := upsert(tx, &ent, columns); err != nil {
			return err
		}
		out = &ent
		return nil
	})
	return out, err
}

// ApplyReconciliation overwrites the entitlement with the provider's answer.
// A lapsed subscription keeps its last known tier for display; only the
// subscribed flag (and any fresher customer id) changes.
func ApplyReconciliation(db *gorm.DB, user *users.User, state *providers.SubscriptionState) (*billing.Entitlement, error) {
	ent := billing.Entitlement{
		UserID:     user.ID,
		Email:      user.Email,
		Subscribed: state.Subscribed,
	}
	columns := []string{"email", "subscribed", "updated_at"}

	if state.CustomerID != "" {
		cid := state.CustomerID
		ent.ProviderCustomerID = &cid
		columns = append(columns, "provider_customer_id")
	}
	if state.Subscribed {
		tier := plans.NormalizeTier(state.Tier)
		ent.SubscriptionTier = &tier
		ent.CurrentPeriodEnd = periodEndOrDefault(state.PeriodEnd, state.Tier)
		columns = append(columns, "subscription_tier", "current_period_end")
	}

	if err := upsert(db, &ent, columns); err != nil {
		return nil, err
	}

	// Re-read so callers see retained fields (tier/period end of a lapsed
	// row) and not just the columns this write touched.
	return Get(db, user.ID)
}

// periodEndOrDefault guarantees an active grant always carries an expiry:
// a subscribed row with a NULL period end would never lapse. When the
// provider sent none, one plan interval (or a month, if the plan is
// unmapped) is granted; the next reconciliation replaces the estimate with
// the provider's real period end.
func periodEndOrDefault(end *time.Time, planID string) *time.Time {
	if end != nil {
		return end
	}
	months := 1
	if plan, ok := plans.ByID(plans.NormalizeTier(planID)); ok {
		months = plan.IntervalMonths
	}
	fallback := time.Now().AddDate(0, months, 0).UTC()
	return &fallback
}

func upsert(db *gorm.DB, ent *billing.Entitlement, columns []string) error {
	ent.UpdatedAt = time.Now()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(ent).Error
}
