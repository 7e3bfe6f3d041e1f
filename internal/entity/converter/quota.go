package converter

import (
	"artsheets/internal/entity"
)

// QuotaAccountToSnapshot converts an account row to the client-facing snapshot.
// Unbounded plans report a nil balance.
func QuotaAccountToSnapshot(a *entity.DbQuotaAccount) *entity.CreditSnapshot {
	if a == nil {
		return nil
	}
	snapshot := &entity.CreditSnapshot{
		AccountID:   a.ID,
		Plan:        a.Plan,
		Status:      a.Status,
		Unlimited:   a.Unbounded(),
		PeriodStart: a.PeriodStart,
		PeriodEnd:   a.PeriodEnd,
	}
	if !snapshot.Unlimited {
		remaining := a.RemainingCredits
		snapshot.RemainingCredits = &remaining
	}
	return snapshot
}
