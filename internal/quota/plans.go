package quota

import "artsheets/internal/entity"

// Allotments 各订阅计划每个周期的默认额度
type Allotments struct {
	Free    int
	Basic   int
	Premium int
}

// For returns the default credits for a plan. Unbounded plans get 0 since they are never debited.
func (a Allotments) For(plan string) int {
	switch entity.NormalizePlan(plan) {
	case entity.PlanFree:
		return a.Free
	case entity.PlanBasic:
		return a.Basic
	case entity.PlanPremium:
		return a.Premium
	default:
		return 0
	}
}
