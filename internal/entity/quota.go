package entity

import (
	"strings"
	"time"
)

// 订阅计划
const (
	PlanFree       = "FREE"
	PlanBasic      = "BASIC"
	PlanPremium    = "PREMIUM"
	PlanUnlimited  = "UNLIMITED"
	PlanEnterprise = "ENTERPRISE"
)

// 额度账户状态
const (
	QuotaStatusActive   = "ACTIVE"
	QuotaStatusInactive = "INACTIVE"
)

// 预留状态
const (
	ReservationStatusReserved   = "reserved"
	ReservationStatusCommitted  = "committed"
	ReservationStatusRolledBack = "rolled_back"
)

// NormalizePlan returns the canonical plan name, or "" when the value is not a known plan.
func NormalizePlan(value string) string {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case PlanFree:
		return PlanFree
	case PlanBasic:
		return PlanBasic
	case PlanPremium:
		return PlanPremium
	case PlanUnlimited:
		return PlanUnlimited
	case PlanEnterprise:
		return PlanEnterprise
	default:
		return ""
	}
}

// IsUnboundedPlan reports whether the plan skips credit metering.
func IsUnboundedPlan(plan string) bool {
	switch plan {
	case PlanUnlimited, PlanEnterprise:
		return true
	default:
		return false
	}
}

// DbQuotaAccount is a user's credit balance for one subscription period.
// At most one account per user is ACTIVE.
type DbQuotaAccount struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	UserID           uint       `gorm:"column:user_id;index;not null" json:"user_id"`
	Plan             string     `gorm:"column:plan;type:varchar(32);not null" json:"plan"`
	RemainingCredits int        `gorm:"column:remaining_credits;not null;default:0;check:remaining_credits >= 0" json:"remaining_credits"`
	Status           string     `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	PeriodStart      time.Time  `gorm:"column:period_start" json:"period_start"`
	PeriodEnd        *time.Time `gorm:"column:period_end" json:"period_end,omitempty"`
}

// TableName 指定表名。
func (DbQuotaAccount) TableName() string {
	return "quota_accounts"
}

// Unbounded reports whether debits against this account are skipped.
func (a *DbQuotaAccount) Unbounded() bool {
	return a != nil && IsUnboundedPlan(a.Plan)
}

// DbReservation records credits debited ahead of a generation call.
type DbReservation struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	UserID         uint       `gorm:"column:user_id;index;not null" json:"user_id"`
	QuotaAccountID uint       `gorm:"column:quota_account_id;index;not null" json:"quota_account_id"`
	Amount         int        `gorm:"column:amount;not null" json:"amount"`
	Metered        bool       `gorm:"column:metered;not null" json:"metered"`
	Status         string     `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	ExpiresAt      time.Time  `gorm:"column:expires_at;index" json:"expires_at"`
	ResolvedAt     *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

// TableName 指定表名。
func (DbReservation) TableName() string {
	return "credit_reservations"
}

// ReserveOutcome is the result of an atomic reserve attempt.
type ReserveOutcome struct {
	Reserved bool
	// Available is the balance observed when the debit was refused.
	Available int
	// Account reflects the balance right after a successful debit.
	Account *DbQuotaAccount
}

// CreditSnapshot 额度快照
type CreditSnapshot struct {
	AccountID        uint       `json:"account_id"`
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	RemainingCredits *int       `json:"remaining_credits"`
	Unlimited        bool       `json:"unlimited"`
	PeriodStart      time.Time  `json:"period_start"`
	PeriodEnd        *time.Time `json:"period_end,omitempty"`
}

// QuotaAccountActivateRequest 开通新的订阅周期
type QuotaAccountActivateRequest struct {
	UserID    uint       `json:"user_id" binding:"required"`
	Plan      string     `json:"plan" binding:"required"`
	Credits   *int       `json:"credits,omitempty"`
	PeriodEnd *time.Time `json:"period_end,omitempty"`
}

// QuotaGrantRequest 为账户补充额度
type QuotaGrantRequest struct {
	Amount int `json:"amount" binding:"required"`
}

// ReservationQuery supports listing reservations.
type ReservationQuery struct {
	BaseParams
	Status string `json:"status" form:"status" query:"status"`
	UserID uint   `json:"user_id" form:"user_id" query:"user_id"`
}

// ReservationListResponse is the response for listing reservations.
type ReservationListResponse struct {
	Reservations []DbReservation `json:"reservations"`
	Meta         *Meta           `json:"meta"`
}
