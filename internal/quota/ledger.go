// Package quota tracks per-user credit balances. Credits are reserved
// before an external generation call and then either committed or rolled
// back; a reservation is resolved exactly once.
package quota

import (
	"artsheets/internal/entity"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrReservationResolved is returned when a reservation is committed after
	// a rollback or rolled back after a commit.
	ErrReservationResolved = errors.New("reservation already resolved")
	// ErrReservationNotFound is returned for an unknown reservation id.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrNoActiveAccount is returned when a user has no ACTIVE quota account.
	ErrNoActiveAccount = errors.New("no active quota account")
	// ErrUnboundedAccount is returned when topping up an unlimited plan.
	ErrUnboundedAccount = errors.New("account has an unlimited plan")
)

// InsufficientCreditsError reports a refused reservation.
type InsufficientCreditsError struct {
	Required  int
	Available int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, available %d", e.Required, e.Available)
}

// Store is the persistence the ledger relies on. ReserveCredits must perform
// the balance check and the debit as one atomic unit.
type Store interface {
	ReserveCredits(ctx context.Context, reservation *entity.DbReservation) (entity.ReserveOutcome, error)
	CommitReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error)
	RollbackReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error)
	GetActiveQuotaAccount(ctx context.Context, userID uint) (*entity.DbQuotaAccount, error)
	GetQuotaAccount(ctx context.Context, id uint) (*entity.DbQuotaAccount, error)
	ActivateQuotaAccount(ctx context.Context, account *entity.DbQuotaAccount) error
	GrantCredits(ctx context.Context, accountID uint, amount int) (*entity.DbQuotaAccount, error)
	ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]entity.DbReservation, error)
}

// Reservation is the token handed back by Reserve.
type Reservation struct {
	ID        string
	UserID    uint
	AccountID uint
	Amount    int
	Metered   bool
	ExpiresAt time.Time
	// Remaining is the balance right after the debit. It is meaningless when Unlimited.
	Remaining int
	Unlimited bool
}

// Ledger implements reserve / commit / rollback over a Store.
type Ledger struct {
	store      Store
	ttl        time.Duration
	allotments Allotments
	now        func() time.Time
}

// NewLedger creates a ledger whose reservations expire after ttl.
func NewLedger(store Store, ttl time.Duration, allotments Allotments) *Ledger {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Ledger{
		store:      store,
		ttl:        ttl,
		allotments: allotments,
		now:        time.Now,
	}
}

// Reserve debits amount credits from the user's ACTIVE account.
func (l *Ledger) Reserve(ctx context.Context, userID uint, amount int) (*Reservation, error) {
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("reservation amount must be positive, got %d", amount)
	}

	now := l.now()
	row := &entity.DbReservation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		ExpiresAt: now.Add(l.ttl),
	}
	outcome, err := l.store.ReserveCredits(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("reserve credits: %w", err)
	}
	if !outcome.Reserved {
		return nil, &InsufficientCreditsError{Required: amount, Available: outcome.Available}
	}

	res := &Reservation{
		ID:        row.ID,
		UserID:    userID,
		AccountID: row.QuotaAccountID,
		Amount:    amount,
		Metered:   row.Metered,
		ExpiresAt: row.ExpiresAt,
		Unlimited: !row.Metered,
	}
	if outcome.Account != nil {
		res.Remaining = outcome.Account.RemainingCredits
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        userID,
		"reservation_id": res.ID,
		"amount":         amount,
		"metered":        res.Metered,
		"remaining":      res.Remaining,
	}).Debug("credits_reserved")
	return res, nil
}

// Commit finalises a reservation. Committing twice is a no-op; committing a
// rolled back reservation returns ErrReservationResolved.
func (l *Ledger) Commit(ctx context.Context, reservationID string) error {
	row, _, err := l.store.CommitReservation(ctx, reservationID, l.now())
	if err != nil {
		return mapStoreError(err)
	}
	if row.Status != entity.ReservationStatusCommitted {
		return fmt.Errorf("commit %s: %w (status %s)", reservationID, ErrReservationResolved, row.Status)
	}
	return nil
}

// Rollback returns the reserved credits. Rolling back twice credits the
// account only once; rolling back a committed reservation returns ErrReservationResolved.
func (l *Ledger) Rollback(ctx context.Context, reservationID string) error {
	row, transitioned, err := l.store.RollbackReservation(ctx, reservationID, l.now())
	if err != nil {
		return mapStoreError(err)
	}
	if row.Status != entity.ReservationStatusRolledBack {
		return fmt.Errorf("rollback %s: %w (status %s)", reservationID, ErrReservationResolved, row.Status)
	}
	if transitioned {
		logrus.WithFields(logrus.Fields{
			"user_id":        row.UserID,
			"reservation_id": row.ID,
			"amount":         row.Amount,
			"metered":        row.Metered,
		}).Info("credits_rolled_back")
	}
	return nil
}

// Balance returns the user's ACTIVE account.
func (l *Ledger) Balance(ctx context.Context, userID uint) (*entity.DbQuotaAccount, error) {
	account, err := l.store.GetActiveQuotaAccount(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveAccount
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Activate starts a new subscription period for the user. When credits is nil
// the plan allotment is used.
func (l *Ledger) Activate(ctx context.Context, userID uint, plan string, credits *int, periodEnd *time.Time) (*entity.DbQuotaAccount, error) {
	normalized := entity.NormalizePlan(plan)
	if normalized == "" {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
	amount := l.allotments.For(normalized)
	if credits != nil {
		amount = *credits
	}
	if amount < 0 {
		return nil, fmt.Errorf("credits must not be negative")
	}

	account := &entity.DbQuotaAccount{
		UserID:           userID,
		Plan:             normalized,
		RemainingCredits: amount,
		PeriodStart:      l.now(),
		PeriodEnd:        periodEnd,
	}
	if err := l.store.ActivateQuotaAccount(ctx, account); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"account_id": account.ID,
		"plan":       normalized,
		"credits":    amount,
	}).Info("quota_account_activated")
	return account, nil
}

// Grant tops up a bounded account.
func (l *Ledger) Grant(ctx context.Context, accountID uint, amount int) (*entity.DbQuotaAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive")
	}
	account, err := l.store.GetQuotaAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Unbounded() {
		return nil, fmt.Errorf("account %d: %w", accountID, ErrUnboundedAccount)
	}
	return l.store.GrantCredits(ctx, accountID, amount)
}

func mapStoreError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrReservationNotFound
	}
	return err
}
