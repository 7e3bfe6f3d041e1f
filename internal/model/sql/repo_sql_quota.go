package sql

import (
	"artsheets/internal/entity"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ActivateQuotaAccount deactivates the user's current accounts and stores account as the ACTIVE one.
func (r *GormRepository) ActivateQuotaAccount(ctx context.Context, account *entity.DbQuotaAccount) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if account == nil || account.UserID == 0 {
		return fmt.Errorf("invalid quota account")
	}
	if account.RemainingCredits < 0 {
		return fmt.Errorf("remaining credits must not be negative")
	}

	now := time.Now()
	if account.PeriodStart.IsZero() {
		account.PeriodStart = now
	}
	account.Status = entity.QuotaStatusActive

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.DbQuotaAccount{}).
			Where("user_id = ? AND status = ?", account.UserID, entity.QuotaStatusActive).
			Updates(map[string]interface{}{
				"status":     entity.QuotaStatusInactive,
				"period_end": now,
			}).Error; err != nil {
			return err
		}
		return tx.Create(account).Error
	})
}

// GetActiveQuotaAccount returns the most recent ACTIVE account of a user.
func (r *GormRepository) GetActiveQuotaAccount(ctx context.Context, userID uint) (*entity.DbQuotaAccount, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if userID == 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	var account entity.DbQuotaAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, entity.QuotaStatusActive).
		Order("id DESC").
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetQuotaAccount loads an account by ID regardless of status.
func (r *GormRepository) GetQuotaAccount(ctx context.Context, id uint) (*entity.DbQuotaAccount, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid quota account id")
	}
	var account entity.DbQuotaAccount
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GrantCredits adds amount to an account's remaining credits.
func (r *GormRepository) GrantCredits(ctx context.Context, accountID uint, amount int) (*entity.DbQuotaAccount, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if accountID == 0 {
		return nil, fmt.Errorf("invalid quota account id")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("grant amount must be positive")
	}

	var account entity.DbQuotaAccount
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbQuotaAccount{}).
			Where("id = ?", accountID).
			Update("remaining_credits", gorm.Expr("remaining_credits + ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.First(&account, accountID).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

const maxReserveAttempts = 3

// ReserveCredits atomically decrements the user's active account and stores the reservation.
// The decrement is a conditional update so concurrent callers can never drive the balance below zero.
func (r *GormRepository) ReserveCredits(ctx context.Context, reservation *entity.DbReservation) (entity.ReserveOutcome, error) {
	var outcome entity.ReserveOutcome
	if r == nil || r.db == nil {
		return outcome, fmt.Errorf("repository not initialised")
	}
	if reservation == nil || reservation.ID == "" || reservation.UserID == 0 {
		return outcome, fmt.Errorf("invalid reservation")
	}
	if reservation.Amount <= 0 {
		return outcome, fmt.Errorf("reservation amount must be positive")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 账户在读取与扣减之间被重新开通时，改为从新的 ACTIVE 账户扣减
		for attempt := 0; attempt < maxReserveAttempts; attempt++ {
			var account entity.DbQuotaAccount
			err := tx.Where("user_id = ? AND status = ?", reservation.UserID, entity.QuotaStatusActive).
				Order("id DESC").
				First(&account).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			reservation.QuotaAccountID = account.ID
			reservation.Metered = !account.Unbounded()
			reservation.Status = entity.ReservationStatusReserved

			if reservation.Metered {
				result := tx.Model(&entity.DbQuotaAccount{}).
					Where("id = ? AND status = ? AND remaining_credits >= ?", account.ID, entity.QuotaStatusActive, reservation.Amount).
					Update("remaining_credits", gorm.Expr("remaining_credits - ?", reservation.Amount))
				if result.Error != nil {
					return result.Error
				}
				if result.RowsAffected == 0 {
					var current entity.DbQuotaAccount
					if err := tx.First(&current, account.ID).Error; err != nil {
						return err
					}
					if current.Status != entity.QuotaStatusActive {
						continue
					}
					outcome.Available = current.RemainingCredits
					return nil
				}
			}

			if err := tx.Create(reservation).Error; err != nil {
				return err
			}
			var updated entity.DbQuotaAccount
			if err := tx.First(&updated, account.ID).Error; err != nil {
				return err
			}
			outcome.Reserved = true
			outcome.Available = updated.RemainingCredits
			outcome.Account = &updated
			return nil
		}
		return nil
	})
	if err != nil {
		return entity.ReserveOutcome{}, err
	}
	return outcome, nil
}
