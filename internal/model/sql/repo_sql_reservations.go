package sql

import (
	"artsheets/internal/entity"
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CommitReservation moves a reservation from reserved to committed.
// The returned bool reports whether this call performed the transition.
func (r *GormRepository) CommitReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error) {
	return r.resolveReservation(ctx, id, entity.ReservationStatusCommitted, at)
}

// RollbackReservation moves a reservation from reserved to rolled_back and
// returns the metered amount to the issuing account in the same transaction.
func (r *GormRepository) RollbackReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error) {
	return r.resolveReservation(ctx, id, entity.ReservationStatusRolledBack, at)
}

func (r *GormRepository) resolveReservation(ctx context.Context, id, target string, at time.Time) (*entity.DbReservation, bool, error) {
	if r == nil || r.db == nil {
		return nil, false, fmt.Errorf("repository not initialised")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, fmt.Errorf("invalid reservation id")
	}

	var (
		reservation  entity.DbReservation
		transitioned bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbReservation{}).
			Where("id = ? AND status = ?", id, entity.ReservationStatusReserved).
			Updates(map[string]interface{}{
				"status":      target,
				"resolved_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		transitioned = result.RowsAffected == 1

		if err := tx.Where("id = ?", id).First(&reservation).Error; err != nil {
			return err
		}

		if transitioned && target == entity.ReservationStatusRolledBack && reservation.Metered {
			refund := tx.Model(&entity.DbQuotaAccount{}).
				Where("id = ?", reservation.QuotaAccountID).
				Update("remaining_credits", gorm.Expr("remaining_credits + ?", reservation.Amount))
			if refund.Error != nil {
				return refund.Error
			}
			if refund.RowsAffected == 0 {
				return fmt.Errorf("quota account %d missing for reservation %s", reservation.QuotaAccountID, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &reservation, transitioned, nil
}

// GetReservation loads a reservation by ID.
func (r *GormRepository) GetReservation(ctx context.Context, id string) (*entity.DbReservation, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("invalid reservation id")
	}
	var reservation entity.DbReservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ListReservations returns paginated reservations, newest first.
func (r *GormRepository) ListReservations(ctx context.Context, params *entity.ReservationQuery) ([]entity.DbReservation, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbReservation{})
	var base *entity.BaseParams
	if params != nil {
		if status := strings.TrimSpace(params.Status); status != "" {
			query = query.Where("status = ?", status)
		}
		if params.UserID > 0 {
			query = query.Where("user_id = ?", params.UserID)
		}
		base = &params.BaseParams
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	paged, page, pageSize := paginate(query.Order("created_at DESC"), base)
	var reservations []entity.DbReservation
	if err := paged.Find(&reservations).Error; err != nil {
		return nil, nil, err
	}
	return reservations, r.calculatePagination(total, page, pageSize), nil
}

// ListExpiredReservations returns unresolved reservations whose expiry is before the given time.
func (r *GormRepository) ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]entity.DbReservation, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	var reservations []entity.DbReservation
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", entity.ReservationStatusReserved, before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}
