package sql

import (
	"artsheets/internal/entity"
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CommitSheets stores a batch and commits the reservation that paid for it
// in one transaction. It returns false and stores nothing when the
// reservation is no longer reserved.
func (r *GormRepository) CommitSheets(ctx context.Context, reservationID string, sheets []entity.DbSheet, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return false, fmt.Errorf("invalid reservation id")
	}
	if len(sheets) == 0 {
		return false, fmt.Errorf("no sheets to create")
	}

	committed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbReservation{}).
			Where("id = ? AND status = ?", reservationID, entity.ReservationStatusReserved).
			Updates(map[string]interface{}{
				"status":      entity.ReservationStatusCommitted,
				"resolved_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		for i := range sheets {
			sheets[i].ReservationID = reservationID
		}
		if err := tx.Create(&sheets).Error; err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return committed, nil
}

// GetSheet loads a sheet with its owner.
func (r *GormRepository) GetSheet(ctx context.Context, id uint) (*entity.DbSheet, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid sheet id")
	}
	var sheet entity.DbSheet
	if err := r.db.WithContext(ctx).Preload("User").First(&sheet, id).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

// ListSheets returns paginated sheets. Unless IncludeAll is set only the sheets of UserID are listed.
func (r *GormRepository) ListSheets(ctx context.Context, params *entity.SheetQuery) ([]entity.DbSheet, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}
	if params == nil {
		params = &entity.SheetQuery{}
	}

	query := r.db.WithContext(ctx).Model(&entity.DbSheet{})
	if !params.IncludeAll || params.UserID > 0 {
		query = query.Where("user_id = ?", params.UserID)
	}
	if technique := strings.TrimSpace(params.Technique); technique != "" {
		query = query.Where("technique = ?", strings.ToUpper(technique))
	}
	if theme := strings.TrimSpace(params.Theme); theme != "" {
		query = query.Where("theme = ?", strings.ToUpper(theme))
	}
	if params.Favorite {
		query = query.Where("is_favorite = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	order := "id DESC"
	switch params.SortBy {
	case "title":
		order = "title"
	case "difficulty":
		order = "difficulty"
	case "created_at":
		order = "created_at"
	}
	if order != "id DESC" {
		if params.SortDesc {
			order += " DESC"
		} else {
			order += " ASC"
		}
		order += ", id DESC"
	}

	paged, page, pageSize := paginate(query.Order(order), &params.BaseParams)
	if params.IncludeAll {
		paged = paged.Preload("User")
	}

	var sheets []entity.DbSheet
	if err := paged.Find(&sheets).Error; err != nil {
		return nil, nil, err
	}
	return sheets, r.calculatePagination(total, page, pageSize), nil
}

// UpdateSheet applies user-editable metadata changes.
func (r *GormRepository) UpdateSheet(ctx context.Context, id uint, updates entity.SheetUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid sheet id")
	}
	if updates.IsEmpty() {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&entity.DbSheet{}).Where("id = ?", id).Updates(updates.ToMap())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSheet removes a sheet record. Stored images are left to the caller.
func (r *GormRepository) DeleteSheet(ctx context.Context, id uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return fmt.Errorf("invalid sheet id")
	}
	result := r.db.WithContext(ctx).Delete(&entity.DbSheet{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
