package model

import (
	"artsheets/internal/entity"
	"context"
	"time"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 用户管理
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	DeleteUser(ctx context.Context, id uint) error
	CountUsers(ctx context.Context) (int64, error)
	ListUserIDsWithoutActiveQuota(ctx context.Context) ([]uint, error)

	// 额度账户
	ActivateQuotaAccount(ctx context.Context, account *entity.DbQuotaAccount) error
	GetActiveQuotaAccount(ctx context.Context, userID uint) (*entity.DbQuotaAccount, error)
	GetQuotaAccount(ctx context.Context, id uint) (*entity.DbQuotaAccount, error)
	GrantCredits(ctx context.Context, accountID uint, amount int) (*entity.DbQuotaAccount, error)

	// 额度预留
	ReserveCredits(ctx context.Context, reservation *entity.DbReservation) (entity.ReserveOutcome, error)
	CommitReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error)
	RollbackReservation(ctx context.Context, id string, at time.Time) (*entity.DbReservation, bool, error)
	GetReservation(ctx context.Context, id string) (*entity.DbReservation, error)
	ListReservations(ctx context.Context, params *entity.ReservationQuery) ([]entity.DbReservation, *entity.Meta, error)
	ListExpiredReservations(ctx context.Context, before time.Time, limit int) ([]entity.DbReservation, error)

	// 工作表
	CommitSheets(ctx context.Context, reservationID string, sheets []entity.DbSheet, at time.Time) (bool, error)
	GetSheet(ctx context.Context, id uint) (*entity.DbSheet, error)
	ListSheets(ctx context.Context, params *entity.SheetQuery) ([]entity.DbSheet, *entity.Meta, error)
	UpdateSheet(ctx context.Context, id uint, updates entity.SheetUpdates) error
	DeleteSheet(ctx context.Context, id uint) error
}
