package sql_test

import (
	"artsheets/internal/entity"
	"artsheets/internal/model/modeltest"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReserveCreditsDebitsActiveAccount(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "a@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanBasic, 5)

	res := &entity.DbReservation{ID: "r-1", UserID: user.ID, Amount: 3, ExpiresAt: time.Now().Add(time.Minute)}
	outcome, err := repo.ReserveCredits(ctx, res)
	require.NoError(t, err)
	require.True(t, outcome.Reserved)
	assert.Equal(t, 2, outcome.Account.RemainingCredits)
	assert.Equal(t, account.ID, res.QuotaAccountID)
	assert.True(t, res.Metered)

	outcome, err = repo.ReserveCredits(ctx, &entity.DbReservation{ID: "r-2", UserID: user.ID, Amount: 3})
	require.NoError(t, err)
	assert.False(t, outcome.Reserved)
	assert.Equal(t, 2, outcome.Available)

	_, err = repo.GetReservation(ctx, "r-2")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), "refused reservation must not be stored")
}

func TestReserveCreditsWithoutAccount(t *testing.T) {
	repo := modeltest.NewRepository(t)
	user := modeltest.SeedUser(t, repo, "b@example.com", entity.UserRoleUser)

	outcome, err := repo.ReserveCredits(context.Background(), &entity.DbReservation{ID: "r-1", UserID: user.ID, Amount: 1})
	require.NoError(t, err)
	assert.False(t, outcome.Reserved)
	assert.Equal(t, 0, outcome.Available)
}

func TestReserveCreditsUnboundedPlan(t *testing.T) {
	repo := modeltest.NewRepository(t)
	user := modeltest.SeedUser(t, repo, "c@example.com", entity.UserRoleUser)
	modeltest.SeedAccount(t, repo, user.ID, entity.PlanUnlimited, 0)

	res := &entity.DbReservation{ID: "r-1", UserID: user.ID, Amount: 50}
	outcome, err := repo.ReserveCredits(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, outcome.Reserved)
	assert.False(t, res.Metered)
	assert.Equal(t, 0, outcome.Account.RemainingCredits)
}

func TestRollbackReservationRefundsOnce(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "d@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanFree, 4)

	_, err := repo.ReserveCredits(ctx, &entity.DbReservation{ID: "r-1", UserID: user.ID, Amount: 4})
	require.NoError(t, err)

	res, transitioned, err := repo.RollbackReservation(ctx, "r-1", time.Now())
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, entity.ReservationStatusRolledBack, res.Status)
	require.NotNil(t, res.ResolvedAt)

	_, transitioned, err = repo.RollbackReservation(ctx, "r-1", time.Now())
	require.NoError(t, err)
	assert.False(t, transitioned)

	reloaded, err := repo.GetQuotaAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.RemainingCredits)
}

func TestCommitThenRollbackKeepsDebit(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "e@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanFree, 4)

	_, err := repo.ReserveCredits(ctx, &entity.DbReservation{ID: "r-1", UserID: user.ID, Amount: 1})
	require.NoError(t, err)

	res, transitioned, err := repo.CommitReservation(ctx, "r-1", time.Now())
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, entity.ReservationStatusCommitted, res.Status)

	res, transitioned, err = repo.RollbackReservation(ctx, "r-1", time.Now())
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.Equal(t, entity.ReservationStatusCommitted, res.Status)

	reloaded, err := repo.GetQuotaAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.RemainingCredits)
}

func TestResolveUnknownReservation(t *testing.T) {
	repo := modeltest.NewRepository(t)
	_, _, err := repo.CommitReservation(context.Background(), "missing", time.Now())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestActivateQuotaAccountReplacesActive(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "f@example.com", entity.UserRoleUser)
	first := modeltest.SeedAccount(t, repo, user.ID, entity.PlanFree, 10)
	second := modeltest.SeedAccount(t, repo, user.ID, entity.PlanPremium, 500)

	active, err := repo.GetActiveQuotaAccount(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	old, err := repo.GetQuotaAccount(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuotaStatusInactive, old.Status)
	assert.NotNil(t, old.PeriodEnd)
}

func TestGrantCredits(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "g@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanBasic, 1)

	updated, err := repo.GrantCredits(ctx, account.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.RemainingCredits)

	_, err = repo.GrantCredits(ctx, 999, 1)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListExpiredReservations(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "h@example.com", entity.UserRoleUser)
	modeltest.SeedAccount(t, repo, user.ID, entity.PlanBasic, 10)
	now := time.Now()

	for _, r := range []*entity.DbReservation{
		{ID: "old", UserID: user.ID, Amount: 1, ExpiresAt: now.Add(-time.Minute)},
		{ID: "fresh", UserID: user.ID, Amount: 1, ExpiresAt: now.Add(time.Minute)},
		{ID: "resolved", UserID: user.ID, Amount: 1, ExpiresAt: now.Add(-time.Minute)},
	} {
		_, err := repo.ReserveCredits(ctx, r)
		require.NoError(t, err)
	}
	_, _, err := repo.CommitReservation(ctx, "resolved", now)
	require.NoError(t, err)

	expired, err := repo.ListExpiredReservations(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].ID)
}

func TestSheetsLifecycle(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	owner := modeltest.SeedUser(t, repo, "i@example.com", entity.UserRoleUser)
	other := modeltest.SeedUser(t, repo, "j@example.com", entity.UserRoleUser)

	modeltest.SeedAccount(t, repo, owner.ID, entity.PlanBasic, 10)
	modeltest.SeedAccount(t, repo, other.ID, entity.PlanBasic, 10)
	for _, r := range []*entity.DbReservation{
		{ID: "r-1", UserID: owner.ID, Amount: 2, ExpiresAt: time.Now().Add(time.Minute)},
		{ID: "r-2", UserID: other.ID, Amount: 1, ExpiresAt: time.Now().Add(time.Minute)},
	} {
		_, err := repo.ReserveCredits(ctx, r)
		require.NoError(t, err)
	}

	batch := []entity.DbSheet{
		{UserID: owner.ID, BatchOrdinal: 1, Title: "Food #1", Technique: "COLORING", Theme: "FOOD", AgeGroup: "PRESCHOOL", ImagePath: "a.png", PaperSize: "A4", Orientation: "portrait"},
		{UserID: owner.ID, BatchOrdinal: 2, Title: "Food #2", Technique: "MAZE", Theme: "FOOD", AgeGroup: "PRESCHOOL", ImagePath: "b.png", PaperSize: "A4", Orientation: "portrait"},
	}
	committed, err := repo.CommitSheets(ctx, "r-1", batch, time.Now())
	require.NoError(t, err)
	require.True(t, committed)
	require.NotZero(t, batch[0].ID)
	assert.Equal(t, "r-1", batch[1].ReservationID)
	committed, err = repo.CommitSheets(ctx, "r-2", []entity.DbSheet{
		{UserID: other.ID, Title: "Other", Technique: "MAZE", Theme: "SPACE", AgeGroup: "TEEN", ImagePath: "c.png", PaperSize: "A4", Orientation: "portrait"},
	}, time.Now())
	require.NoError(t, err)
	require.True(t, committed)

	res, err := repo.GetReservation(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusCommitted, res.Status)

	sheets, meta, err := repo.ListSheets(ctx, &entity.SheetQuery{UserID: owner.ID, Technique: "maze"})
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.EqualValues(t, 1, meta.Total)

	all, meta, err := repo.ListSheets(ctx, &entity.SheetQuery{IncludeAll: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.EqualValues(t, 3, meta.Total)
	require.NotNil(t, all[0].User)

	title := "Renamed"
	favorite := true
	require.NoError(t, repo.UpdateSheet(ctx, batch[0].ID, entity.SheetUpdates{Title: &title, IsFavorite: &favorite}))
	sheet, err := repo.GetSheet(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", sheet.Title)
	assert.True(t, sheet.IsFavorite)

	require.NoError(t, repo.DeleteSheet(ctx, batch[0].ID))
	assert.True(t, errors.Is(repo.DeleteSheet(ctx, batch[0].ID), gorm.ErrRecordNotFound))
}

func TestCommitSheetsRequiresPendingReservation(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	user := modeltest.SeedUser(t, repo, "m@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanBasic, 10)

	_, err := repo.ReserveCredits(ctx, &entity.DbReservation{ID: "late", UserID: user.ID, Amount: 3, ExpiresAt: time.Now()})
	require.NoError(t, err)
	_, rolledBack, err := repo.RollbackReservation(ctx, "late", time.Now())
	require.NoError(t, err)
	require.True(t, rolledBack)

	sheet := entity.DbSheet{UserID: user.ID, Title: "Late", Technique: "MAZE", Theme: "SPACE", AgeGroup: "TEEN", ImagePath: "late.png", PaperSize: "A4", Orientation: "portrait"}
	tests := []struct {
		name          string
		reservationID string
	}{
		{name: "已回滚", reservationID: "late"},
		{name: "不存在", reservationID: "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			committed, err := repo.CommitSheets(ctx, tt.reservationID, []entity.DbSheet{sheet}, time.Now())
			require.NoError(t, err)
			assert.False(t, committed)
		})
	}

	_, meta, err := repo.ListSheets(ctx, &entity.SheetQuery{IncludeAll: true})
	require.NoError(t, err)
	assert.Zero(t, meta.Total)
	res, err := repo.GetReservation(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationStatusRolledBack, res.Status)
	reloaded, err := repo.GetQuotaAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, reloaded.RemainingCredits)
}

func TestListUserIDsWithoutActiveQuota(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	with := modeltest.SeedUser(t, repo, "k@example.com", entity.UserRoleUser)
	without := modeltest.SeedUser(t, repo, "l@example.com", entity.UserRoleUser)
	modeltest.SeedAccount(t, repo, with.ID, entity.PlanFree, 10)

	ids, err := repo.ListUserIDsWithoutActiveQuota(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{without.ID}, ids)
}
