package service_test

import (
	"artsheets/internal/catalog"
	"artsheets/internal/entity"
	"artsheets/internal/llm"
	sqlrepo "artsheets/internal/model/sql"
	"artsheets/internal/model/modeltest"
	"artsheets/internal/quota"
	"artsheets/internal/service"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	calls    atomic.Int32
	generate func(ctx context.Context, spec catalog.Spec, count int) ([]llm.GeneratedImage, error)
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, spec catalog.Spec, count int) ([]llm.GeneratedImage, error) {
	f.calls.Add(1)
	if f.generate != nil {
		return f.generate(ctx, spec, count)
	}
	return sampleImages(count), nil
}

func sampleImages(count int) []llm.GeneratedImage {
	images := make([]llm.GeneratedImage, count)
	for i := range images {
		images[i] = llm.GeneratedImage{
			Ordinal:       i + 1,
			Prompt:        fmt.Sprintf("prompt %d", i+1),
			ImagePath:     fmt.Sprintf("sheets/img-%d.png", i+1),
			ThumbnailPath: fmt.Sprintf("thumbnails/img-%d.png", i+1),
		}
	}
	return images
}

type failingSheetStore struct{}

func (failingSheetStore) CommitSheets(context.Context, string, []entity.DbSheet, time.Time) (bool, error) {
	return false, errors.New("disk full")
}

// stuckLedger reserves normally but cannot return credits.
type stuckLedger struct {
	*quota.Ledger
}

func (stuckLedger) Rollback(context.Context, string) error {
	return errors.New("connection reset")
}

type fixture struct {
	repo      *sqlrepo.GormRepository
	ledger    *quota.Ledger
	generator *fakeGenerator
	svc       *service.GenerationService
	userID    uint
	accountID uint
}

func newFixture(t *testing.T, plan string, credits int, store service.SheetStore) *fixture {
	t.Helper()
	return newFixtureWithTTL(t, plan, credits, store, time.Minute)
}

func newFixtureWithTTL(t *testing.T, plan string, credits int, store service.SheetStore, ttl time.Duration) *fixture {
	t.Helper()
	repo := modeltest.NewRepository(t)
	user := modeltest.SeedUser(t, repo, "parent@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, plan, credits)

	if store == nil {
		store = repo
	}
	gen := &fakeGenerator{}
	ledger := quota.NewLedger(repo, ttl, quota.Allotments{})
	svc := service.NewGenerationService(
		catalog.NewValidator(10),
		ledger,
		gen,
		service.NewRecorder(store),
		service.Options{Timeout: 200 * time.Millisecond},
	)
	return &fixture{repo: repo, ledger: ledger, generator: gen, svc: svc, userID: user.ID, accountID: account.ID}
}

func (f *fixture) remaining(t *testing.T) int {
	t.Helper()
	account, err := f.repo.GetQuotaAccount(context.Background(), f.accountID)
	require.NoError(t, err)
	return account.RemainingCredits
}

func (f *fixture) reservations(t *testing.T) []entity.DbReservation {
	t.Helper()
	rows, _, err := f.repo.ListReservations(context.Background(), &entity.ReservationQuery{})
	require.NoError(t, err)
	return rows
}

func (f *fixture) sheetCount(t *testing.T) int64 {
	t.Helper()
	_, meta, err := f.repo.ListSheets(context.Background(), &entity.SheetQuery{IncludeAll: true})
	require.NoError(t, err)
	return meta.Total
}

func oceanInput(quantity int) catalog.Input {
	return catalog.Input{
		Technique:   "COLORING",
		Theme:       "OCEAN",
		SubTheme:    "Dolphins",
		AgeGroup:    "PRESCHOOL",
		Quantity:    &quantity,
		PaperSize:   "A4",
		Orientation: "portrait",
	}
}

func TestGenerateDebitsOneCreditPerSheet(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)

	res, err := f.svc.Generate(context.Background(), f.userID, oceanInput(3))
	require.NoError(t, err)
	require.Len(t, res.Sheets, 3)
	require.Len(t, res.Images, 3)
	require.NotNil(t, res.RemainingCredits)
	assert.Equal(t, 7, *res.RemainingCredits)
	assert.False(t, res.Unlimited)
	assert.Equal(t, 7, f.remaining(t))
	assert.EqualValues(t, 3, f.sheetCount(t))

	rows := f.reservations(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ReservationStatusCommitted, rows[0].Status)
}

func TestGenerateRecordsRequestFields(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)
	complexity := 80
	in := oceanInput(2)
	in.Complexity = &complexity
	in.Orientation = "landscape"

	res, err := f.svc.Generate(context.Background(), f.userID, in)
	require.NoError(t, err)

	for i, sheet := range res.Sheets {
		stored, err := f.repo.GetSheet(context.Background(), sheet.ID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Ocean Life: Dolphins #%d", i+1), stored.Title)
		assert.Equal(t, "COLORING", stored.Technique)
		assert.Equal(t, "OCEAN", stored.Theme)
		assert.Equal(t, "PRESCHOOL", stored.AgeGroup)
		assert.Equal(t, 80, stored.Complexity)
		assert.Equal(t, catalog.Difficulty(80), stored.Difficulty)
		assert.Equal(t, "landscape", stored.Orientation)
		assert.Equal(t, res.Images[i].ImagePath, stored.ImagePath)
		assert.Equal(t, f.userID, stored.UserID)
		assert.Equal(t, i+1, stored.BatchOrdinal)
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	f := newFixture(t, entity.PlanFree, 2, nil)

	_, err := f.svc.Generate(context.Background(), f.userID, oceanInput(5))
	var insufficient *quota.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, 5, insufficient.Required)
	assert.Equal(t, 2, insufficient.Available)

	assert.Equal(t, 2, f.remaining(t))
	assert.Zero(t, f.generator.calls.Load())
	assert.Empty(t, f.reservations(t))
}

func TestGenerateBackendFailureRestoresCredits(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)
	f.generator.generate = func(context.Context, catalog.Spec, int) ([]llm.GeneratedImage, error) {
		return nil, &llm.GenerationBackendError{Backend: "fake", Cause: errors.New("content policy")}
	}

	_, err := f.svc.Generate(context.Background(), f.userID, oceanInput(4))
	var backendErr *llm.GenerationBackendError
	require.True(t, errors.As(err, &backendErr))

	assert.Equal(t, 10, f.remaining(t))
	assert.Zero(t, f.sheetCount(t))
	rows := f.reservations(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ReservationStatusRolledBack, rows[0].Status)
}

func TestGenerateWrapsPlainGeneratorErrors(t *testing.T) {
	tests := []struct {
		name     string
		generate func(context.Context, catalog.Spec, int) ([]llm.GeneratedImage, error)
	}{
		{
			name: "普通错误",
			generate: func(context.Context, catalog.Spec, int) ([]llm.GeneratedImage, error) {
				return nil, errors.New("boom")
			},
		},
		{
			name: "数量不足",
			generate: func(_ context.Context, _ catalog.Spec, count int) ([]llm.GeneratedImage, error) {
				return []llm.GeneratedImage{{Ordinal: 1, ImagePath: "sheets/a.png"}}, nil
			},
		},
		{
			name: "超时",
			generate: func(ctx context.Context, _ catalog.Spec, _ int) ([]llm.GeneratedImage, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, entity.PlanBasic, 10, nil)
			f.generator.generate = tt.generate

			_, err := f.svc.Generate(context.Background(), f.userID, oceanInput(3))
			var backendErr *llm.GenerationBackendError
			require.True(t, errors.As(err, &backendErr), "got %v", err)
			assert.Equal(t, "fake", backendErr.Backend)
			assert.Equal(t, 10, f.remaining(t))
			assert.Zero(t, f.sheetCount(t))
		})
	}
}

func TestGenerateRejectsInvalidRequestBeforeReserving(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)
	in := oceanInput(1)
	in.Technique = "UNKNOWN_TECH"

	_, err := f.svc.Generate(context.Background(), f.userID, in)
	var invalid *catalog.InvalidRequestError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "technique", invalid.Field)

	assert.Zero(t, f.generator.calls.Load())
	assert.Empty(t, f.reservations(t))
	assert.Equal(t, 10, f.remaining(t))
}

func TestGeneratePersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, failingSheetStore{})

	_, err := f.svc.Generate(context.Background(), f.userID, oceanInput(3))
	var persistErr *service.PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, 3, persistErr.GeneratedCount)
	assert.True(t, persistErr.Refunded)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 10, f.remaining(t))
	rows := f.reservations(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ReservationStatusRolledBack, rows[0].Status)
}

func TestGenerateUnlimitedPlanIsNotMetered(t *testing.T) {
	f := newFixture(t, entity.PlanUnlimited, 0, nil)

	res, err := f.svc.Generate(context.Background(), f.userID, oceanInput(5))
	require.NoError(t, err)
	assert.True(t, res.Unlimited)
	assert.Nil(t, res.RemainingCredits)
	assert.Len(t, res.Sheets, 5)
	assert.Equal(t, 0, f.remaining(t))
}

func TestGenerateRequiresUser(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)

	_, err := f.svc.Generate(context.Background(), 0, oceanInput(1))
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
	assert.Zero(t, f.generator.calls.Load())
}

func TestGenerateWithoutAccount(t *testing.T) {
	f := newFixture(t, entity.PlanBasic, 10, nil)
	other := modeltest.SeedUser(t, f.repo, "nobody@example.com", entity.UserRoleUser)

	_, err := f.svc.Generate(context.Background(), other.ID, oceanInput(1))
	var insufficient *quota.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 0, insufficient.Available)
}

func TestRecorderRejectsEmptyBatch(t *testing.T) {
	repo := modeltest.NewRepository(t)
	rec := service.NewRecorder(repo)

	_, err := rec.Record(context.Background(), 1, "r-1", catalog.Spec{Theme: catalog.ThemeOcean}, nil)
	var persistErr *service.PersistenceError
	assert.True(t, errors.As(err, &persistErr))
}

func TestGenerateAfterSweeperReleasedReservation(t *testing.T) {
	f := newFixtureWithTTL(t, entity.PlanBasic, 10, nil, 20*time.Millisecond)
	f.generator.generate = func(ctx context.Context, _ catalog.Spec, count int) ([]llm.GeneratedImage, error) {
		time.Sleep(60 * time.Millisecond)
		report, err := f.ledger.ReleaseExpired(ctx, time.Now())
		if err != nil {
			return nil, err
		}
		if report.RolledBack != 1 {
			return nil, fmt.Errorf("expected one released reservation, got %+v", report)
		}
		return sampleImages(count), nil
	}

	res, err := f.svc.Generate(context.Background(), f.userID, oceanInput(3))
	assert.Nil(t, res)
	var persistErr *service.PersistenceError
	require.True(t, errors.As(err, &persistErr), "got %v", err)
	assert.ErrorIs(t, err, quota.ErrReservationResolved)
	assert.Equal(t, 3, persistErr.GeneratedCount)
	assert.True(t, persistErr.Refunded)

	assert.Equal(t, 10, f.remaining(t))
	assert.Zero(t, f.sheetCount(t))
	rows := f.reservations(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.ReservationStatusRolledBack, rows[0].Status)
}

func TestSweeperLeavesCommittedGenerationAlone(t *testing.T) {
	f := newFixtureWithTTL(t, entity.PlanBasic, 10, nil, 20*time.Millisecond)

	res, err := f.svc.Generate(context.Background(), f.userID, oceanInput(3))
	require.NoError(t, err)
	assert.Equal(t, 7, *res.RemainingCredits)

	report, err := f.ledger.ReleaseExpired(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.RolledBack)
	assert.Equal(t, 7, f.remaining(t))
	assert.EqualValues(t, 3, f.sheetCount(t))
}

func TestGenerateReportsFailedRefund(t *testing.T) {
	repo := modeltest.NewRepository(t)
	user := modeltest.SeedUser(t, repo, "parent@example.com", entity.UserRoleUser)
	account := modeltest.SeedAccount(t, repo, user.ID, entity.PlanBasic, 10)
	svc := service.NewGenerationService(
		catalog.NewValidator(10),
		stuckLedger{quota.NewLedger(repo, time.Minute, quota.Allotments{})},
		&fakeGenerator{},
		service.NewRecorder(failingSheetStore{}),
		service.Options{Timeout: 200 * time.Millisecond, RollbackTimeout: 50 * time.Millisecond},
	)

	_, err := svc.Generate(context.Background(), user.ID, oceanInput(2))
	var persistErr *service.PersistenceError
	require.True(t, errors.As(err, &persistErr), "got %v", err)
	assert.False(t, persistErr.Refunded)

	reloaded, err := repo.GetQuotaAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, reloaded.RemainingCredits, "credits stay reserved until the sweeper releases them")
}

func TestCheckReservationTTL(t *testing.T) {
	opts := service.Options{Timeout: 3 * time.Minute}
	assert.Equal(t, 3*time.Minute+40*time.Second, opts.ReservationWindow())

	tests := []struct {
		name    string
		ttl     time.Duration
		wantErr bool
	}{
		{name: "足够长", ttl: 15 * time.Minute},
		{name: "等于窗口", ttl: 3*time.Minute + 40*time.Second, wantErr: true},
		{name: "短于生成超时", ttl: time.Minute, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := opts.CheckReservationTTL(tt.ttl)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
