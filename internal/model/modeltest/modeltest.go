// Package modeltest opens throwaway SQLite repositories for package tests.
package modeltest

import (
	"artsheets/internal/entity"
	sqlrepo "artsheets/internal/model/sql"
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// NewRepository returns a migrated in-memory repository that is closed when the test ends.
func NewRepository(t testing.TB) *sqlrepo.GormRepository {
	t.Helper()
	return sqlrepo.NewGormRepository(NewDB(t))
}

// NewDB returns the migrated in-memory database behind NewRepository, for
// tests that register GORM callbacks.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// :memory: databases are per connection
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := sqlrepo.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts an active user.
func SeedUser(t testing.TB, repo *sqlrepo.GormRepository, email, role string) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:        email,
		DisplayName:  email,
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// SeedAccount activates a quota account for userID.
func SeedAccount(t testing.TB, repo *sqlrepo.GormRepository, userID uint, plan string, credits int) *entity.DbQuotaAccount {
	t.Helper()
	account := &entity.DbQuotaAccount{
		UserID:           userID,
		Plan:             plan,
		RemainingCredits: credits,
		PeriodStart:      time.Now(),
	}
	if err := repo.ActivateQuotaAccount(context.Background(), account); err != nil {
		t.Fatalf("activate account: %v", err)
	}
	return account
}
