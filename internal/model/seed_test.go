package model

import (
	"artsheets/internal/entity"
	"artsheets/internal/model/modeltest"
	"context"
	"testing"
)

func TestSeedQuotaAccounts(t *testing.T) {
	repo := modeltest.NewRepository(t)
	ctx := context.Background()
	covered := modeltest.SeedUser(t, repo, "covered@example.com", entity.UserRoleUser)
	modeltest.SeedAccount(t, repo, covered.ID, entity.PlanPremium, 500)
	bare := modeltest.SeedUser(t, repo, "bare@example.com", entity.UserRoleUser)

	created, err := SeedQuotaAccounts(ctx, repo, 10)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 account to be created, got %d", created)
	}

	account, err := repo.GetActiveQuotaAccount(ctx, bare.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account.Plan != entity.PlanFree || account.RemainingCredits != 10 {
		t.Errorf("unexpected seeded account: %+v", account)
	}

	again, err := SeedQuotaAccounts(ctx, repo, 10)
	if err != nil || again != 0 {
		t.Errorf("second run should be a no-op, got %d, %v", again, err)
	}
}
