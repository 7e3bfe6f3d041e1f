package model

import (
	"artsheets/internal/entity"
	"context"
	"fmt"
	"time"
)

// SeedQuotaAccounts 为没有有效额度账户的用户补建 FREE 账户，返回补建数量。
func SeedQuotaAccounts(ctx context.Context, repo Repository, freeCredits int) (int, error) {
	if repo == nil {
		return 0, nil
	}
	if freeCredits < 0 {
		return 0, fmt.Errorf("free credits must not be negative")
	}

	userIDs, err := repo.ListUserIDsWithoutActiveQuota(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, userID := range userIDs {
		account := &entity.DbQuotaAccount{
			UserID:           userID,
			Plan:             entity.PlanFree,
			RemainingCredits: freeCredits,
			PeriodStart:      time.Now(),
		}
		if err := repo.ActivateQuotaAccount(ctx, account); err != nil {
			return created, fmt.Errorf("seed quota account for user %d: %w", userID, err)
		}
		created++
	}
	return created, nil
}
