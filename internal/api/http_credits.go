package api

import (
	"artsheets/internal/catalog"
	"artsheets/internal/entity"
	"artsheets/internal/entity/converter"
	"artsheets/internal/quota"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetCatalog 返回可选的技法、主题、年龄段、纸张与方向
func (h *HTTPHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"catalog":      catalog.All(),
		"max_quantity": h.cfg.GenerationMaxQuantity,
	})
}

// GetCredits 返回当前用户的额度快照
func (h *HTTPHandler) GetCredits(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	account, err := h.ledger.Balance(ctx, requestUser.ID)
	if err != nil {
		if errors.Is(err, quota.ErrNoActiveAccount) {
			NotFound(c, ErrCodeQuotaAccountNotFound, "no active quota account")
			return
		}
		logrus.WithError(err).WithField("user_id", requestUser.ID).Error("failed to load credits")
		InternalError(c, "failed to load credits")
		return
	}
	c.JSON(http.StatusOK, converter.QuotaAccountToSnapshot(account))
}

// creditSnapshot 登录响应附带的额度，没有可用账户时返回 nil
func (h *HTTPHandler) creditSnapshot(ctx context.Context, userID uint) *entity.CreditSnapshot {
	account, err := h.ledger.Balance(ctx, userID)
	if err != nil {
		if !errors.Is(err, quota.ErrNoActiveAccount) {
			logrus.WithError(err).WithField("user_id", userID).Warn("failed to load credit snapshot")
		}
		return nil
	}
	return converter.QuotaAccountToSnapshot(account)
}

// ActivateQuotaAccount 为用户开通新的订阅周期，原有账户失效
func (h *HTTPHandler) ActivateQuotaAccount(c *gin.Context) {
	var req entity.QuotaAccountActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	plan := entity.NormalizePlan(req.Plan)
	if plan == "" {
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown plan", gin.H{"field": "plan"})
		return
	}
	if req.Credits != nil && *req.Credits < 0 {
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, "credits must not be negative", gin.H{"field": "credits"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.repo.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "user not found")
			return
		}
		logrus.WithError(err).WithField("user_id", req.UserID).Error("failed to load user for quota activation")
		InternalError(c, "failed to activate quota account")
		return
	}

	account, err := h.ledger.Activate(ctx, req.UserID, plan, req.Credits, req.PeriodEnd)
	if err != nil {
		logrus.WithError(err).WithField("user_id", req.UserID).Error("failed to activate quota account")
		InternalError(c, "failed to activate quota account")
		return
	}
	c.JSON(http.StatusCreated, converter.QuotaAccountToSnapshot(account))
}

// GrantCredits 为有限额度账户补充额度
func (h *HTTPHandler) GrantCredits(c *gin.Context) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid quota account id")
		return
	}

	var req entity.QuotaGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if req.Amount <= 0 {
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, "amount must be positive", gin.H{"field": "amount"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	account, err := h.ledger.Grant(ctx, uint(id), req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, ErrCodeQuotaAccountNotFound, "quota account not found")
		case errors.Is(err, quota.ErrUnboundedAccount):
			BadRequest(c, ErrCodeInvalidRequest, "unlimited accounts cannot be topped up")
		default:
			logrus.WithError(err).WithField("account_id", id).Error("failed to grant credits")
			InternalError(c, "failed to grant credits")
		}
		return
	}

	logrus.WithFields(logrus.Fields{
		"account_id": account.ID,
		"amount":     req.Amount,
		"remaining":  account.RemainingCredits,
	}).Info("credits_granted")
	c.JSON(http.StatusOK, converter.QuotaAccountToSnapshot(account))
}

// ListReservations 查看额度预留记录
func (h *HTTPHandler) ListReservations(c *gin.Context) {
	var query entity.ReservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	query.Normalize(20, 100)
	query.Status = strings.ToLower(strings.TrimSpace(query.Status))
	switch query.Status {
	case "", entity.ReservationStatusReserved, entity.ReservationStatusCommitted, entity.ReservationStatusRolledBack:
	default:
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown reservation status", gin.H{"field": "status"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, meta, err := h.repo.ListReservations(ctx, &query)
	if err != nil {
		logrus.WithError(err).Error("failed to list reservations")
		InternalError(c, "failed to load reservations")
		return
	}
	c.JSON(http.StatusOK, entity.ReservationListResponse{Reservations: rows, Meta: meta})
}
