package api

import (
	"artsheets/internal/auth"
	"artsheets/internal/entity"
	"artsheets/internal/entity/converter"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func (h *HTTPHandler) Register(c *gin.Context) {
	var req entity.AuthRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration payload"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	count, err := h.repo.CountUsers(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count users during registration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process registration"})
		return
	}

	// 第一个注册的用户成为超级管理员
	role := entity.UserRoleUser
	if count == 0 {
		role = entity.UserRoleSuperAdmin
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)

	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), gin.H{"field": "password"})
			return
		}
		logrus.WithError(err).Error("failed to hash password")
		InternalError(c, "failed to register user")
		return
	}

	user := &entity.DbUser{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         role,
		IsActive:     true,
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			BadRequest(c, ErrCodeEmailExists, "email already registered")
			return
		}
		logrus.WithError(err).Error("failed to create user during registration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		return
	}

	account, err := h.ledger.Activate(ctx, user.ID, entity.PlanFree, nil, nil)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to provision free quota account")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision credits"})
		return
	}

	token, expiresAt, err := h.authManager.Issue(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create token for user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
		"credits": account.RemainingCredits,
	}).Info("user_registered")

	c.JSON(http.StatusCreated, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      converter.UserToSummary(user),
		Credits:   converter.QuotaAccountToSnapshot(account),
	})
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req entity.AuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login payload"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByEmail(ctx, email)
	if err != nil {
		logrus.WithError(err).WithField("email", email).Warn("login attempt failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("password verification failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}

	if !user.IsActive {
		ErrorResponse(c, http.StatusForbidden, ErrCodeUserDisabled, "user is disabled")
		return
	}

	h.upgradePasswordHash(ctx, user, password)

	token, expiresAt, err := h.authManager.Issue(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusOK, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      converter.UserToSummary(user),
		Credits:   h.creditSnapshot(ctx, user.ID),
	})
}

// upgradePasswordHash 旧成本的哈希在登录成功后重新生成，失败不影响登录
func (h *HTTPHandler) upgradePasswordHash(ctx context.Context, user *entity.DbUser, password string) {
	if !auth.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("password_rehash_failed")
		return
	}
	if err := h.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{PasswordHash: &hash}); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("password_rehash_failed")
		return
	}
	user.PasswordHash = hash
}

func (h *HTTPHandler) AuthStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	count, err := h.repo.CountUsers(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count users for auth status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check auth status"})
		return
	}
	c.JSON(http.StatusOK, entity.AuthStatusResponse{HasUser: count > 0})
}

func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbUser, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, converter.UserToSummary(dbUser))
}
