package api

import (
	"artsheets/internal/auth"
	"artsheets/internal/entity"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const currentUserContextKey = "current-user"

// authFailure 说明请求为何没有可用身份，随 401 响应返回
type authFailure string

const (
	authMissingToken    authFailure = "missing_token"
	authMalformedHeader authFailure = "malformed_header"
	authSessionExpired  authFailure = "session_expired"
	authInvalidToken    authFailure = "invalid_token"
	authUnknownUser     authFailure = "unknown_user"
	authUserDisabled    authFailure = "user_disabled"
	authRoleChanged     authFailure = "role_changed"
)

// RequestUser 当前请求的已认证用户
type RequestUser struct {
	ID          uint
	Email       string
	DisplayName string
	Role        string
}

func (u *RequestUser) IsAdmin() bool {
	return u != nil && (u.Role == entity.UserRoleAdmin || u.Role == entity.UserRoleSuperAdmin)
}

func (u *RequestUser) IsSuperAdmin() bool {
	return u != nil && u.Role == entity.UserRoleSuperAdmin
}

// AuthMiddleware resolves the bearer session to a RequestUser. Every failure
// answers 401 with details.reason; only a storage error answers 500.
func (h *HTTPHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		user, failure, err := h.authenticate(ctx, c.GetHeader("Authorization"))
		if err != nil {
			logrus.WithError(err).Error("failed to authenticate request")
			c.AbortWithStatusJSON(http.StatusInternalServerError, APIError{
				Code:    ErrCodeInternalError,
				Message: "failed to verify session",
			})
			return
		}
		if failure != "" {
			rejectUnauthenticated(c, failure)
			return
		}

		c.Set(currentUserContextKey, user)
		c.Next()
	}
}

func (h *HTTPHandler) authenticate(ctx context.Context, header string) (*RequestUser, authFailure, error) {
	token, failure := bearerToken(header)
	if failure != "" {
		return nil, failure, nil
	}

	claims, err := h.authManager.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, authSessionExpired, nil
		}
		logrus.WithError(err).Debug("session token rejected")
		return nil, authInvalidToken, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, authInvalidToken, nil
	}

	user, err := h.repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authUnknownUser, nil
	}
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive {
		return nil, authUserDisabled, nil
	}
	// 角色变更后旧令牌立即失效
	if claims.Role != user.Role {
		return nil, authRoleChanged, nil
	}

	return &RequestUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}, "", nil
}

func bearerToken(header string) (string, authFailure) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", authMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", authMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", authMissingToken
	}
	return token, ""
}

func rejectUnauthenticated(c *gin.Context, reason authFailure) {
	code := ErrCodeUnauthorized
	if reason == authSessionExpired {
		code = ErrCodeSessionExpired
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, APIError{
		Code:    code,
		Message: "authentication required",
		Details: gin.H{"reason": string(reason)},
	})
}

// RequireAdmin 管理员权限守卫，需在 AuthMiddleware 之后使用
func (h *HTTPHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, APIError{
				Code:    ErrCodeForbidden,
				Message: "admin privileges required",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser 返回 AuthMiddleware 写入的用户，未认证时为 nil
func CurrentUser(c *gin.Context) *RequestUser {
	value, _ := c.Get(currentUserContextKey)
	user, _ := value.(*RequestUser)
	return user
}
