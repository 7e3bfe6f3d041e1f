package api

import (
	"artsheets/internal/auth"
	"artsheets/internal/catalog"
	"artsheets/internal/config"
	"artsheets/internal/metrics"
	"artsheets/internal/model"
	"artsheets/internal/quota"
	"artsheets/internal/service"
	"artsheets/internal/storage"
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

// SheetGenerator runs the whole generation flow for one user.
type SheetGenerator interface {
	Generate(ctx context.Context, userID uint, in catalog.Input) (*service.Result, error)
}

// Dependencies 处理器依赖的服务
type Dependencies struct {
	Generation SheetGenerator
	Ledger     *quota.Ledger
	Limiter    RateLimiter
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager

	// 服务层
	generation SheetGenerator
	ledger     *quota.Ledger
	limiter    RateLimiter
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, deps Dependencies) (*HTTPHandler, error) {
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if deps.Generation == nil || deps.Ledger == nil {
		return nil, errors.New("generation service and ledger are required")
	}

	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	return &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		generation:        deps.Generation,
		ledger:            deps.Ledger,
		limiter:           deps.Limiter,
	}, nil
}

// RegisterRoutes 注册全部 API 路由
func (h *HTTPHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")
	apiGroup.GET("/catalog", h.GetCatalog)

	authGroup := apiGroup.Group("/auth")
	authGroup.GET("/status", h.AuthStatus)
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", h.AuthMiddleware(), h.Me)

	protected := apiGroup.Group("")
	protected.Use(h.AuthMiddleware())
	protected.GET("/credits", h.GetCredits)
	protected.POST("/sheets/generate", h.RateLimit(), h.GenerateSheets)
	protected.GET("/sheets", h.ListSheets)
	protected.GET("/sheets/:id", h.GetSheet)
	protected.PATCH("/sheets/:id", h.UpdateSheet)
	protected.DELETE("/sheets/:id", h.DeleteSheet)

	userAdmin := protected.Group("/users")
	userAdmin.Use(h.RequireAdmin())
	userAdmin.GET("", h.ListUsers)
	userAdmin.POST("", h.CreateUser)
	userAdmin.PATCH("/:id", h.UpdateUser)
	userAdmin.DELETE("/:id", h.DeleteUser)

	quotaAdmin := protected.Group("/admin")
	quotaAdmin.Use(h.RequireAdmin())
	quotaAdmin.POST("/quota-accounts", h.ActivateQuotaAccount)
	quotaAdmin.POST("/quota-accounts/:id/grant", h.GrantCredits)
	quotaAdmin.GET("/reservations", h.ListReservations)
}

