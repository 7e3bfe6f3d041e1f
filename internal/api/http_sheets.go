package api

import (
	"artsheets/internal/catalog"
	"artsheets/internal/entity"
	"artsheets/internal/entity/converter"
	"artsheets/internal/storage"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxSheetTitleLength = 255

// GenerateSheets 生成工作表，额度在生成前预留，失败时自动退回
func (h *HTTPHandler) GenerateSheets(c *gin.Context) {
	var userID uint
	if requestUser := CurrentUser(c); requestUser != nil {
		userID = requestUser.ID
	}

	var req entity.GenerateSheetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	result, err := h.generation.Generate(c.Request.Context(), userID, catalog.Input{
		Technique:           req.Technique,
		Theme:               req.Theme,
		SubTheme:            req.SubTheme,
		AgeGroup:            req.AgeGroup,
		Prompt:              req.Prompt,
		Complexity:          req.Complexity,
		Quantity:            req.Quantity,
		PaperSize:           req.PaperSize,
		Orientation:         req.Orientation,
		IncludeInstructions: req.IncludeInstructions,
		IncludeWatermark:    req.IncludeWatermark,
	})
	if err != nil {
		respondGenerationError(c, err)
		return
	}

	generated := make([]entity.GeneratedSheetItem, 0, len(result.Images))
	for _, img := range result.Images {
		generated = append(generated, entity.GeneratedSheetItem{
			Prompt:       img.Prompt,
			ImageURL:     h.publicURL(img.ImagePath),
			ThumbnailURL: h.publicURL(img.ThumbnailPath),
		})
	}

	c.JSON(http.StatusOK, entity.GenerateSheetsResponse{
		Generated:        generated,
		Sheets:           converter.SheetsToItems(result.Sheets, h.publicURL),
		RemainingCredits: result.RemainingCredits,
		Unlimited:        result.Unlimited,
	})
}

func (h *HTTPHandler) ListSheets(c *gin.Context) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var params entity.SheetQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "invalid query parameters")
		return
	}
	params.Normalize(20, 100)

	if requestUser.IsAdmin() {
		params.IncludeAll = true
		if userFilter := strings.TrimSpace(c.Query("user_id")); userFilter != "" {
			if parsed, err := strconv.ParseUint(userFilter, 10, 64); err == nil && parsed > 0 {
				params.UserID = uint(parsed)
			}
		}
	} else {
		params.UserID = requestUser.ID
		params.IncludeAll = false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sheets, meta, err := h.repo.ListSheets(ctx, &params)
	if err != nil {
		logrus.WithError(err).Error("failed to list sheets")
		InternalError(c, "failed to load sheets")
		return
	}
	if meta == nil {
		meta = &entity.Meta{Page: params.Page, PageSize: params.PageSize, Total: int64(len(sheets))}
	}

	c.JSON(http.StatusOK, entity.SheetListResponse{
		Sheets: converter.SheetsToItems(sheets, h.publicURL),
		Meta:   meta,
	})
}

func (h *HTTPHandler) GetSheet(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sheet, ok := h.loadAccessibleSheet(ctx, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entity.SheetDetailResponse{Sheet: converter.SheetToItem(sheet, h.publicURL)})
}

// UpdateSheet 修改标题或收藏状态
func (h *HTTPHandler) UpdateSheet(c *gin.Context) {
	var req entity.SheetUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	var updates entity.SheetUpdates
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || utf8.RuneCountInString(title) > maxSheetTitleLength {
			ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, "title must be 1-255 characters", gin.H{"field": "title"})
			return
		}
		updates.Title = &title
	}
	updates.IsFavorite = req.IsFavorite

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sheet, ok := h.loadAccessibleSheet(ctx, c)
	if !ok {
		return
	}

	if !updates.IsEmpty() {
		if err := h.repo.UpdateSheet(ctx, sheet.ID, updates); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, ErrCodeSheetNotFound, "sheet not found")
				return
			}
			logrus.WithError(err).WithField("sheet_id", sheet.ID).Error("failed to update sheet")
			InternalError(c, "failed to update sheet")
			return
		}
		refreshed, err := h.repo.GetSheet(ctx, sheet.ID)
		if err != nil {
			logrus.WithError(err).WithField("sheet_id", sheet.ID).Error("failed to reload sheet after update")
			InternalError(c, "failed to load updated sheet")
			return
		}
		sheet = refreshed
	}

	c.JSON(http.StatusOK, entity.SheetDetailResponse{Sheet: converter.SheetToItem(sheet, h.publicURL)})
}

// DeleteSheet 删除工作表及其存储文件，已消耗的额度不退回
func (h *HTTPHandler) DeleteSheet(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sheet, ok := h.loadAccessibleSheet(ctx, c)
	if !ok {
		return
	}

	if err := h.repo.DeleteSheet(ctx, sheet.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeSheetNotFound, "sheet not found")
			return
		}
		logrus.WithError(err).WithField("sheet_id", sheet.ID).Error("failed to delete sheet")
		InternalError(c, "failed to delete sheet")
		return
	}

	if h.storage != nil {
		keys := []string{sheet.ImagePath}
		if sheet.ThumbnailPath != sheet.ImagePath {
			keys = append(keys, sheet.ThumbnailPath)
		}
		cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cleanupCancel()
		if err := storage.DeleteAll(cleanupCtx, h.storage, keys...); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"sheet_id": sheet.ID,
				"keys":     keys,
			}).Warn("sheet_files_cleanup_failed")
		}
	}

	c.Status(http.StatusNoContent)
}

// loadAccessibleSheet 读取路径中的工作表并校验访问权限，失败时已写入响应
func (h *HTTPHandler) loadAccessibleSheet(ctx context.Context, c *gin.Context) (*entity.DbSheet, bool) {
	requestUser := CurrentUser(c)
	if requestUser == nil {
		Unauthorized(c, "authentication required")
		return nil, false
	}

	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid sheet id")
		return nil, false
	}

	sheet, err := h.repo.GetSheet(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeSheetNotFound, "sheet not found")
			return nil, false
		}
		logrus.WithError(err).WithField("sheet_id", id).Error("failed to load sheet")
		InternalError(c, "failed to load sheet")
		return nil, false
	}

	// 其他用户的工作表按不存在处理
	if !requestUser.IsAdmin() && sheet.UserID != requestUser.ID {
		NotFound(c, ErrCodeSheetNotFound, "sheet not found")
		return nil, false
	}
	return sheet, true
}
