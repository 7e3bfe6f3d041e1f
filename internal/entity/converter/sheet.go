package converter

import (
	"artsheets/internal/entity"
)

// SheetToItem 将 entity.DbSheet 转换为 entity.SheetItem。
// publicURL 用于将存储路径转换为公开 URL。
func SheetToItem(s *entity.DbSheet, publicURL func(path string) string) entity.SheetItem {
	if s == nil {
		return entity.SheetItem{}
	}
	item := entity.SheetItem{
		ID:                  s.ID,
		Title:               s.Title,
		Technique:           s.Technique,
		Theme:               s.Theme,
		SubTheme:            s.SubTheme,
		AgeGroup:            s.AgeGroup,
		Prompt:              s.Prompt,
		Image:               entity.SheetImage{Path: s.ImagePath, URL: publicURL(s.ImagePath)},
		Thumbnail:           entity.SheetImage{Path: s.ThumbnailPath, URL: publicURL(s.ThumbnailPath)},
		Complexity:          s.Complexity,
		Difficulty:          s.Difficulty,
		PaperSize:           s.PaperSize,
		Orientation:         s.Orientation,
		IncludeInstructions: s.IncludeInstructions,
		IncludeWatermark:    s.IncludeWatermark,
		IsFavorite:          s.IsFavorite,
		CreatedAt:           s.CreatedAt,
	}
	if s.User != nil {
		summary := UserToSummary(s.User)
		item.User = &summary
	}
	return item
}

// SheetsToItems 将 entity.DbSheet 切片转换为 entity.SheetItem 切片。
func SheetsToItems(sheets []entity.DbSheet, publicURL func(path string) string) []entity.SheetItem {
	items := make([]entity.SheetItem, len(sheets))
	for i := range sheets {
		items[i] = SheetToItem(&sheets[i], publicURL)
	}
	return items
}
