package entity

import "time"

// DbSheet is a persisted worksheet produced by one generation call.
type DbSheet struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	UserID              uint      `gorm:"column:user_id;index;not null" json:"user_id"`
	ReservationID       string    `gorm:"column:reservation_id;type:varchar(64);index" json:"reservation_id"`
	BatchOrdinal        int       `gorm:"column:batch_ordinal;not null" json:"batch_ordinal"`
	Title               string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Technique           string    `gorm:"column:technique;type:varchar(32);index;not null" json:"technique"`
	Theme               string    `gorm:"column:theme;type:varchar(32);index;not null" json:"theme"`
	SubTheme            string    `gorm:"column:sub_theme;type:varchar(128)" json:"sub_theme"`
	AgeGroup            string    `gorm:"column:age_group;type:varchar(32);not null" json:"age_group"`
	Prompt              string    `gorm:"column:prompt;type:text" json:"prompt"`
	ImagePath           string    `gorm:"column:image_path;type:text;not null" json:"image_path"`
	ThumbnailPath       string    `gorm:"column:thumbnail_path;type:text" json:"thumbnail_path"`
	Complexity          int       `gorm:"column:complexity;not null" json:"complexity"`
	Difficulty          int       `gorm:"column:difficulty;not null" json:"difficulty"`
	PaperSize           string    `gorm:"column:paper_size;type:varchar(16);not null" json:"paper_size"`
	Orientation         string    `gorm:"column:orientation;type:varchar(16);not null" json:"orientation"`
	IncludeInstructions bool      `gorm:"column:include_instructions;not null" json:"include_instructions"`
	IncludeWatermark    bool      `gorm:"column:include_watermark;not null" json:"include_watermark"`
	IsFavorite          bool      `gorm:"column:is_favorite;not null" json:"is_favorite"`

	User *DbUser `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 指定表名。
func (DbSheet) TableName() string {
	return "sheets"
}

// SheetQuery supports listing sheets.
type SheetQuery struct {
	BaseParams
	Technique  string `json:"technique" form:"technique" query:"technique"`
	Theme      string `json:"theme" form:"theme" query:"theme"`
	Favorite   bool   `json:"favorite" form:"favorite" query:"favorite"`
	UserID     uint   `json:"-" form:"-" query:"-"`
	IncludeAll bool   `json:"-" form:"-" query:"-"`
}

// GenerateSheetsRequest is the payload for POST /api/sheets/generate.
type GenerateSheetsRequest struct {
	Technique           string `json:"technique"`
	Theme               string `json:"theme"`
	SubTheme            string `json:"sub_theme"`
	AgeGroup            string `json:"age_group"`
	Prompt              string `json:"prompt"`
	Complexity          *int   `json:"complexity"`
	Quantity            *int   `json:"quantity"`
	PaperSize           string `json:"paper_size"`
	Orientation         string `json:"orientation"`
	IncludeInstructions *bool  `json:"include_instructions"`
	IncludeWatermark    *bool  `json:"include_watermark"`
}

// SheetImage 图片存储路径与公开地址
type SheetImage struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// GeneratedSheetItem describes one image returned by the generation backend.
type GeneratedSheetItem struct {
	Prompt       string `json:"prompt"`
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// SheetItem is the response representation of a sheet.
type SheetItem struct {
	ID                  uint         `json:"id"`
	Title               string       `json:"title"`
	Technique           string       `json:"technique"`
	Theme               string       `json:"theme"`
	SubTheme            string       `json:"sub_theme,omitempty"`
	AgeGroup            string       `json:"age_group"`
	Prompt              string       `json:"prompt"`
	Image               SheetImage   `json:"image"`
	Thumbnail           SheetImage   `json:"thumbnail"`
	Complexity          int          `json:"complexity"`
	Difficulty          int          `json:"difficulty"`
	PaperSize           string       `json:"paper_size"`
	Orientation         string       `json:"orientation"`
	IncludeInstructions bool         `json:"include_instructions"`
	IncludeWatermark    bool         `json:"include_watermark"`
	IsFavorite          bool         `json:"is_favorite"`
	CreatedAt           time.Time    `json:"created_at"`
	User                *UserSummary `json:"user,omitempty"`
}

// GenerateSheetsResponse is returned after a successful generation.
type GenerateSheetsResponse struct {
	Generated        []GeneratedSheetItem `json:"generated"`
	Sheets           []SheetItem          `json:"sheets"`
	RemainingCredits *int                 `json:"remaining_credits"`
	Unlimited        bool                 `json:"unlimited"`
}

// SheetUpdateRequest 更新工作表的标题或收藏状态
type SheetUpdateRequest struct {
	Title      *string `json:"title,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
}

// SheetListResponse is the response for listing sheets.
type SheetListResponse struct {
	Sheets []SheetItem `json:"sheets"`
	Meta   *Meta       `json:"meta"`
}

// SheetDetailResponse is the response for a single sheet.
type SheetDetailResponse struct {
	Sheet SheetItem `json:"sheet"`
}
