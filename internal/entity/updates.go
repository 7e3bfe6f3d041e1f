package entity

// UserUpdates 用户更新字段
type UserUpdates struct {
	DisplayName  *string
	Role         *string
	PasswordHash *string
	IsActive     *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// SheetUpdates 工作表更新字段，仅包含用户可编辑的元数据
type SheetUpdates struct {
	Title      *string
	IsFavorite *bool
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u SheetUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Title != nil {
		updates["title"] = *u.Title
	}
	if u.IsFavorite != nil {
		updates["is_favorite"] = *u.IsFavorite
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u SheetUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
