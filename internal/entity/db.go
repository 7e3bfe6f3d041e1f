package entity

import (
	"artsheets/internal/entity/common"
)

type Meta = common.Meta
type BaseParams = common.BaseParams
