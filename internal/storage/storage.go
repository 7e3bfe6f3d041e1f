package storage

import (
	"artsheets/internal/config"
	"context"
	"fmt"
	"strings"
)

const (
	// TypeLocal 表示本地文件系统存储。
	TypeLocal = "local"
	// TypeS3 表示 Amazon S3 或兼容的存储后端。
	TypeS3 = "s3"
	// TypeOSS 表示阿里云 OSS 存储。
	TypeOSS = "oss"
	// TypeCOS 表示腾讯云 COS 存储。
	TypeCOS = "cos"
	// TypeR2 表示 Cloudflare R2 存储。
	TypeR2 = "r2"
	// TypeMinIO 表示自建 MinIO 存储。
	TypeMinIO = "minio"
)

// SaveOptions 控制存储后端如何持久化文件。
//
// Category 用于组织对象路径（例如 sheets、thumbnails），Extension 为不含前导点的扩展名，
// BaseName 为空时使用时间戳命名。
type SaveOptions struct {
	Category  string
	Extension string
	BaseName  string
}

// Storage 持久化二进制数据并返回对象键（本地存储为相对路径）。
type Storage interface {
	Save(ctx context.Context, data []byte, opts SaveOptions) (string, error)
	// Delete 删除对象；对象不存在时不返回错误。
	Delete(ctx context.Context, key string) error
}

// LocalBaseDirProvider 由暴露可通过 HTTP 直接提供服务的本地目录的存储驱动实现。
type LocalBaseDirProvider interface {
	LocalBaseDir() string
}

// NewStorage 根据配置实例化存储后端。
func NewStorage(cfg config.Config) (Storage, error) {
	typeName := strings.ToLower(strings.TrimSpace(cfg.StorageType))
	switch typeName {
	case "", TypeLocal:
		return NewLocalStorage(cfg.StorageLocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeOSS:
		return NewOSSStorage(cfg)
	case TypeCOS:
		return NewCOSStorage(cfg)
	case TypeR2:
		return NewR2Storage(cfg)
	case TypeMinIO:
		return NewMinIOStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}

// DeleteAll removes every key and returns the first error encountered.
func DeleteAll(ctx context.Context, store Storage, keys ...string) error {
	var firstErr error
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return firstErr
}
