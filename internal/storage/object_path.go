package storage

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

func sanitizePathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			builder.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			builder.WriteByte(ch + 32)
		case ch == '-', ch == '_':
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

func normalizeExtension(ext string) string {
	trimmed := strings.TrimPrefix(strings.TrimSpace(ext), ".")
	trimmed = sanitizePathSegment(trimmed)
	if trimmed == "" {
		return "bin"
	}
	return trimmed
}

// buildObjectPath returns category/yyyy/mm/dd/base.ext using UTC dates.
func buildObjectPath(category, baseName, ext string, now time.Time) string {
	now = now.UTC()
	category = sanitizePathSegment(category)
	if category == "" {
		category = "misc"
	}
	base := sanitizeFileBase(baseName)
	if base == "" {
		base = fmt.Sprintf("%d", now.UnixNano())
	}
	datedir := fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day())
	return path.Join(category, datedir, base+"."+normalizeExtension(ext))
}

func detectContentType(ext string) string {
	typeName := mime.TypeByExtension("." + normalizeExtension(ext))
	if typeName == "" {
		return "application/octet-stream"
	}
	return typeName
}

func joinPrefix(prefix, key string) string {
	cleanPrefix := trimPrefix(prefix)
	if cleanPrefix == "" {
		return strings.TrimLeft(key, "/")
	}
	return path.Join(cleanPrefix, strings.TrimLeft(key, "/"))
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func sanitizeFileBase(value string) string {
	replaced := strings.ReplaceAll(strings.TrimSpace(value), " ", "-")
	return strings.Trim(sanitizePathSegment(replaced), "-_")
}

// objectKey builds the full key for a remote backend.
func objectKey(prefix string, opts SaveOptions) string {
	key := buildObjectPath(opts.Category, opts.BaseName, opts.Extension, time.Now())
	if prefix != "" {
		key = joinPrefix(prefix, key)
	}
	return key
}
