package api

import (
	"net/url"
	"strings"
)

const defaultFilesPrefix = "/files"

// normalisePublicBase returns either an absolute http(s) base or a rooted
// path prefix under which the local storage directory is served.
func normalisePublicBase(value string) string {
	base := strings.TrimRight(strings.TrimSpace(value), "/")
	if base == "" {
		return defaultFilesPrefix
	}
	if isRemoteBase(base) {
		return base
	}
	return "/" + strings.TrimLeft(base, "/")
}

func isRemoteBase(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

// PublicBase 本地存储对外暴露的路由前缀，文件由外部地址提供时为空
func (h *HTTPHandler) PublicBase() string {
	if isRemoteBase(h.storagePublicBase) {
		return ""
	}
	return h.storagePublicBase
}

// publicURL maps a storage key to the URL clients download it from. Keys
// that already are URLs pass through unchanged.
func (h *HTTPHandler) publicURL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || isRemoteBase(key) {
		return key
	}
	base := h.storagePublicBase
	if base == "" {
		base = defaultFilesPrefix
	}
	joined, err := url.JoinPath(base, strings.TrimLeft(key, "/"))
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
	}
	return joined
}
