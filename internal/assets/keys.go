// Package assets 管理用户上传的图片：对象键校验，以及在渲染前把简历里
// 引用的图片解析为浏览器或打印可用的地址。
package assets

import (
	"strings"
	"unicode/utf8"

	"resumeCraft/internal/storage"
)

// IsUserAssetKey 报告 key 是否为 userID 名下合法的图片对象键。
func IsUserAssetKey(userID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	if !strings.HasPrefix(key, storage.AssetPrefix(userID)) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(key))
	return strings.HasSuffix(lower, ".png") ||
		strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg") ||
		strings.HasSuffix(lower, ".webp")
}

// looksLikeAssetKey 只看前缀，用于区分外部 URL 与对象键。
func looksLikeAssetKey(s string) bool {
	return strings.HasPrefix(s, "user-assets/")
}
