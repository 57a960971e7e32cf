package util

import "strings"

// FirstNonEmpty 返回第一个非空 (trim 后) 的字符串。
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Truncate 将 s 截断到最多 max 个 rune，超出时以 … 结尾。
// 用于终端渲染与日志中压缩长 SQL / 长摘要。
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
