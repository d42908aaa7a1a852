// Package parse 存放各站点解析器共用的结果类型和文本处理
package parse

import (
	"strings"
	"unicode/utf8"
)

// Normalize 将不换行空格替换为普通空格并去掉首尾空白
func Normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}

// Optional 规范化后为空返回nil
func Optional(s string) *string {
	s = Normalize(s)
	if s == "" {
		return nil
	}
	return &s
}

// Truncate 按字符截断到最多n个字符
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
