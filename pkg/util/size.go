package util

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for humans, e.g. "1.2 MB"
// FormatBytes 将字节数格式化为可读字符串
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}

// ParseBytes parses "512MB", "1 GiB" and plain integers
// ParseBytes 解析 "512MB"、"1 GiB" 等大小字符串
func ParseBytes(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return humanize.ParseBytes(s)
}
