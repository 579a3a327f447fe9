package fileurl

import (
	"os"
	"path/filepath"
	"strings"
)

// IsFile reports whether path exists and is a regular file
// IsFile 判断路径是否为普通文件
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether path exists and is a directory
// IsDir 判断路径是否为目录
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsExist determines if the given path exists
// IsExist 判断所给路径是否存在
func IsExist(dst string) bool {
	_, err := os.Stat(dst)
	if err != nil {
		return os.IsExist(err)
	}
	return true
}

// EnsureDir creates dir and any missing parents
// EnsureDir 创建目录（含父目录）
func EnsureDir(dir string, perm os.FileMode) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, perm)
}

// CreatePath creates the parent directory of dst
// CreatePath 创建 dst 的父目录
func CreatePath(dst string, perm os.FileMode) error {
	return os.MkdirAll(filepath.Dir(dst), perm)
}

// StripExt removes the last extension from name
// StripExt 去掉最后一个扩展名
func StripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FileSize returns the size of path, or an error if it cannot be stat'ed
// FileSize 获取文件大小
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
