package utils

import (
	"os"
	"path/filepath"
)

// GetWorkDir 返回中间文件目录，base 为空时使用系统临时目录
func GetWorkDir(base string) (string, error) {
	if base == "" {
		base = filepath.Join(os.TempDir(), "tdxport-temp")
	}
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", err
	}
	return base, nil
}
