package utils

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ReadZipEntry 读取压缩包中文件名 (不区分大小写、忽略目录) 为 name 的条目
func ReadZipEntry(zipPath, name string) ([]byte, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Base(f.Name), name) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %q not found in %s", name, zipPath)
}
