package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jing2uo/tdxport/model"
)

// vipdoc 下各市场的日线目录
var dayMarkets = []string{"sh", "sz", "bj"}

const gbbqHeaderSize = 4

func stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", model.ErrPathNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info, nil
}

// ResolveDayDir 校验日线目录，vipdoc 根目录展开为其下的 <market>/lday
//
//	.../sz/lday 或直接包含 .day 文件的目录   原样返回
//	vipdoc                                 返回存在的 sh/lday sz/lday bj/lday
func ResolveDayDir(path string) ([]string, error) {
	info, err := stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", model.ErrNotDirectory, path)
	}
	if filepath.Base(filepath.Clean(path)) == "lday" {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".day") {
			return []string{path}, nil
		}
	}

	var dirs []string
	for _, m := range dayMarkets {
		d := filepath.Join(path, m, "lday")
		if fi, err := os.Stat(d); err == nil && fi.IsDir() {
			dirs = append(dirs, d)
		}
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNoDayFiles, path)
	}
	return dirs, nil
}

// CheckFile 路径存在且为可读的普通文件
func CheckFile(path string) error {
	info, err := stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", model.ErrNotFile, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f.Close()
}

// CheckGbbqFile .zip 需以 PK 开头，否则至少包含 4 字节的记录数
func CheckGbbqFile(path string) error {
	if err := CheckFile(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, gbbqHeaderSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	head = head[:n]

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		if !bytes.HasPrefix(head, []byte("PK")) {
			return fmt.Errorf("%w: %s is not a zip archive", model.ErrInvalidGbbq, path)
		}
		return nil
	}
	if n < gbbqHeaderSize {
		return fmt.Errorf("%w: %s is shorter than the record count header", model.ErrInvalidGbbq, path)
	}
	return nil
}

// CheckOutputDir 输出目录不存在时创建，并确认可写
func CheckOutputDir(path string) error {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s", model.ErrNotDirectory, path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(path, ".tdxport-")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", path, err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}
