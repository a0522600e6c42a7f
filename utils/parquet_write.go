package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jing2uo/tdxport/model"
	"github.com/parquet-go/parquet-go"
	"go.uber.org/multierr"
)

// RowWriter 导出行的统一写入接口
type RowWriter[T any] interface {
	Write(data []T) error
	Close() error
}

type ParquetWriter[T any] struct {
	file   *os.File
	writer *parquet.GenericWriter[T]
}

// NewParquetWriter 初始化一个新的写入器
// bufSize: 写缓冲区大小, <= 0 时使用 DefaultBufferSize
func NewParquetWriter[T any](filename string, bufSize int, options ...parquet.WriterOption) (*ParquetWriter[T], error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	defaultOpts := []parquet.WriterOption{
		parquet.Compression(&parquet.Snappy),
		parquet.WriteBufferSize(bufSize),
		parquet.PageBufferSize(64 * 1024),
	}
	finalOpts := append(defaultOpts, options...)

	return &ParquetWriter[T]{
		file:   f,
		writer: parquet.NewGenericWriter[T](f, finalOpts...),
	}, nil
}

// Write 写入一批数据
func (p *ParquetWriter[T]) Write(data []T) error {
	if len(data) == 0 {
		return nil
	}
	_, err := p.writer.Write(data)
	return err
}

// Close 先写入 Footer 再关闭文件
func (p *ParquetWriter[T]) Close() error {
	err := p.writer.Close()
	err = multierr.Append(err, p.file.Close())
	if err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// NewRowWriter 根据扩展名选择 csv 或 parquet
func NewRowWriter[T any](path string, bufSize int) (RowWriter[T], error) {
	var (
		w   RowWriter[T]
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		w, err = NewCSVWriter[T](path, bufSize)
	case ".parquet":
		w, err = NewParquetWriter[T](path, bufSize)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedOutput, path)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
