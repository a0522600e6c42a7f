package utils

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"

	"go.uber.org/multierr"
)

// DefaultBufferSize 导出时共享写缓冲区大小
const DefaultBufferSize = 32 << 20

// CSVWriter 通用 CSV 写入器，表头来自 col 标签
type CSVWriter[T any] struct {
	closer        io.Closer
	buf           *bufio.Writer
	writer        *csv.Writer
	headerWritten bool
	columns       []columnInfo
	record        []string
}

type columnInfo struct {
	Index      int    // 字段索引
	HeaderName string // CSV 表头 (来自 col 标签)
	Kind       reflect.Kind
}

// NewCSVWriter 创建文件，bufSize <= 0 时使用 DefaultBufferSize
func NewCSVWriter[T any](filename string, bufSize int) (*CSVWriter[T], error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	cw, err := NewCSVStreamWriter[T](f, bufSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	return cw, nil
}

// NewCSVStreamWriter 写入任意 io.Writer；若 w 实现 io.Closer，Close 时一并关闭
func NewCSVStreamWriter[T any](w io.Writer, bufSize int) (*CSVWriter[T], error) {
	cols, err := analyzeStructTags[T]()
	if err != nil {
		return nil, err
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	buf := bufio.NewWriterSize(w, bufSize)
	closer, _ := w.(io.Closer)
	return &CSVWriter[T]{
		closer:  closer,
		buf:     buf,
		writer:  csv.NewWriter(buf),
		columns: cols,
		record:  make([]string, len(cols)),
	}, nil
}

// analyzeStructTags 解析 col 标签
func analyzeStructTags[T any]() ([]columnInfo, error) {
	var t T
	typ := reflect.TypeOf(t)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("generic type T must be a struct")
	}

	var cols []columnInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		colTag := field.Tag.Get("col")
		if colTag == "" {
			colTag = field.Name
		}

		cols = append(cols, columnInfo{
			Index:      i,
			HeaderName: colTag,
			Kind:       field.Type.Kind(),
		})
	}
	return cols, nil
}

func (cw *CSVWriter[T]) writeHeader() error {
	if cw.headerWritten {
		return nil
	}
	headers := make([]string, len(cw.columns))
	for i, col := range cw.columns {
		headers[i] = col.HeaderName
	}
	if err := cw.writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	cw.headerWritten = true
	return nil
}

func formatField(v reflect.Value, kind reflect.Kind) string {
	switch kind {
	case reflect.String:
		return v.String()
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	default:
		return fmt.Sprint(v.Interface())
	}
}

// Write 写入数据，只写入缓冲区，Close 时统一刷新
func (cw *CSVWriter[T]) Write(data []T) error {
	if err := cw.writeHeader(); err != nil {
		return err
	}

	for _, item := range data {
		val := reflect.ValueOf(item)
		if val.Kind() == reflect.Ptr {
			val = val.Elem()
		}
		for i, col := range cw.columns {
			cw.record[i] = formatField(val.Field(col.Index), col.Kind)
		}
		if err := cw.writer.Write(cw.record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}

// Close 刷新缓冲区并关闭底层文件；没有数据时也会写出表头
func (cw *CSVWriter[T]) Close() error {
	err := cw.writeHeader()
	cw.writer.Flush()
	err = multierr.Append(err, cw.writer.Error())
	err = multierr.Append(err, cw.buf.Flush())
	if cw.closer != nil {
		err = multierr.Append(err, cw.closer.Close())
	}
	if err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
