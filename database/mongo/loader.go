package mongo

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"github.com/rs/zerolog"
)

// Loader 通过 mongoimport 写入，只支持导入
type Loader struct {
	Binary string
	URI    string
	Runner database.Runner
	Logger zerolog.Logger
}

func NewLoader(binary, uri string, log zerolog.Logger) *Loader {
	if binary == "" {
		binary = "mongoimport"
	}
	return &Loader{Binary: binary, URI: uri, Runner: database.ExecRunner{}, Logger: log}
}

func (l *Loader) Close() error { return nil }

// BulkInsert 表头由 --fields 给出类型，csv 首行跳过后从 stdin 传入
func (l *Loader) BulkInsert(ctx context.Context, ref database.TableRef, meta *model.TableMeta, csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if _, err := r.ReadString('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read header of %s: %w", csvPath, err)
	}
	// 只有表头
	if _, err := r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", csvPath, err)
	}

	args := l.Args(ref, meta)
	l.Logger.Debug().Msgf("%s %s < %s", l.Binary, strings.Join(args, " "), csvPath)
	return l.Runner.Run(ctx, l.Binary, args, r, nil)
}

func (l *Loader) Args(ref database.TableRef, meta *model.TableMeta) []string {
	args := []string{
		"--db", ref.Database,
		"--collection", ref.Table,
		"--type=csv",
		"--columnsHaveTypes",
		"--fields=" + FieldSpec(meta),
	}
	if l.URI != "" {
		args = append(args, "--uri", l.URI)
	}
	return args
}

// FieldSpec 生成 mongoimport 的 name.type() 列定义
func FieldSpec(meta *model.TableMeta) string {
	fields := make([]string, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		fields = append(fields, fmt.Sprintf("%s.%s", col.Name, fieldType(col.Type)))
	}
	return strings.Join(fields, ",")
}

func fieldType(dt model.DataType) string {
	switch dt {
	case model.TypeDate:
		return "date_go(2006-01-02)"
	case model.TypeUInt8:
		return "int32()"
	case model.TypeFloat32, model.TypeFloat64:
		return "double()"
	default:
		return "string()"
	}
}
