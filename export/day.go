package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jing2uo/tdxport/calc"
	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/tdx"
	"github.com/jing2uo/tdxport/utils"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// TakeAll 不限制每个目录处理的文件数
const TakeAll = -1

// DayOptions 日线导出参数
type DayOptions struct {
	Dirs     []string
	Take     int       // 每个目录最多处理的文件数，负数表示全部
	Universe *Universe // nil 表示不过滤
	Prefixes []string  // 代码前缀，如 sz30 sh6，空表示全部
	Decoder  tdx.DayDecoder
	Logger   zerolog.Logger
}

// DirReport 单个目录的处理结果
type DirReport struct {
	Dir       string
	Matched   int
	Taken     int
	Processed int
	Failed    int
	Rows      int
}

// RowBuilder 把一只股票的日线转换为输出行
type RowBuilder[T any] func(code uint32, bars []model.DayBar) []T

// RawRows 不复权
func RawRows(_ uint32, bars []model.DayBar) []model.DayRow {
	rows := make([]model.DayRow, len(bars))
	for i, b := range bars {
		rows[i] = b.Row()
	}
	return rows
}

// AdjustedRows 按除权事件与上次因子计算复权
func AdjustedRows(adj *calc.Adjuster) RowBuilder[model.AdjustedRow] {
	return func(code uint32, bars []model.DayBar) []model.AdjustedRow {
		adjusted := adj.Adjust(code, bars)
		rows := make([]model.AdjustedRow, len(adjusted))
		for i, b := range adjusted {
			rows[i] = b.Row()
		}
		return rows
	}
}

// ListStockFiles 列出目录下 (不递归) 的 .day 文件，按文件名排序
// 无法从文件名得到代码的文件直接忽略
func ListStockFiles(dir string, prefixes []string) ([]tdx.StockFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []tdx.StockFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), tdx.DayExt) {
			continue
		}
		f, ok := tdx.ParseStockFile(filepath.Join(dir, e.Name()))
		if !ok {
			continue
		}
		if !f.HasPrefix(prefixes) {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// SelectFiles 先按白名单过滤，再截取前 take 个
func SelectFiles(files []tdx.StockFile, u *Universe, take int) (matched, taken []tdx.StockFile) {
	for _, f := range files {
		if u.Allows(f) {
			matched = append(matched, f)
		}
	}
	taken = matched
	if take >= 0 && take < len(matched) {
		taken = matched[:take]
	}
	return matched, taken
}

// ExportDay 依次处理每个目录，结果写入同一个 writer，全部完成后关闭 writer
func ExportDay[T any](ctx context.Context, opts DayOptions, w utils.RowWriter[T], build RowBuilder[T]) (reports []DirReport, err error) {
	log := opts.Logger
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	decoder := opts.Decoder
	if decoder == nil {
		decoder = tdx.DayFileDecoder{}
	}

	pipeline := utils.NewPipeline[tdx.StockFile, T](utils.WithErrorHandler(func(f tdx.StockFile, err error) {
		log.Error().Err(err).Str("file", f.Path).Msg("❌ 解析失败，跳过")
	}))

	process := func(_ context.Context, f tdx.StockFile) ([]T, error) {
		log.Debug().Msgf("#%s# %s", f.CodeString(), f.Path)
		bars, err := tdx.ReadDayFile(decoder, f.Path, f.Code)
		if err != nil {
			return nil, err
		}
		return build(f.Code, bars), nil
	}

	for _, dir := range opts.Dirs {
		files, err := ListStockFiles(dir, opts.Prefixes)
		if err != nil {
			return reports, err
		}

		matched, taken := SelectFiles(files, opts.Universe, opts.Take)
		res, err := pipeline.RunWithWriter(ctx, slices.Values(taken), process, w)
		if err != nil {
			return reports, fmt.Errorf("failed to export %s: %w", dir, err)
		}

		report := DirReport{
			Dir:       dir,
			Matched:   len(matched),
			Taken:     len(taken),
			Processed: res.ProcessedItems,
			Failed:    len(res.Errors),
			Rows:      res.OutputRows,
		}
		reports = append(reports, report)

		switch {
		case opts.Take == 0:
			log.Warn().Str("dir", dir).Msg("⚠️ take 为 0，未处理任何文件")
		case report.Matched == 0:
			log.Warn().Str("dir", dir).Msg("⚠️ 没有匹配的文件")
		default:
			log.Info().
				Str("dir", dir).
				Int("matched", report.Matched).
				Int("processed", report.Processed).
				Int("failed", report.Failed).
				Int("rows", report.Rows).
				Msgf("✅ 已处理 %d/%d 个文件", report.Processed, report.Matched)
		}
	}

	return reports, nil
}
