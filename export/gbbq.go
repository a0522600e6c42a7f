package export

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/utils"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const progressEvery = 1000

// ActionFilter 股本变迁过滤条件，多个条件同时满足才保留
type ActionFilter struct {
	Category *uint8
	Codes    map[string]struct{} // 6 位代码
	Start    uint32              // YYYYMMDD, 0 表示不限
	End      uint32
}

// NewActionFilter category < 0 表示不过滤类别；stocks 逗号分隔；dateRange 为 YYYYMMDD-YYYYMMDD
func NewActionFilter(category int, stocks, dateRange string) (ActionFilter, error) {
	var f ActionFilter

	if category >= 0 {
		if category > 255 {
			return f, fmt.Errorf("invalid category: %d", category)
		}
		c := uint8(category)
		f.Category = &c
	}

	if codes := splitCodes(stocks); len(codes) > 0 {
		f.Codes = make(map[string]struct{}, len(codes))
		for _, c := range codes {
			f.Codes[normalizeCell(c)] = struct{}{}
		}
	}

	if strings.TrimSpace(dateRange) != "" {
		start, end, err := ParseDateRange(dateRange)
		if err != nil {
			return f, err
		}
		f.Start, f.End = start, end
	}

	return f, nil
}

// ParseDateRange 解析闭区间 YYYYMMDD-YYYYMMDD
func ParseDateRange(s string) (start, end uint32, err error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidDateRange, s)
	}
	a, errA := strconv.ParseUint(parts[0], 10, 32)
	b, errB := strconv.ParseUint(parts[1], 10, 32)
	if errA != nil || errB != nil || !model.ValidDate(uint32(a)) || !model.ValidDate(uint32(b)) || a > b {
		return 0, 0, fmt.Errorf("%w: %q", model.ErrInvalidDateRange, s)
	}
	return uint32(a), uint32(b), nil
}

func (f ActionFilter) Match(ev model.GbbqEvent) bool {
	if f.Category != nil && ev.Category != *f.Category {
		return false
	}
	if f.Codes != nil {
		if _, ok := f.Codes[model.FormatCode(ev.Code)]; !ok {
			return false
		}
	}
	if f.End != 0 && (ev.Date < f.Start || ev.Date > f.End) {
		return false
	}
	return true
}

// CategoryStat 每个类别写出的记录数
type CategoryStat struct {
	Category uint8
	Name     string
	Count    int
}

type ActionReport struct {
	Total   int
	Written int
	Stats   []CategoryStat // 按类别升序
}

// ExportActions 过滤、补充可读字段后写出，完成后关闭 writer
func ExportActions(ctx context.Context, events []model.GbbqEvent, filter ActionFilter, w utils.RowWriter[model.ActionRecord], log zerolog.Logger) (report ActionReport, err error) {
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	report.Total = len(events)
	counts := make(map[uint8]int)
	batch := make([]model.ActionRecord, 0, progressEvery)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.Write(batch); err != nil {
			return fmt.Errorf("failed to write gbbq records: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for _, ev := range events {
		if !filter.Match(ev) {
			continue
		}
		batch = append(batch, ev.Record())
		counts[ev.Category]++
		report.Written++

		if report.Written%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := flush(); err != nil {
				return report, err
			}
			log.Info().Msgf("📝 已写入 %d 条记录...", report.Written)
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	for c, n := range counts {
		report.Stats = append(report.Stats, CategoryStat{Category: c, Name: model.CategoryName(c), Count: n})
	}
	sort.Slice(report.Stats, func(i, j int) bool { return report.Stats[i].Category < report.Stats[j].Category })

	log.Info().Int("total", report.Total).Int("written", report.Written).Msg("🎉 股本变迁导出完成")
	for _, s := range report.Stats {
		log.Info().Msgf("  类别 %d: %d 条 - %s", s.Category, s.Count, s.Name)
	}
	return report, nil
}
