package calc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jing2uo/tdxport/model"
	"github.com/rs/zerolog"
)

// FactorSource 提供上次导出时每只股票最后的收盘价与复权因子
type FactorSource interface {
	Load(ctx context.Context) (map[uint32]model.Factor, error)
}

// factorRow 数据库导出的列名 code,date,close,factor
type factorRow struct {
	Code   string `csv:"code"`
	Date   string `csv:"date"`
	Close  string `csv:"close"`
	Factor string `csv:"factor"`
}

func (r factorRow) parse() (model.Factor, error) {
	code, err := strconv.ParseUint(strings.TrimSpace(r.Code), 10, 32)
	if err != nil {
		return model.Factor{}, fmt.Errorf("code %q: %w", r.Code, err)
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return model.Factor{}, err
	}
	closePrice, err := strconv.ParseFloat(strings.TrimSpace(r.Close), 64)
	if err != nil {
		return model.Factor{}, fmt.Errorf("close %q: %w", r.Close, err)
	}
	factor, err := strconv.ParseFloat(strings.TrimSpace(r.Factor), 64)
	if err != nil {
		return model.Factor{}, fmt.Errorf("factor %q: %w", r.Factor, err)
	}
	return model.Factor{Code: uint32(code), Date: date, Close: closePrice, Factor: factor}, nil
}

// parseDate 支持 2006-01-02 与 20060102
func parseDate(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return uint32(t.Year()*10000 + int(t.Month())*100 + t.Day()), nil
		}
	}
	return 0, fmt.Errorf("invalid date %q", s)
}

// CSVFactorSource 从本地 csv 读取，Keep 为 false 时读取后删除文件
type CSVFactorSource struct {
	Path   string
	Keep   bool
	Logger zerolog.Logger
}

func (s *CSVFactorSource) Load(ctx context.Context) (map[uint32]model.Factor, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open previous factor file: %w", err)
	}

	var rows []*factorRow
	err = gocsv.Unmarshal(f, &rows)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to parse previous factor file %s: %w", s.Path, err)
	}

	prev := make(map[uint32]model.Factor, len(rows))
	skipped := 0
	for i, row := range rows {
		fc, err := row.parse()
		if err != nil {
			skipped++
			s.Logger.Debug().Int("row", i+1).Err(err).Msg("跳过无效的复权因子行")
			continue
		}
		// 同一代码保留日期最新的一条
		if old, ok := prev[fc.Code]; ok && old.Date > fc.Date {
			continue
		}
		prev[fc.Code] = fc
	}

	s.Logger.Info().Str("path", s.Path).Int("codes", len(prev)).Int("skipped", skipped).Msg("📥 已读取前复权因子")

	if !s.Keep {
		if err := os.Remove(s.Path); err != nil {
			return nil, fmt.Errorf("failed to remove previous factor file: %w", err)
		}
	}
	return prev, nil
}

// LatestFactorExporter 把每只股票最新的 (date, close, factor) 导出为 csv
type LatestFactorExporter interface {
	ExportLatestFactors(ctx context.Context, table, dest string) error
}

// WarehouseFactorSource 先从数据库导出最新因子，再按本地文件读取
type WarehouseFactorSource struct {
	Exporter LatestFactorExporter
	Table    string
	WorkDir  string
	RunID    string
	Keep     bool
	Logger   zerolog.Logger
}

func (s *WarehouseFactorSource) Load(ctx context.Context) (map[uint32]model.Factor, error) {
	dest := filepath.Join(s.WorkDir, fmt.Sprintf("previous-%s.csv", s.RunID))
	if err := s.Exporter.ExportLatestFactors(ctx, s.Table, dest); err != nil {
		return nil, fmt.Errorf("failed to export latest factors from %s: %w", s.Table, err)
	}
	local := &CSVFactorSource{Path: dest, Keep: s.Keep, Logger: s.Logger}
	return local.Load(ctx)
}
