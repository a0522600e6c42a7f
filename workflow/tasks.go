package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/jing2uo/tdxport/calc"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/export"
	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/tdx"
	"github.com/jing2uo/tdxport/utils"
	"github.com/rs/zerolog"
)

// Sink 导出文件写入数据库的目标
type Sink struct {
	Loader    database.Loader
	Warehouse database.WarehouseClient // 为 nil 时不建表 (mongodb)
	Table     database.TableRef
	Keep      bool
}

// DayArgs day 命令的参数与任务间的中间结果
type DayArgs struct {
	Day        export.DayOptions
	GbbqPath   string // 为空时不复权
	Gbbq       *tdx.GbbqReader
	Previous   calc.FactorSource // 为 nil 时全量计算
	OutputPath string            // 最终文件，或写库前的中间 csv
	BufferSize int
	Sink       *Sink
	Logger     zerolog.Logger

	index    *calc.ActionIndex
	previous map[uint32]model.Factor
	Reports  []export.DirReport
}

func (a *DayArgs) Adjusted() bool { return a.GbbqPath != "" }

// GbbqArgs gbbq 命令的参数与中间结果
type GbbqArgs struct {
	Path       string
	Reader     *tdx.GbbqReader
	Filter     export.ActionFilter
	OutputPath string
	BufferSize int
	Sink       *Sink
	Logger     zerolog.Logger

	events []model.GbbqEvent
	Report export.ActionReport
}

const (
	TaskReadGbbq     = "read_gbbq"
	TaskLoadPrevious = "load_previous"
	TaskProvision    = "provision"
	TaskExportDay    = "export_day"
	TaskExportGbbq   = "export_gbbq"
	TaskInsert       = "insert"
)

var (
	DayTasks  = []string{TaskReadGbbq, TaskLoadPrevious, TaskProvision, TaskExportDay, TaskInsert}
	GbbqTasks = []string{TaskReadGbbq, TaskProvision, TaskExportGbbq, TaskInsert}
)

// NewDayExecutor 复权：读取 gbbq、上次因子，建表后导出并写库
func NewDayExecutor(log zerolog.Logger) *TaskExecutor[DayArgs] {
	return NewTaskExecutor(log,
		&Task[DayArgs]{
			Name:     TaskReadGbbq,
			SkipIf:   func(a *DayArgs) bool { return !a.Adjusted() },
			Executor: executeBuildIndex,
		},
		&Task[DayArgs]{
			Name:     TaskLoadPrevious,
			SkipIf:   func(a *DayArgs) bool { return a.Previous == nil },
			Executor: executeLoadPrevious,
		},
		&Task[DayArgs]{
			Name:     TaskProvision,
			SkipIf:   func(a *DayArgs) bool { return a.Sink == nil || a.Sink.Warehouse == nil },
			Executor: func(ctx context.Context, a *DayArgs) (*TaskResult, error) {
				return provision(ctx, a.Sink, dayTable(a), a.Logger)
			},
		},
		&Task[DayArgs]{
			Name:      TaskExportDay,
			DependsOn: []string{TaskReadGbbq, TaskLoadPrevious, TaskProvision},
			Executor:  executeExportDay,
		},
		&Task[DayArgs]{
			Name:      TaskInsert,
			DependsOn: []string{TaskExportDay},
			SkipIf:    func(a *DayArgs) bool { return a.Sink == nil },
			Executor: func(ctx context.Context, a *DayArgs) (*TaskResult, error) {
				return insert(ctx, a.Sink, dayTable(a), a.OutputPath, a.Logger)
			},
		},
	)
}

// NewGbbqExecutor 股本变迁：解析、过滤导出并写库
func NewGbbqExecutor(log zerolog.Logger) *TaskExecutor[GbbqArgs] {
	return NewTaskExecutor(log,
		&Task[GbbqArgs]{
			Name:     TaskReadGbbq,
			Executor: executeReadGbbq,
		},
		&Task[GbbqArgs]{
			Name:   TaskProvision,
			SkipIf: func(a *GbbqArgs) bool { return a.Sink == nil || a.Sink.Warehouse == nil },
			Executor: func(ctx context.Context, a *GbbqArgs) (*TaskResult, error) {
				return provision(ctx, a.Sink, model.TableGbbq, a.Logger)
			},
		},
		&Task[GbbqArgs]{
			Name:      TaskExportGbbq,
			DependsOn: []string{TaskReadGbbq, TaskProvision},
			Executor:  executeExportGbbq,
		},
		&Task[GbbqArgs]{
			Name:      TaskInsert,
			DependsOn: []string{TaskExportGbbq},
			SkipIf:    func(a *GbbqArgs) bool { return a.Sink == nil },
			Executor: func(ctx context.Context, a *GbbqArgs) (*TaskResult, error) {
				return insert(ctx, a.Sink, model.TableGbbq, a.OutputPath, a.Logger)
			},
		},
	)
}

func dayTable(a *DayArgs) *model.TableMeta {
	if a.Adjusted() {
		return model.TableAdjusted
	}
	return model.TableDay
}

func executeBuildIndex(_ context.Context, a *DayArgs) (*TaskResult, error) {
	events, err := a.Gbbq.ReadFile(a.GbbqPath)
	if err != nil {
		return nil, err
	}
	a.index = calc.NewActionIndex(events)
	a.Logger.Info().
		Int("events", a.index.Len()).
		Int("codes", a.index.Codes()).
		Msg("📖 股本变迁已加载")
	return &TaskResult{Rows: a.index.Len()}, nil
}

func executeLoadPrevious(ctx context.Context, a *DayArgs) (*TaskResult, error) {
	prev, err := a.Previous.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.previous = prev
	a.Logger.Info().Int("codes", len(prev)).Msg("📅 已读取上次复权因子")
	return &TaskResult{Rows: len(prev)}, nil
}

func executeExportDay(ctx context.Context, a *DayArgs) (*TaskResult, error) {
	start := time.Now()
	var (
		reports []export.DirReport
		err     error
	)

	if a.Adjusted() {
		w, werr := utils.NewRowWriter[model.AdjustedRow](a.OutputPath, a.BufferSize)
		if werr != nil {
			return nil, werr
		}
		adj := &calc.Adjuster{Index: a.index, Previous: a.previous}
		reports, err = export.ExportDay(ctx, a.Day, w, export.AdjustedRows(adj))
	} else {
		w, werr := utils.NewRowWriter[model.DayRow](a.OutputPath, a.BufferSize)
		if werr != nil {
			return nil, werr
		}
		reports, err = export.ExportDay(ctx, a.Day, w, export.RawRows)
	}
	a.Reports = reports
	if err != nil {
		return nil, err
	}

	rows := 0
	for _, r := range reports {
		rows += r.Rows
	}
	a.Logger.Info().
		Int("rows", rows).
		Str("output", a.OutputPath).
		Msgf("🎉 日线导出完成，耗时 %s", time.Since(start).Round(time.Millisecond))
	return &TaskResult{Rows: rows}, nil
}

func executeReadGbbq(_ context.Context, a *GbbqArgs) (*TaskResult, error) {
	events, err := a.Reader.ReadFile(a.Path)
	if err != nil {
		return nil, err
	}
	a.events = events
	a.Logger.Info().Int("events", len(events)).Msgf("📖 已解析 %d 条股本变迁记录", len(events))
	return &TaskResult{Rows: len(events)}, nil
}

func executeExportGbbq(ctx context.Context, a *GbbqArgs) (*TaskResult, error) {
	w, err := utils.NewRowWriter[model.ActionRecord](a.OutputPath, a.BufferSize)
	if err != nil {
		return nil, err
	}
	report, err := export.ExportActions(ctx, a.events, a.Filter, w, a.Logger)
	a.Report = report
	if err != nil {
		return nil, err
	}
	return &TaskResult{Rows: report.Written}, nil
}

func provision(ctx context.Context, s *Sink, meta *model.TableMeta, log zerolog.Logger) (*TaskResult, error) {
	if err := database.Provision(ctx, s.Warehouse, s.Table, meta); err != nil {
		return nil, err
	}
	log.Info().Str("table", s.Table.String()).Msg("🗄️ 数据表已就绪")
	return &TaskResult{Message: s.Table.String()}, nil
}

func insert(ctx context.Context, s *Sink, meta *model.TableMeta, path string, log zerolog.Logger) (*TaskResult, error) {
	if err := database.Load(ctx, s.Loader, s.Table, meta, path, s.Keep, log); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return &TaskResult{Message: s.Table.String()}, nil
}
