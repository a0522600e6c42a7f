package cmd

import (
	"context"
	"fmt"

	"github.com/jing2uo/tdxport/calc"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/export"
	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/utils"
	"github.com/jing2uo/tdxport/workflow"
	"go.uber.org/multierr"
)

const (
	DefaultDayTable    = "rustdx.day"
	DefaultFactorTable = "rustdx.factor"
)

// DayOptions day 子命令参数
type DayOptions struct {
	Dirs       []string
	Output     string
	Gbbq       string
	Previous   string // csv 路径，或 clickhouse/duckdb/postgres 从数据库读取
	Table      string
	Take       int // 负数表示全部
	Stocks     string
	StocksCol  int
	KeepCSV    bool
	KeepFactor bool
}

// Validate 检查参数组合，展开 vipdoc 目录并补全默认表名
func (o *DayOptions) Validate() error {
	if len(o.Dirs) == 0 {
		return fmt.Errorf("at least one day file directory is required")
	}
	if o.Previous != "" && o.Gbbq == "" {
		return fmt.Errorf("--previous: %w", model.ErrMissingGbbq)
	}
	if o.Table == "" {
		o.Table = DefaultDayTable
		if o.Gbbq != "" {
			o.Table = DefaultFactorTable
		}
	}
	var dirs []string
	for _, dir := range o.Dirs {
		resolved, err := utils.ResolveDayDir(dir)
		if err != nil {
			return err
		}
		dirs = append(dirs, resolved...)
	}
	o.Dirs = dirs
	if o.Gbbq != "" && !utils.IsURL(o.Gbbq) {
		if err := utils.CheckGbbqFile(o.Gbbq); err != nil {
			return err
		}
	}
	return nil
}

// Day 导出日线，指定 gbbq 时计算复权
func Day(ctx context.Context, env *Env, opts DayOptions) (err error) {
	if err := opts.Validate(); err != nil {
		return err
	}
	kind, err := ParseOutput(opts.Output)
	if err != nil {
		return err
	}
	log := env.Logger

	universe, err := export.LoadUniverse(opts.Stocks, opts.StocksCol)
	if err != nil {
		return err
	}
	if universe != nil {
		log.Info().Int("stocks", universe.Len()).Msg("📋 已加载股票列表")
	}

	args := &workflow.DayArgs{
		Day: export.DayOptions{
			Dirs:     opts.Dirs,
			Take:     opts.Take,
			Universe: universe,
			Prefixes: env.Config.Prefixes,
			Logger:   log,
		},
		GbbqPath:   opts.Gbbq,
		OutputPath: opts.Output,
		BufferSize: env.Config.BufferSize,
		Logger:     log,
	}

	if opts.Gbbq != "" {
		if args.Gbbq, err = env.GbbqReader(); err != nil {
			return err
		}
		local, cleanup, ferr := env.FetchGbbq(ctx, opts.Gbbq)
		if ferr != nil {
			return ferr
		}
		defer cleanup()
		args.GbbqPath = local
	}

	var sink *workflow.Sink
	if kind == OutputFile {
		if err := checkOutputFile(opts.Output); err != nil {
			return err
		}
	} else {
		if sink, err = env.OpenSink(ctx, kind, opts.Table, opts.KeepCSV); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, closeAll(sink.Loader))
		}()
		args.Sink = sink
		args.OutputPath = env.ArtifactPath(sink.Table)
	}

	if opts.Previous != "" {
		src, closer, perr := previousSource(ctx, env, opts, kind, sink)
		if perr != nil {
			return perr
		}
		if closer != nil {
			defer func() {
				err = multierr.Append(err, closeAll(closer))
			}()
		}
		args.Previous = src
	}

	log.Info().
		Strs("dirs", opts.Dirs).
		Str("output", opts.Output).
		Bool("adjusted", args.Adjusted()).
		Bool("incremental", args.Previous != nil).
		Msg("🚀 开始导出日线")

	_, err = workflow.NewDayExecutor(log).Run(ctx, workflow.DayTasks, args)
	return err
}

// previousSource 关键字对应数据库时查询最新因子，否则按 csv 读取
// 与输出为同一数据库时复用连接；新建的连接通过第二个返回值关闭
func previousSource(ctx context.Context, env *Env, opts DayOptions, out OutputKind, sink *workflow.Sink) (calc.FactorSource, database.Loader, error) {
	kind, err := ParseOutput(opts.Previous)
	if err != nil || kind == OutputFile {
		// 不是数据库关键字，按本地文件处理
		if err := utils.CheckFile(opts.Previous); err != nil {
			return nil, nil, err
		}
		return &calc.CSVFactorSource{Path: opts.Previous, Keep: opts.KeepFactor, Logger: env.Logger}, nil, nil
	}
	if !kind.IsWarehouse() {
		return nil, nil, fmt.Errorf("--previous %s: %w", opts.Previous, model.ErrNoWarehouseForPrev)
	}

	var (
		wh     database.WarehouseClient
		closer database.Loader
	)
	if kind == out && sink != nil && sink.Warehouse != nil {
		wh = sink.Warehouse
	} else {
		if wh, err = env.OpenWarehouse(ctx, kind); err != nil {
			return nil, nil, err
		}
		closer = wh
	}

	return &calc.WarehouseFactorSource{
		Exporter: database.FactorExporter{Client: wh},
		Table:    opts.Table,
		WorkDir:  env.WorkDir,
		RunID:    env.RunID,
		Keep:     opts.KeepFactor,
		Logger:   env.Logger,
	}, closer, nil
}
