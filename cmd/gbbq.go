package cmd

import (
	"context"

	"github.com/jing2uo/tdxport/export"
	"github.com/jing2uo/tdxport/workflow"
	"go.uber.org/multierr"
)

const (
	DefaultGbbqOutput = "gbbq_output.csv"
	DefaultGbbqTable  = "rustdx.gbbq"
)

// GbbqOptions gbbq 子命令参数
type GbbqOptions struct {
	File      string
	Output    string
	KeepCSV   bool
	Table     string
	Category  int // 负数表示不过滤
	Stocks    string
	DateRange string
}

// Gbbq 解析股本变迁文件，按类别、代码、日期过滤后导出
func Gbbq(ctx context.Context, env *Env, opts GbbqOptions) (err error) {
	if opts.Output == "" {
		opts.Output = DefaultGbbqOutput
	}
	if opts.Table == "" {
		opts.Table = DefaultGbbqTable
	}
	kind, err := ParseOutput(opts.Output)
	if err != nil {
		return err
	}

	filter, err := export.NewActionFilter(opts.Category, opts.Stocks, opts.DateRange)
	if err != nil {
		return err
	}
	reader, err := env.GbbqReader()
	if err != nil {
		return err
	}

	local, cleanup, err := env.FetchGbbq(ctx, opts.File)
	if err != nil {
		return err
	}
	defer cleanup()

	args := &workflow.GbbqArgs{
		Path:       local,
		Reader:     reader,
		Filter:     filter,
		OutputPath: opts.Output,
		BufferSize: env.Config.BufferSize,
		Logger:     env.Logger,
	}

	if kind == OutputFile {
		if err := checkOutputFile(opts.Output); err != nil {
			return err
		}
	} else {
		sink, serr := env.OpenSink(ctx, kind, opts.Table, opts.KeepCSV)
		if serr != nil {
			return serr
		}
		defer func() {
			err = multierr.Append(err, closeAll(sink.Loader))
		}()
		args.Sink = sink
		args.OutputPath = env.ArtifactPath(sink.Table)
	}

	env.Logger.Info().Str("file", opts.File).Str("output", opts.Output).Msg("🚀 开始解析股本变迁")
	_, err = workflow.NewGbbqExecutor(env.Logger).Run(ctx, workflow.GbbqTasks, args)
	return err
}
