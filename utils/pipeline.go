package utils

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// PipelineResult 执行结果统计
type PipelineResult struct {
	TotalItems     int
	ProcessedItems int
	OutputRows     int
	Errors         []error
	Duration       time.Duration
}

// Pipeline 顺序处理管道: 输入依次经过 process，结果按输入顺序交给 consume
//
// process 返回的错误只影响当前输入，记录后继续；consume 的错误终止整个运行。
type Pipeline[I, O any] struct {
	onError func(input I, err error)
}

type PipelineOption[I any] func(*pipelineConfig[I])

type pipelineConfig[I any] struct {
	onError func(input I, err error)
}

// WithErrorHandler 单个输入处理失败时回调，通常用于记录日志
func WithErrorHandler[I any](fn func(input I, err error)) PipelineOption[I] {
	return func(c *pipelineConfig[I]) {
		c.onError = fn
	}
}

func NewPipeline[I, O any](opts ...PipelineOption[I]) *Pipeline[I, O] {
	cfg := &pipelineConfig[I]{}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Pipeline[I, O]{onError: cfg.onError}
}

func (p *Pipeline[I, O]) Run(
	ctx context.Context,
	inputs iter.Seq[I],
	process func(ctx context.Context, input I) ([]O, error),
	consume func(rows []O) error,
) (*PipelineResult, error) {
	startTime := time.Now()
	result := &PipelineResult{}

	for input := range inputs {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(startTime)
			return result, err
		}
		result.TotalItems++

		rows, err := process(ctx, input)
		if err != nil {
			result.Errors = append(result.Errors, err)
			if p.onError != nil {
				p.onError(input, err)
			}
			continue
		}
		result.ProcessedItems++

		if len(rows) == 0 {
			continue
		}
		if err := consume(rows); err != nil {
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("consume error: %w", err)
		}
		result.OutputRows += len(rows)
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

// RunWithWriter 把结果写入同一个 RowWriter
func (p *Pipeline[I, O]) RunWithWriter(
	ctx context.Context,
	inputs iter.Seq[I],
	process func(ctx context.Context, input I) ([]O, error),
	writer RowWriter[O],
) (*PipelineResult, error) {
	return p.Run(ctx, inputs, process, writer.Write)
}

func (r *PipelineResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *PipelineResult) ErrorSummary() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%d errors, first: %v", len(r.Errors), r.Errors[0])
}
