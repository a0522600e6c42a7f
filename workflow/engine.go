package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TaskState represents the state of a task execution
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateCompleted TaskState = "completed"
	StateSkipped   TaskState = "skipped"
	StateFailed    TaskState = "failed"
)

// TaskResult holds the execution result of a task
type TaskResult struct {
	State    TaskState
	Rows     int
	Message  string
	Error    error
	Duration time.Duration
}

// TaskFunc is the function that executes a task
type TaskFunc[A any] func(ctx context.Context, args *A) (*TaskResult, error)

// SkipCondition determines if a task should be skipped
type SkipCondition[A any] func(args *A) bool

// Task represents a unit of work with dependencies
type Task[A any] struct {
	Name      string
	DependsOn []string
	Executor  TaskFunc[A]
	SkipIf    SkipCondition[A]
}

// TaskExecutor 按依赖顺序逐个执行任务；同一批参数在任务间传递中间结果
type TaskExecutor[A any] struct {
	tasks map[string]*Task[A]
	log   zerolog.Logger
}

func NewTaskExecutor[A any](log zerolog.Logger, tasks ...*Task[A]) *TaskExecutor[A] {
	m := make(map[string]*Task[A], len(tasks))
	for _, t := range tasks {
		m[t.Name] = t
	}
	return &TaskExecutor[A]{tasks: m, log: log}
}

// Run 执行 taskNames 中的任务，返回每个任务的结果
// 任一任务失败即停止，未执行的任务保持 pending
func (te *TaskExecutor[A]) Run(ctx context.Context, taskNames []string, args *A) (map[string]*TaskResult, error) {
	results := make(map[string]*TaskResult, len(taskNames))
	if len(taskNames) == 0 {
		return results, nil
	}

	order, err := te.topologicalSort(taskNames)
	if err != nil {
		return results, fmt.Errorf("failed to resolve task dependencies: %w", err)
	}
	for _, name := range order {
		results[name] = &TaskResult{State: StatePending}
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		task := te.tasks[name]

		if task.SkipIf != nil && task.SkipIf(args) {
			results[name] = &TaskResult{State: StateSkipped, Message: "skipped by condition"}
			te.log.Debug().Str("task", name).Msg("skipped by condition")
			continue
		}

		te.log.Debug().Str("task", name).Msg("task started")
		result := te.executeTask(ctx, task, args)
		results[name] = result

		if result.Error != nil {
			return results, fmt.Errorf("task %s failed: %w", name, result.Error)
		}
		te.log.Debug().Str("task", name).Str("state", string(result.State)).Dur("took", result.Duration).Msg("task finished")
	}

	return results, nil
}

func (te *TaskExecutor[A]) executeTask(ctx context.Context, task *Task[A], args *A) *TaskResult {
	start := time.Now()
	result, err := task.Executor(ctx, args)
	if err != nil {
		return &TaskResult{State: StateFailed, Error: err, Duration: time.Since(start)}
	}
	if result == nil {
		result = &TaskResult{}
	}
	if result.State == "" {
		result.State = StateCompleted
	}
	result.Duration = time.Since(start)
	return result
}

// topologicalSort 保持 taskNames 中的相对顺序
func (te *TaskExecutor[A]) topologicalSort(taskNames []string) ([]string, error) {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	taskSet := make(map[string]bool)

	for _, name := range taskNames {
		if _, exists := te.tasks[name]; !exists {
			return nil, fmt.Errorf("task %s not found", name)
		}
		taskSet[name] = true
		inDegree[name] = 0
	}

	for _, name := range taskNames {
		for _, dep := range te.tasks[name].DependsOn {
			if !taskSet[dep] {
				continue
			}
			adj[dep] = append(adj[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for _, name := range taskNames {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var order []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, neighbor := range adj[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(taskNames) {
		return nil, fmt.Errorf("circular dependency detected")
	}
	return order, nil
}
