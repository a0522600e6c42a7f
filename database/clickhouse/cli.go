package clickhouse

import (
	"context"
	"fmt"
	"os"

	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// CLIClient 通过 clickhouse-client 进程访问数据库
type CLIClient struct {
	Binary string
	Runner database.Runner
	Logger zerolog.Logger
}

func NewCLIClient(binary string, log zerolog.Logger) *CLIClient {
	if binary == "" {
		binary = "clickhouse-client"
	}
	return &CLIClient{Binary: binary, Runner: database.ExecRunner{}, Logger: log}
}

func (c *CLIClient) Dialect() database.Dialect { return Dialect{} }

func (c *CLIClient) Close() error { return nil }

func (c *CLIClient) Execute(ctx context.Context, stmt string) error {
	c.Logger.Debug().Msgf("%s --query %q", c.Binary, stmt)
	return c.Runner.Run(ctx, c.Binary, []string{"--query", stmt}, nil, nil)
}

// BulkInsert clickhouse-client --query "INSERT INTO t FORMAT CSVWithNames" < file
func (c *CLIClient) BulkInsert(ctx context.Context, ref database.TableRef, _ *model.TableMeta, csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	q := insertQuery(ref)
	c.Logger.Debug().Msgf("%s --query %q < %s", c.Binary, q, csvPath)
	return c.Runner.Run(ctx, c.Binary, []string{"--query", q}, f, nil)
}

// ExportQuery 查询结果以 CSVWithNames 写入 dest
func (c *CLIClient) ExportQuery(ctx context.Context, query, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	args := []string{"--query", query, "--format", "CSVWithNames"}
	c.Logger.Debug().Msgf("%s --query %q > %s", c.Binary, query, dest)
	return c.Runner.Run(ctx, c.Binary, args, nil, f)
}
