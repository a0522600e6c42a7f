package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jing2uo/tdxport/config"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/database/clickhouse"
	"github.com/jing2uo/tdxport/database/duckdb"
	"github.com/jing2uo/tdxport/database/mongo"
	"github.com/jing2uo/tdxport/database/postgres"
	"github.com/jing2uo/tdxport/logging"
	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/tdx"
	"github.com/jing2uo/tdxport/utils"
	"github.com/jing2uo/tdxport/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// OutputKind -o 参数的目标类型
type OutputKind string

const (
	OutputFile       OutputKind = "file"
	OutputClickHouse OutputKind = "clickhouse"
	OutputDuckDB     OutputKind = "duckdb"
	OutputPostgres   OutputKind = "postgres"
	OutputMongoDB    OutputKind = "mongodb"
)

// ParseOutput 文件路径需以 .csv 或 .parquet 结尾，否则为数据库关键字
func ParseOutput(s string) (OutputKind, error) {
	switch k := OutputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case OutputClickHouse, OutputDuckDB, OutputPostgres, OutputMongoDB:
		return k, nil
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".csv", ".parquet":
		return OutputFile, nil
	}
	return "", fmt.Errorf("%w: %q (expected a .csv/.parquet path or clickhouse|duckdb|postgres|mongodb)", model.ErrUnsupportedOutput, s)
}

// IsWarehouse 支持建表与查询的目标
func (k OutputKind) IsWarehouse() bool {
	return k == OutputClickHouse || k == OutputDuckDB || k == OutputPostgres
}

// Env 一次运行共享的配置、日志与中间文件目录
type Env struct {
	Config  *config.Config
	Logger  zerolog.Logger
	RunID   string
	WorkDir string

	// 测试中替换外部客户端进程
	Runner database.Runner
}

// NewEnv 读取配置并创建日志
func NewEnv(v *viper.Viper, cfgPath string) (*Env, error) {
	cfg, err := config.Load(v, cfgPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logging.New(cfg.Log, runID)

	workDir, err := utils.GetWorkDir(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare work dir: %w", err)
	}

	return &Env{Config: cfg, Logger: log, RunID: runID, WorkDir: workDir, Runner: database.ExecRunner{}}, nil
}

// ArtifactPath 写库前的中间 csv，文件名带 run id
func (e *Env) ArtifactPath(ref database.TableRef) string {
	return filepath.Join(e.WorkDir, fmt.Sprintf("%s-%s.csv", ref.Table, e.RunID))
}

// GbbqReader gbbq.plain 为 true 时不解密，否则需要 gbbq.keys
func (e *Env) GbbqReader() (*tdx.GbbqReader, error) {
	if e.Config.Gbbq.Plain {
		return &tdx.GbbqReader{Cipher: tdx.PlainCipher{}, Logger: e.Logger}, nil
	}
	if e.Config.Gbbq.Keys == "" {
		return nil, model.ErrKeysNotConfigured
	}
	keys, err := tdx.LoadKeys(e.Config.Gbbq.Keys)
	if err != nil {
		return nil, err
	}
	cipher, err := tdx.NewTableCipher(keys)
	if err != nil {
		return nil, err
	}
	return &tdx.GbbqReader{Cipher: cipher, Logger: e.Logger}, nil
}

// OpenWarehouse 按配置连接数据库
func (e *Env) OpenWarehouse(ctx context.Context, kind OutputKind) (database.WarehouseClient, error) {
	cfg := e.Config
	switch kind {
	case OutputClickHouse:
		if cfg.ClickHouse.DSN == "" {
			c := clickhouse.NewCLIClient(cfg.ClickHouse.Client, e.Logger)
			c.Runner = e.Runner
			return c, nil
		}
		u, err := url.Parse(cfg.ClickHouse.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
		}
		d, err := clickhouse.NewDriver(u)
		if err != nil {
			return nil, err
		}
		if err := d.Connect(ctx); err != nil {
			return nil, err
		}
		return d, nil
	case OutputDuckDB:
		d := duckdb.NewDriver(cfg.DuckDB.Path)
		if err := d.Connect(ctx); err != nil {
			return nil, err
		}
		return d, nil
	case OutputPostgres:
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres.dsn is required for postgres output")
		}
		d := postgres.NewDriver(cfg.Postgres.DSN)
		if err := d.Connect(ctx); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a queryable warehouse", model.ErrNoWarehouseForPrev, kind)
	}
}

// OpenSink 数据库输出的写入目标；返回的 Sink 需要调用 Close
func (e *Env) OpenSink(ctx context.Context, kind OutputKind, table string, keep bool) (*workflow.Sink, error) {
	ref, err := database.ParseTableRef(table)
	if err != nil {
		return nil, err
	}
	if kind == OutputMongoDB {
		l := mongo.NewLoader(e.Config.MongoDB.Import, e.Config.MongoDB.URI, e.Logger)
		l.Runner = e.Runner
		return &workflow.Sink{Loader: l, Table: ref, Keep: keep}, nil
	}

	wh, err := e.OpenWarehouse(ctx, kind)
	if err != nil {
		return nil, err
	}
	return &workflow.Sink{Loader: wh, Warehouse: wh, Table: ref, Keep: keep}, nil
}

// closeAll 关闭数据库连接，忽略 nil
func closeAll(closers ...database.Loader) error {
	var err error
	for _, c := range closers {
		if c != nil {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// checkOutputFile 确认输出文件所在目录可写
func checkOutputFile(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return utils.CheckOutputDir(dir)
}

// FetchGbbq 地址为 URL 时下载到工作目录，返回本地路径与清理函数
func (e *Env) FetchGbbq(ctx context.Context, src string) (string, func(), error) {
	if !utils.IsURL(src) {
		return src, func() {}, utils.CheckGbbqFile(src)
	}

	name := "gbbq-" + e.RunID
	if u, err := url.Parse(src); err == nil {
		name += path.Ext(u.Path)
	}
	target := filepath.Join(e.WorkDir, name)

	e.Logger.Info().Str("url", src).Msg("🌐 正在下载 gbbq")
	if err := utils.DownloadFile(ctx, src, target); err != nil {
		return "", func() {}, fmt.Errorf("failed to download gbbq: %w", err)
	}
	cleanup := func() { os.Remove(target) }
	if err := utils.CheckGbbqFile(target); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return target, cleanup, nil
}
