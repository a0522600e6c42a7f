package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"go.uber.org/multierr"
)

// Dialect PostgreSQL 语句，冲突时按主键覆盖
type Dialect struct{}

func (Dialect) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeCode:
		return "CHAR(6)"
	case model.TypeDate:
		return "DATE"
	case model.TypeUInt8:
		return "SMALLINT"
	case model.TypeFloat32:
		return "REAL"
	case model.TypeFloat64:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (Dialect) CreateDatabase(db string) string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", db)
}

func (d Dialect) CreateTable(ref database.TableRef, meta *model.TableMeta) string {
	var colDefs []string
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("%s %s", col.Name, d.mapType(col.Type)))
	}
	if len(meta.OrderByKey) > 0 {
		colDefs = append(colDefs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(meta.OrderByKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ref, strings.Join(colDefs, ", "))
}

func (Dialect) LatestFactors(ref database.TableRef) string {
	return fmt.Sprintf(`SELECT DISTINCT ON (code) code, date, close, factor
FROM %s
ORDER BY code, date DESC`, ref)
}

// upsertQuery 从暂存表合并到目标表
func upsertQuery(ref database.TableRef, stage string, meta *model.TableMeta) string {
	cols := strings.Join(meta.Names(), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", ref, cols, cols, stage)
	if len(meta.OrderByKey) == 0 {
		return q
	}

	var sets []string
	for _, c := range database.NonKeyColumns(meta) {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	q += fmt.Sprintf(" ON CONFLICT (%s)", strings.Join(meta.OrderByKey, ", "))
	if len(sets) == 0 {
		return q + " DO NOTHING"
	}
	return q + " DO UPDATE SET " + strings.Join(sets, ", ")
}

type Driver struct {
	dsn  string
	pool *pgxpool.Pool
}

func NewDriver(dsn string) *Driver {
	return &Driver{dsn: dsn}
}

func (d *Driver) Connect(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(d.dsn)
	if err != nil {
		return fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	d.pool = pool
	return nil
}

func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

func (d *Driver) Dialect() database.Dialect { return Dialect{} }

func (d *Driver) Execute(ctx context.Context, stmt string) error {
	_, err := d.pool.Exec(ctx, stmt)
	return err
}

// BulkInsert COPY 到临时表，再 upsert 到目标表
func (d *Driver) BulkInsert(ctx context.Context, ref database.TableRef, meta *model.TableMeta, csvPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	stage := pgx.Identifier{"tdxport_stage_" + ref.Table}.Sanitize()
	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s) ON COMMIT DROP", stage, ref)); err != nil {
		return fmt.Errorf("create stage: %w", err)
	}

	copySQL := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv, HEADER true)", stage, strings.Join(meta.Names(), ", "))
	tag, err := tx.Conn().PgConn().CopyFrom(ctx, f, copySQL)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, upsertQuery(ref, stage, meta)); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return tx.Commit(ctx)
}

func (d *Driver) ExportQuery(ctx context.Context, query, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	_, err = conn.Conn().PgConn().CopyTo(ctx, f, fmt.Sprintf("COPY (%s) TO STDOUT WITH (FORMAT csv, HEADER true)", query))
	return err
}
