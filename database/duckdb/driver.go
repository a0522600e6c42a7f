package duckdb

import (
	"context"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"github.com/jmoiron/sqlx"
)

type Driver struct {
	dsn string
	db  *sqlx.DB
}

func NewDriver(path string) *Driver {
	return &Driver{dsn: path}
}

func (d *Driver) Connect(ctx context.Context) error {
	db, err := sqlx.Open("duckdb", d.dsn)
	if err != nil {
		return err
	}
	// 单文件库，写入串行
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("duckdb open %s failed: %w", d.dsn, err)
	}
	d.db = db
	return nil
}

func (d *Driver) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *Driver) Dialect() database.Dialect { return Dialect{} }

func (d *Driver) Execute(ctx context.Context, stmt string) error {
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}

func (d *Driver) BulkInsert(ctx context.Context, ref database.TableRef, meta *model.TableMeta, csvPath string) error {
	_, err := d.db.ExecContext(ctx, Dialect{}.insertQuery(ref, meta, csvPath))
	return err
}

func (d *Driver) ExportQuery(ctx context.Context, query, dest string) error {
	_, err := d.db.ExecContext(ctx, exportQuery(query, dest))
	return err
}
