package database

import (
	"context"

	"github.com/jing2uo/tdxport/model"
)

// Loader 把导出的 csv 批量写入目标库
type Loader interface {
	BulkInsert(ctx context.Context, ref TableRef, meta *model.TableMeta, csvPath string) error
	Close() error
}

// WarehouseClient 支持建库建表与查询导出的分析型数据库
type WarehouseClient interface {
	Loader
	Execute(ctx context.Context, stmt string) error
	// ExportQuery 把查询结果以带表头的 csv 写入 dest
	ExportQuery(ctx context.Context, query, dest string) error
	Dialect() Dialect
}

// Dialect 各数据库的建表与查询语句
type Dialect interface {
	CreateDatabase(database string) string
	CreateTable(ref TableRef, meta *model.TableMeta) string
	// LatestFactors 每只股票按日期最新的 code, date, close, factor
	LatestFactors(ref TableRef) string
}
