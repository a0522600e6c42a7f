package duckdb

import (
	"fmt"
	"strings"

	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
)

// Dialect DuckDB 语句，主键保证同一 (date, code) 只保留一行
type Dialect struct{}

// mapType 将通用 DataType 转换为 DuckDB 的 SQL 类型
func (Dialect) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeCode:
		return "VARCHAR"
	case model.TypeDate:
		return "DATE"
	case model.TypeUInt8:
		return "UTINYINT"
	case model.TypeFloat32:
		return "FLOAT"
	case model.TypeFloat64:
		return "DOUBLE"
	default:
		return "VARCHAR"
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
	return fmt.Sprintf(`SELECT
	code,
	max(date) AS date,
	arg_max(close, date) AS close,
	arg_max(factor, date) AS factor
FROM %s
GROUP BY code
ORDER BY code`, ref)
}

// insertQuery 从 csv 读取并按主键覆盖已存在的行
func (d Dialect) insertQuery(ref database.TableRef, meta *model.TableMeta, csvPath string) string {
	var colMaps []string
	for _, col := range meta.Columns {
		colMaps = append(colMaps, fmt.Sprintf("'%s': '%s'", col.Name, d.mapType(col.Type)))
	}

	return fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (%s)
		SELECT * FROM read_csv('%s',
			header=true,
			columns={%s},
			dateformat='%%Y-%%m-%%d'
		)
	`, ref, strings.Join(meta.Names(), ", "), escape(csvPath), strings.Join(colMaps, ", "))
}

func exportQuery(query, dest string) string {
	return fmt.Sprintf("COPY (%s) TO '%s' (FORMAT CSV, HEADER)", query, escape(dest))
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
