package clickhouse

import (
	"fmt"
	"strings"

	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
)

// Dialect ClickHouse 语句，ReplacingMergeTree 按排序键合并重复行
type Dialect struct{}

// mapType 针对 ClickHouse 进行类型优化
func (Dialect) mapType(col model.Column) string {
	switch col.Type {
	case model.TypeCode:
		return "FixedString(6)"
	case model.TypeDate:
		return "Date CODEC(DoubleDelta)"
	case model.TypeUInt8:
		return "UInt8"
	case model.TypeFloat32:
		return "Float32"
	case model.TypeFloat64:
		return "Float64"
	default:
		if col.Name == "market" || col.Name == "category_name" {
			return "LowCardinality(String)"
		}
		return "String"
	}
}

func (Dialect) CreateDatabase(db string) string {
	return fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)
}

func (d Dialect) CreateTable(ref database.TableRef, meta *model.TableMeta) string {
	colDefs := make([]string, 0, len(meta.Columns))
	for _, col := range meta.Columns {
		colDefs = append(colDefs, fmt.Sprintf("`%s` %s", col.Name, d.mapType(col)))
	}

	orderBy := "tuple()"
	if len(meta.OrderByKey) > 0 {
		orderBy = "(" + strings.Join(meta.OrderByKey, ", ") + ")"
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
(
    %s
)
ENGINE = ReplacingMergeTree()
ORDER BY %s`, ref, strings.Join(colDefs, ",\n    "), orderBy)
}

func (Dialect) LatestFactors(ref database.TableRef) string {
	return fmt.Sprintf(`WITH
  df AS (
  SELECT
    code,
    arrayLast(
      x -> true,
      arraySort(x -> x.1, groupArray((date, close, factor)))
    ) AS t
  FROM %s
  GROUP BY code
  )
SELECT code, t.1 AS date, t.2 AS close, t.3 AS factor FROM df`, ref)
}

func insertQuery(ref database.TableRef) string {
	return fmt.Sprintf("INSERT INTO %s FORMAT CSVWithNames", ref)
}
