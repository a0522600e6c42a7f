package database

import (
	"fmt"
	"strings"

	"github.com/jing2uo/tdxport/model"
)

// TableRef database.table 形式的表名
type TableRef struct {
	Database string
	Table    string
}

// ParseTableRef 第一个点之前为库名，其余为表名
func ParseTableRef(s string) (TableRef, error) {
	db, table, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || db == "" || table == "" {
		return TableRef{}, fmt.Errorf("%w: %q", model.ErrInvalidTable, s)
	}
	return TableRef{Database: db, Table: table}, nil
}

func (r TableRef) String() string {
	return r.Database + "." + r.Table
}

// NonKeyColumns 返回不在去重键中的列
func NonKeyColumns(meta *model.TableMeta) []string {
	keys := make(map[string]struct{}, len(meta.OrderByKey))
	for _, k := range meta.OrderByKey {
		keys[k] = struct{}{}
	}
	var cols []string
	for _, c := range meta.Columns {
		if _, ok := keys[c.Name]; !ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}
