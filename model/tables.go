package model

import (
	"reflect"
	"strings"
)

type DataType int

const (
	TypeString  DataType = iota
	TypeCode             // 6 位股票代码
	TypeDate             // YYYY-MM-DD
	TypeUInt8            // 类别
	TypeFloat32          // 价格
	TypeFloat64
)

type Column struct {
	Name string
	Type DataType
}

// TableMeta 描述一种输出行的列结构与去重键
type TableMeta struct {
	Columns    []Column
	OrderByKey []string
}

// Names 返回列名，顺序与 CSV 表头一致
func (m *TableMeta) Names() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// SchemaFromStruct 通过反射 col/type 标签生成 TableMeta
func SchemaFromStruct(model interface{}, orderByKey []string) *TableMeta {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var cols []Column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		colName := field.Tag.Get("col")
		if colName == "" {
			colName = strings.ToLower(field.Name)
		}

		var dType DataType
		switch field.Tag.Get("type") {
		case "date":
			dType = TypeDate
		case "code":
			dType = TypeCode
		default:
			switch field.Type.Kind() {
			case reflect.Float32:
				dType = TypeFloat32
			case reflect.Float64:
				dType = TypeFloat64
			case reflect.Uint8:
				dType = TypeUInt8
			default:
				dType = TypeString
			}
		}

		cols = append(cols, Column{Name: colName, Type: dType})
	}

	return &TableMeta{
		Columns:    cols,
		OrderByKey: orderByKey,
	}
}

// --- 输出行 (CSV / Parquet / 数据库) ---

type DayRow struct {
	Date   string  `col:"date"   parquet:"date"      type:"date"`
	Code   string  `col:"code"   parquet:"code,dict" type:"code"`
	Open   float32 `col:"open"   parquet:"open"`
	High   float32 `col:"high"   parquet:"high"`
	Low    float32 `col:"low"    parquet:"low"`
	Close  float32 `col:"close"  parquet:"close"`
	Amount float64 `col:"amount" parquet:"amount"`
	Vol    float64 `col:"vol"    parquet:"vol"`
}

type AdjustedRow struct {
	Date     string  `col:"date"     parquet:"date"      type:"date"`
	Code     string  `col:"code"     parquet:"code,dict" type:"code"`
	Open     float32 `col:"open"     parquet:"open"`
	High     float32 `col:"high"     parquet:"high"`
	Low      float32 `col:"low"      parquet:"low"`
	Close    float32 `col:"close"    parquet:"close"`
	Amount   float64 `col:"amount"   parquet:"amount"`
	Vol      float64 `col:"vol"      parquet:"vol"`
	Preclose float64 `col:"preclose" parquet:"preclose"`
	Factor   float64 `col:"factor"   parquet:"factor"`
}

type ActionRecord struct {
	Market       string  `col:"market"        parquet:"market,dict"`
	Code         string  `col:"code"          parquet:"code,dict"     type:"code"`
	Date         string  `col:"date"          parquet:"date"          type:"date"`
	Category     uint8   `col:"category"      parquet:"category"`
	CategoryName string  `col:"category_name" parquet:"category_name,dict"`
	FhQltp       float32 `col:"fh_qltp"       parquet:"fh_qltp"`
	PgjQzgb      float32 `col:"pgj_qzgb"      parquet:"pgj_qzgb"`
	SgHltp       float32 `col:"sg_hltp"       parquet:"sg_hltp"`
	PgHzgb       float32 `col:"pg_hzgb"       parquet:"pg_hzgb"`
}

var (
	TableDay      = SchemaFromStruct(DayRow{}, []string{"date", "code"})
	TableAdjusted = SchemaFromStruct(AdjustedRow{}, []string{"date", "code"})
	TableGbbq     = SchemaFromStruct(ActionRecord{}, []string{"date", "code", "category"})
)

// Row 转换为未复权输出行
func (b DayBar) Row() DayRow {
	return DayRow{
		Date:   FormatDate(b.Date),
		Code:   FormatCode(b.Code),
		Open:   float32(b.Open),
		High:   float32(b.High),
		Low:    float32(b.Low),
		Close:  float32(b.Close),
		Amount: b.Amount,
		Vol:    b.Vol,
	}
}

// Row 转换为复权输出行
func (b AdjustedBar) Row() AdjustedRow {
	return AdjustedRow{
		Date:     FormatDate(b.Date),
		Code:     FormatCode(b.Code),
		Open:     float32(b.Open),
		High:     float32(b.High),
		Low:      float32(b.Low),
		Close:    float32(b.Close),
		Amount:   b.Amount,
		Vol:      b.Vol,
		Preclose: b.Preclose,
		Factor:   b.Factor,
	}
}

// Record 补充市场、类别名称并格式化日期
func (g GbbqEvent) Record() ActionRecord {
	return ActionRecord{
		Market:       MarketLabel(g.Market),
		Code:         FormatCode(g.Code),
		Date:         FormatDate(g.Date),
		Category:     g.Category,
		CategoryName: CategoryName(g.Category),
		FhQltp:       g.FhQltp,
		PgjQzgb:      g.PgjQzgb,
		SgHltp:       g.SgHltp,
		PgHzgb:       g.PgHzgb,
	}
}
