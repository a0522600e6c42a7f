package model

import "fmt"

// DayBar 单只股票一个交易日的原始日线
type DayBar struct {
	Date   uint32 // YYYYMMDD
	Code   uint32
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Amount float64
	Vol    float64
}

// AdjustedBar 附带前收盘价与复权因子的日线
type AdjustedBar struct {
	DayBar
	Preclose float64
	Factor   float64
}

// GbbqEvent 股本变迁 (除权除息等) 记录
type GbbqEvent struct {
	Market   uint8
	Code     uint32
	Date     uint32
	Category uint8
	FhQltp   float32 // 分红 / 前流通盘
	PgjQzgb  float32 // 配股价 / 前总股本
	SgHltp   float32 // 送转股 / 后流通盘
	PgHzgb   float32 // 配股 / 后总股本
}

// Factor 上一次导出时每只股票最后的收盘价与累计复权因子
type Factor struct {
	Code   uint32
	Date   uint32
	Close  float64
	Factor float64
}

// CategoryXdxr 除权除息
const CategoryXdxr uint8 = 1

var categoryNames = map[uint8]string{
	1:  "除权除息",
	2:  "送配股上市",
	3:  "非流通股上市",
	4:  "未知股本变动",
	5:  "股本变化",
	6:  "增发新股",
	7:  "股份回购",
	8:  "增发新股上市",
	9:  "转配股上市",
	10: "可转债上市",
	11: "扩缩股",
	12: "非流通股缩股",
	13: "送认购权证",
	14: "送认沽权证",
}

// CategoryName 类别名称，1-14 之外的值返回 Unknown Category (n)
func CategoryName(category uint8) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Category (%d)", category)
}

// MarketLabel 市场字节转为 SZ/SH，其他值原样输出
func MarketLabel(market uint8) string {
	switch market {
	case 1:
		return "SZ"
	case 2:
		return "SH"
	default:
		return fmt.Sprintf("%d", market)
	}
}

// FormatCode 补齐为 6 位代码
func FormatCode(code uint32) string {
	return fmt.Sprintf("%06d", code)
}

// FormatDate YYYYMMDD 转为 YYYY-MM-DD
func FormatDate(date uint32) string {
	return fmt.Sprintf("%04d-%02d-%02d", date/10000, (date%10000)/100, date%100)
}

// ValidDate 粗略检查 YYYYMMDD 的年月日范围
func ValidDate(date uint32) bool {
	y := date / 10000
	m := (date % 10000) / 100
	d := date % 100
	return y >= 1900 && y <= 9999 && m >= 1 && m <= 12 && d >= 1 && d <= 31
}
