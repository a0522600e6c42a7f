package tdx

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jing2uo/tdxport/model"
)

const DayExt = ".day"

// StockFile 一个待处理的日线文件
type StockFile struct {
	Path   string
	Stem   string // sz000001
	Market string // sz / sh / bj, 裸代码文件按代码推断
	Code   uint32
}

// CodeString 6 位代码
func (f StockFile) CodeString() string {
	return model.FormatCode(f.Code)
}

// Symbol 市场加代码，如 sz000001
func (f StockFile) Symbol() string {
	return f.Market + f.CodeString()
}

// HasPrefix 任一前缀匹配 Symbol 即可，如 sz30、sh6、sh000300；空列表全部接受
func (f StockFile) HasPrefix(prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	sym := f.Symbol()
	for _, p := range prefixes {
		if strings.HasPrefix(sym, p) {
			return true
		}
	}
	return false
}

// ParseStockFile 从文件名解析市场前缀与代码
// 支持 sz000001.day 与 000001.day，无法解析时返回 false
func ParseStockFile(path string) (StockFile, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, DayExt) {
		return StockFile{}, false
	}
	stem := strings.TrimSuffix(base, DayExt)
	if len(stem) < 6 {
		return StockFile{}, false
	}

	digits := stem[len(stem)-6:]
	market := stem[:len(stem)-6]
	for _, r := range market {
		if r < 'a' || r > 'z' {
			return StockFile{}, false
		}
	}
	code, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return StockFile{}, false
	}

	if market == "" {
		market, _ = MarketOf(digits)
	}
	return StockFile{Path: path, Stem: stem, Market: market, Code: uint32(code)}, true
}

// MarketOf 根据代码前两位推断交易所
func MarketOf(code string) (string, bool) {
	if len(code) < 2 {
		return "", false
	}
	switch code[:2] {
	case "00", "30":
		return "sz", true
	case "60", "68":
		return "sh", true
	case "92", "87", "83", "43":
		return "bj", true
	default:
		return "", false
	}
}
