package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jing2uo/tdxport/tdx"
	"github.com/xuri/excelize/v2"
)

// Universe 股票白名单；nil 表示不过滤
type Universe struct {
	codes map[string]struct{}
}

func NewUniverse(codes []string) *Universe {
	u := &Universe{codes: make(map[string]struct{}, len(codes))}
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			u.codes[c] = struct{}{}
		}
	}
	return u
}

// Allows 按文件名 (sz000001) 或 6 位代码 (000001) 精确匹配
func (u *Universe) Allows(f tdx.StockFile) bool {
	if u == nil {
		return true
	}
	if _, ok := u.codes[f.Stem]; ok {
		return true
	}
	_, ok := u.codes[f.CodeString()]
	return ok
}

// Contains 精确匹配一个代码字符串
func (u *Universe) Contains(code string) bool {
	if u == nil {
		return true
	}
	_, ok := u.codes[code]
	return ok
}

func (u *Universe) Len() int {
	if u == nil {
		return 0
	}
	return len(u.codes)
}

// LoadUniverse 解析 --stocks 参数
//
//	空字符串        不过滤
//	*.xlsx         第一个工作表的第 col 列 (从 0 开始)，跳过表头
//	已存在的文件     逗号或换行分隔的代码
//	其他            逗号分隔的代码
func LoadUniverse(spec string, col int) (*Universe, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	if strings.EqualFold(filepath.Ext(spec), ".xlsx") {
		codes, err := readXlsxCodes(spec, col)
		if err != nil {
			return nil, err
		}
		return NewUniverse(codes), nil
	}

	if info, err := os.Stat(spec); err == nil && info.Mode().IsRegular() {
		data, err := os.ReadFile(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to read stock list: %w", err)
		}
		return NewUniverse(splitCodes(string(data))), nil
	}

	return NewUniverse(splitCodes(spec)), nil
}

func splitCodes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
}

func readXlsxCodes(path string, col int) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stock list %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheet in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var codes []string
	for i, row := range rows {
		if i == 0 || col >= len(row) {
			continue
		}
		if code := normalizeCell(row[col]); code != "" {
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// normalizeCell 数值单元格补齐为 6 位代码，如 1 或 1.0 -> 000001
func normalizeCell(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return ""
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil && v >= 0 && v < 1e6 && v == float64(int64(v)) {
		if len(cell) < 6 || strings.ContainsAny(cell, ".eE") {
			return fmt.Sprintf("%06d", int64(v))
		}
	}
	return cell
}
