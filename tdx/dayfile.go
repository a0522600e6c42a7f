package tdx

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"os"

	"github.com/jing2uo/tdxport/model"
)

// dayRecordSize .day 文件每条记录 32 字节
const dayRecordSize = 32

// DayDecoder 把一个 .day 文件的内容解码为日线序列
type DayDecoder interface {
	Decode(data []byte, code uint32) iter.Seq2[model.DayBar, error]
}

// DecodeError 单个文件解码失败，调用方记录日志后跳过该文件
type DecodeError struct {
	Path   string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("decode %s at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DayFileDecoder 通达信 vipdoc/*/lday/*.day 格式
//
// 记录布局 (小端):
//
//	0  date   uint32 YYYYMMDD
//	4  open   uint32 价格 * 100
//	8  high   uint32
//	12 low    uint32
//	16 close  uint32
//	20 amount float32
//	24 vol    uint32
//	28 保留
type DayFileDecoder struct{}

func (DayFileDecoder) Decode(data []byte, code uint32) iter.Seq2[model.DayBar, error] {
	return func(yield func(model.DayBar, error) bool) {
		if len(data)%dayRecordSize != 0 {
			yield(model.DayBar{}, &DecodeError{
				Offset: len(data) - len(data)%dayRecordSize,
				Err:    fmt.Errorf("data length %d is not a multiple of %d", len(data), dayRecordSize),
			})
			return
		}

		for off := 0; off < len(data); off += dayRecordSize {
			rec := data[off : off+dayRecordSize]
			date := binary.LittleEndian.Uint32(rec[0:4])
			if !model.ValidDate(date) {
				yield(model.DayBar{}, &DecodeError{Offset: off, Err: fmt.Errorf("invalid date value: %08d", date)})
				return
			}

			bar := model.DayBar{
				Date:   date,
				Code:   code,
				Open:   float64(binary.LittleEndian.Uint32(rec[4:8])) / 100,
				High:   float64(binary.LittleEndian.Uint32(rec[8:12])) / 100,
				Low:    float64(binary.LittleEndian.Uint32(rec[12:16])) / 100,
				Close:  float64(binary.LittleEndian.Uint32(rec[16:20])) / 100,
				Amount: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[20:24]))),
				Vol:    float64(binary.LittleEndian.Uint32(rec[24:28])),
			}
			if !yield(bar, nil) {
				return
			}
		}
	}
}

// ReadDayFile 读取并完整解码一个文件，任一记录出错则整个文件作废
func ReadDayFile(dec DayDecoder, path string, code uint32) ([]model.DayBar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	bars := make([]model.DayBar, 0, len(data)/dayRecordSize)
	for bar, err := range dec.Decode(data, code) {
		if err != nil {
			if de, ok := err.(*DecodeError); ok {
				de.Path = path
				return nil, de
			}
			return nil, &DecodeError{Path: path, Err: err}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// EncodeDayRecord 生成一条 .day 记录，测试和数据修复时使用
func EncodeDayRecord(bar model.DayBar) []byte {
	rec := make([]byte, dayRecordSize)
	binary.LittleEndian.PutUint32(rec[0:4], bar.Date)
	binary.LittleEndian.PutUint32(rec[4:8], uint32(math.Round(bar.Open*100)))
	binary.LittleEndian.PutUint32(rec[8:12], uint32(math.Round(bar.High*100)))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(math.Round(bar.Low*100)))
	binary.LittleEndian.PutUint32(rec[16:20], uint32(math.Round(bar.Close*100)))
	binary.LittleEndian.PutUint32(rec[20:24], math.Float32bits(float32(bar.Amount)))
	binary.LittleEndian.PutUint32(rec[24:28], uint32(bar.Vol))
	return rec
}
