package tdx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/utils"
	"github.com/rs/zerolog"
)

const (
	gbbqHeaderSize = 4
	gbbqRecordSize = 29 // 3 个 8 字节加密块 + 5 字节明文
	gbbqKeysSize   = 0x1048
)

// BlockCipher 解密 gbbq 记录中的 8 字节块
type BlockCipher interface {
	DecryptBlock(dst, src []byte)
}

// TableCipher 通达信 gbbq 使用的查表 Feistel 解密
type TableCipher struct {
	keys []byte
}

func NewTableCipher(keys []byte) (*TableCipher, error) {
	if len(keys) < gbbqKeysSize {
		return nil, fmt.Errorf("gbbq key table too short: %d bytes, need %d", len(keys), gbbqKeysSize)
	}
	return &TableCipher{keys: keys}, nil
}

func (c *TableCipher) key(off int) uint32 {
	return binary.LittleEndian.Uint32(c.keys[off : off+4])
}

func (c *TableCipher) round(num uint32) uint32 {
	v := c.key(int((num>>16)&0xFF)*4 + 0x448)
	v += c.key(int(num>>24)*4 + 0x48)
	v ^= c.key(int((num>>8)&0xFF)*4 + 0x848)
	v += c.key(int(num&0xFF)*4 + 0xC48)
	return v
}

func (c *TableCipher) DecryptBlock(dst, src []byte) {
	num := c.key(0x44) ^ binary.LittleEndian.Uint32(src[0:4])
	numold := binary.LittleEndian.Uint32(src[4:8])

	for j := 0x40; j >= 4; j -= 4 {
		eax := c.round(num) ^ c.key(j)
		num, numold = numold^eax, num
	}

	binary.LittleEndian.PutUint32(dst[0:4], numold^c.key(0))
	binary.LittleEndian.PutUint32(dst[4:8], num)
}

// PlainCipher 用于已解密的 gbbq 文件
type PlainCipher struct{}

func (PlainCipher) DecryptBlock(dst, src []byte) { copy(dst[:8], src[:8]) }

// LoadKeys 读取密钥表，文件可以是十六进制文本或原始字节
func LoadKeys(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gbbq keys: %w", err)
	}

	text := strings.Join(strings.Fields(string(raw)), "")
	if isHex(text) {
		keys, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("failed to decode hex keys: %w", err)
		}
		return keys, nil
	}
	return raw, nil
}

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// GbbqReader 解析股本变迁文件
type GbbqReader struct {
	Cipher BlockCipher
	Logger zerolog.Logger
}

// ReadFile 读取 gbbq 文件，.zip 压缩包中读取名为 gbbq 的条目
func (r *GbbqReader) ReadFile(path string) ([]model.GbbqEvent, error) {
	var (
		content []byte
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		content, err = utils.ReadZipEntry(path, "gbbq")
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read gbbq file %s: %w", path, err)
	}
	return r.Decode(content), nil
}

// Decode 解析记录；单条记录无法解析时记录日志并跳过
func (r *GbbqReader) Decode(content []byte) []model.GbbqEvent {
	if len(content) < gbbqHeaderSize {
		return nil
	}

	count := int(binary.LittleEndian.Uint32(content[0:gbbqHeaderSize]))
	if avail := (len(content) - gbbqHeaderSize) / gbbqRecordSize; avail < count {
		r.Logger.Warn().Int("declared", count).Int("available", avail).Msg("⚠️ gbbq 文件被截断")
		count = avail
	}

	result := make([]model.GbbqEvent, 0, count)
	var plain [gbbqRecordSize]byte
	pos := gbbqHeaderSize

	for i := 0; i < count; i++ {
		rec := content[pos : pos+gbbqRecordSize]
		pos += gbbqRecordSize

		r.Cipher.DecryptBlock(plain[0:8], rec[0:8])
		r.Cipher.DecryptBlock(plain[8:16], rec[8:16])
		r.Cipher.DecryptBlock(plain[16:24], rec[16:24])
		copy(plain[24:29], rec[24:29])

		ev, err := parseGbbqRecord(plain[:])
		if err != nil {
			r.Logger.Debug().Int("index", i).Err(err).Msg("跳过无法解析的 gbbq 记录")
			continue
		}
		result = append(result, ev)
	}

	return result
}

// 明文布局: [0] market, [1:8] code, [8:12] date, [12] category, [13:29] 4 x float32
func parseGbbqRecord(rec []byte) (model.GbbqEvent, error) {
	codeBytes := rec[1:8]
	n := 0
	for n < len(codeBytes) && codeBytes[n] != 0 {
		n++
	}
	code, err := strconv.ParseUint(string(codeBytes[:n]), 10, 32)
	if err != nil {
		return model.GbbqEvent{}, fmt.Errorf("invalid code %q", codeBytes[:n])
	}

	date := binary.LittleEndian.Uint32(rec[8:12])
	if !model.ValidDate(date) {
		return model.GbbqEvent{}, fmt.Errorf("invalid date: %d", date)
	}

	f32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(rec[off : off+4]))
	}

	return model.GbbqEvent{
		Market:   rec[0],
		Code:     uint32(code),
		Date:     date,
		Category: rec[12],
		FhQltp:   f32(13),
		PgjQzgb:  f32(17),
		SgHltp:   f32(21),
		PgHzgb:   f32(25),
	}, nil
}

// EncodeGbbqRecord 生成一条明文记录
func EncodeGbbqRecord(ev model.GbbqEvent) []byte {
	rec := make([]byte, gbbqRecordSize)
	rec[0] = ev.Market
	copy(rec[1:8], model.FormatCode(ev.Code))
	binary.LittleEndian.PutUint32(rec[8:12], ev.Date)
	rec[12] = ev.Category
	binary.LittleEndian.PutUint32(rec[13:17], math.Float32bits(ev.FhQltp))
	binary.LittleEndian.PutUint32(rec[17:21], math.Float32bits(ev.PgjQzgb))
	binary.LittleEndian.PutUint32(rec[21:25], math.Float32bits(ev.SgHltp))
	binary.LittleEndian.PutUint32(rec[25:29], math.Float32bits(ev.PgHzgb))
	return rec
}

// EncodePlainGbbq 生成带头部的明文 gbbq 内容
func EncodePlainGbbq(events []model.GbbqEvent) []byte {
	out := make([]byte, gbbqHeaderSize, gbbqHeaderSize+len(events)*gbbqRecordSize)
	binary.LittleEndian.PutUint32(out, uint32(len(events)))
	for _, ev := range events {
		out = append(out, EncodeGbbqRecord(ev)...)
	}
	return out
}
