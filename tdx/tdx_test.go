package tdx

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jing2uo/tdxport/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayFileDecoder(t *testing.T) {
	bars := []model.DayBar{
		{Date: 20230614, Open: 10.5, High: 11, Low: 10.01, Close: 10.88, Amount: 123456, Vol: 1000},
		{Date: 20230615, Open: 10.9, High: 11.2, Low: 10.7, Close: 11.05, Amount: 65536, Vol: 2000},
	}
	var data []byte
	for _, b := range bars {
		data = append(data, EncodeDayRecord(b)...)
	}

	var got []model.DayBar
	for bar, err := range (DayFileDecoder{}).Decode(data, 1) {
		require.NoError(t, err)
		got = append(got, bar)
	}

	require.Len(t, got, 2)
	for i := range bars {
		assert.Equal(t, uint32(1), got[i].Code)
		assert.Equal(t, bars[i].Date, got[i].Date)
		assert.InDelta(t, bars[i].Open, got[i].Open, 1e-9)
		assert.InDelta(t, bars[i].Close, got[i].Close, 1e-9)
		assert.InDelta(t, bars[i].Amount, got[i].Amount, 1e-3)
		assert.Equal(t, bars[i].Vol, got[i].Vol)
	}
}

func TestDayFileDecoderErrors(t *testing.T) {
	t.Run("short data", func(t *testing.T) {
		data := append(EncodeDayRecord(model.DayBar{Date: 20230101, Close: 1}), 0, 1, 2)
		var errs []error
		for _, err := range (DayFileDecoder{}).Decode(data, 1) {
			if err != nil {
				errs = append(errs, err)
			}
		}
		require.Len(t, errs, 1)
		var de *DecodeError
		require.ErrorAs(t, errs[0], &de)
		assert.Equal(t, 32, de.Offset)
	})

	t.Run("bad date", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sz000001.day")
		data := append(EncodeDayRecord(model.DayBar{Date: 20230101, Close: 1}), EncodeDayRecord(model.DayBar{Date: 20231399})...)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err := ReadDayFile(DayFileDecoder{}, path, 1)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, path, de.Path)
		assert.Equal(t, 32, de.Offset)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadDayFile(DayFileDecoder{}, filepath.Join(t.TempDir(), "nope.day"), 1)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestParseStockFile(t *testing.T) {
	tests := []struct {
		path   string
		ok     bool
		market string
		code   uint32
	}{
		{"/data/sz/lday/sz000001.day", true, "sz", 1},
		{"sh600000.day", true, "sh", 600000},
		{"300750.day", true, "sz", 300750},
		{"sz000001.txt", false, "", 0},
		{"szabcdef.day", false, "", 0},
		{"12.day", false, "", 0},
		{"s1000001.day", false, "", 0},
	}
	for _, tt := range tests {
		f, ok := ParseStockFile(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		if ok {
			assert.Equal(t, tt.market, f.Market, tt.path)
			assert.Equal(t, tt.code, f.Code, tt.path)
			assert.Len(t, f.CodeString(), 6)
		}
	}
}

// testKeys 生成一个确定性的伪密钥表
func testKeys() []byte {
	keys := make([]byte, gbbqKeysSize)
	var x uint32 = 2463534242
	for i := 0; i < len(keys); i += 4 {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		binary.LittleEndian.PutUint32(keys[i:], x)
	}
	return keys
}

// encryptBlock 解密过程的逆运算
func encryptBlock(c *TableCipher, dst, src []byte) {
	numold := binary.LittleEndian.Uint32(src[0:4]) ^ c.key(0)
	num := binary.LittleEndian.Uint32(src[4:8])
	for j := 4; j <= 0x40; j += 4 {
		prev := numold
		numold = num ^ c.round(prev) ^ c.key(j)
		num = prev
	}
	binary.LittleEndian.PutUint32(dst[0:4], num^c.key(0x44))
	binary.LittleEndian.PutUint32(dst[4:8], numold)
}

func TestStockFileHasPrefix(t *testing.T) {
	bare, ok := ParseStockFile("/vipdoc/300750.day")
	require.True(t, ok)
	assert.Equal(t, "sz300750", bare.Symbol())
	assert.True(t, bare.HasPrefix([]string{"sz30"}))
	assert.False(t, bare.HasPrefix([]string{"sz00", "sh6"}))
	assert.True(t, bare.HasPrefix(nil))
}

func TestTableCipherRoundTrip(t *testing.T) {
	c, err := NewTableCipher(testKeys())
	require.NoError(t, err)

	plain := []byte{1, '0', '0', '0', '0', '0', '1', 0}
	enc := make([]byte, 8)
	encryptBlock(c, enc, plain)
	assert.NotEqual(t, plain, enc)

	dec := make([]byte, 8)
	c.DecryptBlock(dec, enc)
	assert.Equal(t, plain, dec)

	_, err = NewTableCipher(make([]byte, 16))
	assert.Error(t, err)
}

func sampleEvents() []model.GbbqEvent {
	return []model.GbbqEvent{
		{Market: 1, Code: 1, Date: 20230615, Category: 1, FhQltp: 2.85, SgHltp: 0},
		{Market: 2, Code: 600000, Date: 20220720, Category: 1, FhQltp: 3.8},
		{Market: 1, Code: 2, Date: 20210101, Category: 5, PgjQzgb: 100, PgHzgb: 120},
	}
}

func TestGbbqReaderEncrypted(t *testing.T) {
	c, err := NewTableCipher(testKeys())
	require.NoError(t, err)

	plain := EncodePlainGbbq(sampleEvents())
	enc := make([]byte, len(plain))
	copy(enc, plain)
	for pos := gbbqHeaderSize; pos < len(enc); pos += gbbqRecordSize {
		for b := 0; b < 3; b++ {
			off := pos + b*8
			encryptBlock(c, enc[off:off+8], plain[off:off+8])
		}
	}

	r := &GbbqReader{Cipher: c, Logger: zerolog.Nop()}
	assert.Equal(t, sampleEvents(), r.Decode(enc))
}

func TestGbbqReaderSkipsBadRecords(t *testing.T) {
	var logBuf bytes.Buffer
	r := &GbbqReader{Cipher: PlainCipher{}, Logger: zerolog.New(&logBuf)}

	data := EncodePlainGbbq(sampleEvents())
	// 第二条记录的代码改成非数字
	copy(data[gbbqHeaderSize+gbbqRecordSize+1:], "ABCDEF")
	// 声明多一条记录，模拟截断
	binary.LittleEndian.PutUint32(data, 4)

	got := r.Decode(data)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].Code)
	assert.Equal(t, uint32(2), got[1].Code)
	assert.Contains(t, logBuf.String(), "gbbq")
}

func TestGbbqReaderFiles(t *testing.T) {
	dir := t.TempDir()
	data := EncodePlainGbbq(sampleEvents())
	r := &GbbqReader{Cipher: PlainCipher{}, Logger: zerolog.Nop()}

	plainPath := filepath.Join(dir, "gbbq")
	require.NoError(t, os.WriteFile(plainPath, data, 0o644))
	got, err := r.ReadFile(plainPath)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	zipPath := filepath.Join(dir, "gbbq.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("T0002/hq_cache/gbbq")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err = r.ReadFile(zipPath)
	require.NoError(t, err)
	assert.Equal(t, sampleEvents(), got)

	_, err = r.ReadFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLoadKeys(t *testing.T) {
	dir := t.TempDir()
	keys := testKeys()

	hexPath := filepath.Join(dir, "keys.hex")
	text := hex.EncodeToString(keys[:32]) + "\n" + hex.EncodeToString(keys[32:])
	require.NoError(t, os.WriteFile(hexPath, []byte(text), 0o644))
	got, err := LoadKeys(hexPath)
	require.NoError(t, err)
	assert.Equal(t, keys, got)

	rawPath := filepath.Join(dir, "keys.bin")
	require.NoError(t, os.WriteFile(rawPath, keys, 0o644))
	got, err = LoadKeys(rawPath)
	require.NoError(t, err)
	assert.Equal(t, keys, got)
}
