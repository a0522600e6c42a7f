package cmd

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/jing2uo/tdxport/config"
	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"github.com/jing2uo/tdxport/tdx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 模拟 clickhouse-client：查询导出返回 factorCSV，插入记录 stdin
type fakeClient struct {
	queries   []string
	inserts   []string
	factorCSV string
}

func (f *fakeClient) Run(_ context.Context, _ string, args []string, stdin io.Reader, stdout io.Writer) error {
	query := args[1]
	f.queries = append(f.queries, query)
	if stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		f.inserts = append(f.inserts, string(b))
	}
	if slices.Contains(args, "--format") {
		_, err := io.WriteString(stdout, f.factorCSV)
		return err
	}
	return nil
}

func testEnv(t *testing.T, r database.Runner) *Env {
	t.Helper()
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.Gbbq.Plain = true
	cfg.BufferSize = 1024
	return &Env{Config: cfg, Logger: zerolog.Nop(), RunID: "run", WorkDir: t.TempDir(), Runner: r}
}

var june = []model.DayBar{
	{Date: 20230612, Close: 10.0},
	{Date: 20230613, Close: 10.2},
	{Date: 20230614, Close: 10.5},
	{Date: 20230615, Close: 10.3},
	{Date: 20230616, Close: 10.4},
}

func fixtures(t *testing.T) (dayDir, gbbqPath string) {
	t.Helper()
	dir := t.TempDir()
	dayDir = filepath.Join(dir, "lday")
	require.NoError(t, os.Mkdir(dayDir, 0o755))

	var data []byte
	for _, b := range june {
		data = append(data, tdx.EncodeDayRecord(b)...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dayDir, "sz000001.day"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dayDir, "sh600000.day"), data, 0o644))

	gbbqPath = filepath.Join(dir, "gbbq")
	require.NoError(t, os.WriteFile(gbbqPath, tdx.EncodePlainGbbq([]model.GbbqEvent{
		{Market: 0, Code: 1, Date: 20230615, Category: 1, FhQltp: 2.85},
		{Market: 1, Code: 600000, Date: 20230616, Category: 5},
	}), 0o644))
	return dayDir, gbbqPath
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestParseOutput(t *testing.T) {
	for in, want := range map[string]OutputKind{
		"day.csv":         OutputFile,
		"/tmp/x.parquet":  OutputFile,
		"clickhouse":      OutputClickHouse,
		"DuckDB":          OutputDuckDB,
		"postgres":        OutputPostgres,
		"mongodb":         OutputMongoDB,
		"out/Day.CSV":     OutputFile,
		"mongodb.parquet": OutputFile,
	} {
		got, err := ParseOutput(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOutput("day.json")
	assert.ErrorIs(t, err, model.ErrUnsupportedOutput)
	assert.True(t, OutputPostgres.IsWarehouse())
	assert.False(t, OutputMongoDB.IsWarehouse())
}

func TestDayOptionsValidate(t *testing.T) {
	dayDir, gbbqPath := fixtures(t)

	o := DayOptions{Dirs: []string{dayDir}, Previous: "factor.csv"}
	assert.ErrorIs(t, o.Validate(), model.ErrMissingGbbq)

	o = DayOptions{Dirs: []string{dayDir}}
	require.NoError(t, o.Validate())
	assert.Equal(t, DefaultDayTable, o.Table)

	o = DayOptions{Dirs: []string{dayDir}, Gbbq: gbbqPath}
	require.NoError(t, o.Validate())
	assert.Equal(t, DefaultFactorTable, o.Table)

	o = DayOptions{Dirs: []string{filepath.Join(dayDir, "missing")}}
	assert.ErrorIs(t, o.Validate(), model.ErrPathNotFound)

	short := filepath.Join(t.TempDir(), "gbbq")
	require.NoError(t, os.WriteFile(short, []byte{1}, 0o644))
	o = DayOptions{Dirs: []string{dayDir}, Gbbq: short}
	assert.ErrorIs(t, o.Validate(), model.ErrInvalidGbbq)
}

func TestDayOptionsExpandsVipdoc(t *testing.T) {
	vipdoc := t.TempDir()
	for _, m := range []string{"sz", "sh"} {
		require.NoError(t, os.MkdirAll(filepath.Join(vipdoc, m, "lday"), 0o755))
	}

	o := DayOptions{Dirs: []string{vipdoc}}
	require.NoError(t, o.Validate())
	assert.Equal(t, []string{filepath.Join(vipdoc, "sh", "lday"), filepath.Join(vipdoc, "sz", "lday")}, o.Dirs)

	o = DayOptions{Dirs: []string{t.TempDir()}}
	assert.ErrorIs(t, o.Validate(), model.ErrNoDayFiles)
}

func TestDayToCSV(t *testing.T) {
	dayDir, gbbqPath := fixtures(t)
	out := filepath.Join(t.TempDir(), "nested", "factor.csv")
	env := testEnv(t, &fakeClient{})

	err := Day(context.Background(), env, DayOptions{
		Dirs: []string{dayDir}, Output: out, Gbbq: gbbqPath, Take: -1, Stocks: "000001",
	})
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	rows := lines(string(b))
	require.Len(t, rows, 6)
	assert.Equal(t, "date,code,open,high,low,close,amount,vol,preclose,factor", rows[0])
	assert.True(t, strings.HasPrefix(rows[1], "2023-06-12,000001,"))
	assert.True(t, strings.HasSuffix(rows[1], ",10,1"))
}

func TestDayToClickHouse(t *testing.T) {
	dayDir, gbbqPath := fixtures(t)
	client := &fakeClient{}
	env := testEnv(t, client)

	err := Day(context.Background(), env, DayOptions{
		Dirs: []string{dayDir}, Output: "clickhouse", Gbbq: gbbqPath, Take: -1,
	})
	require.NoError(t, err)

	require.Len(t, client.queries, 3)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS rustdx", client.queries[0])
	assert.Contains(t, client.queries[1], "CREATE TABLE IF NOT EXISTS rustdx.factor")
	assert.Equal(t, "INSERT INTO rustdx.factor FORMAT CSVWithNames", client.queries[2])

	require.Len(t, client.inserts, 1)
	assert.Len(t, lines(client.inserts[0]), 11)
	assert.NoFileExists(t, filepath.Join(env.WorkDir, "factor-run.csv"))
}

func TestDayIncrementalFromClickHouse(t *testing.T) {
	dayDir, gbbqPath := fixtures(t)
	client := &fakeClient{factorCSV: "code,date,close,factor\n000001,2023-06-14,10.5,2\n600000,2023-06-16,10.4,1\n"}
	env := testEnv(t, client)

	err := Day(context.Background(), env, DayOptions{
		Dirs: []string{dayDir}, Output: "clickhouse", Gbbq: gbbqPath, Previous: "clickhouse",
		Take: -1, KeepCSV: true,
	})
	require.NoError(t, err)

	assert.Contains(t, client.queries[0], "FROM rustdx.factor")
	require.Len(t, client.inserts, 1)
	rows := lines(client.inserts[0])
	// 000001 只输出 0615 与 0616，600000 已是最新
	require.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(rows[1], "2023-06-15,000001,"))

	assert.FileExists(t, filepath.Join(env.WorkDir, "factor-run.csv"))
	assert.NoFileExists(t, filepath.Join(env.WorkDir, "previous-run.csv"))
}

func TestDayPreviousMongoRejected(t *testing.T) {
	dayDir, gbbqPath := fixtures(t)
	env := testEnv(t, &fakeClient{})

	err := Day(context.Background(), env, DayOptions{
		Dirs: []string{dayDir}, Output: filepath.Join(t.TempDir(), "o.csv"), Gbbq: gbbqPath, Previous: "mongodb",
	})
	assert.ErrorIs(t, err, model.ErrNoWarehouseForPrev)
}

func TestGbbqToCSV(t *testing.T) {
	_, gbbqPath := fixtures(t)
	out := filepath.Join(t.TempDir(), "gbbq.csv")
	env := testEnv(t, &fakeClient{})

	err := Gbbq(context.Background(), env, GbbqOptions{File: gbbqPath, Output: out, Category: 1})
	require.NoError(t, err)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	rows := lines(string(b))
	require.Len(t, rows, 2)
	assert.Equal(t, "market,code,date,category,category_name,fh_qltp,pgj_qzgb,sg_hltp,pg_hzgb", rows[0])
	assert.Equal(t, "0,000001,2023-06-15,1,除权除息,2.85,0,0,0", rows[1])
}

func TestGbbqToMongo(t *testing.T) {
	_, gbbqPath := fixtures(t)
	client := &fakeClient{}
	env := testEnv(t, client)

	err := Gbbq(context.Background(), env, GbbqOptions{File: gbbqPath, Output: "mongodb", Category: -1, Table: "rustdx.gbbq"})
	require.NoError(t, err)
	require.Len(t, client.inserts, 1)
	assert.Len(t, lines(client.inserts[0]), 2, "header is passed through --fields")
}

func TestGbbqErrors(t *testing.T) {
	_, gbbqPath := fixtures(t)
	env := testEnv(t, &fakeClient{})

	err := Gbbq(context.Background(), env, GbbqOptions{File: gbbqPath, Output: "x.csv", Category: -1, DateRange: "2020"})
	assert.ErrorIs(t, err, model.ErrInvalidDateRange)

	err = Gbbq(context.Background(), env, GbbqOptions{File: gbbqPath, Output: "clickhouse", Category: -1, Table: "gbbq"})
	assert.ErrorIs(t, err, model.ErrInvalidTable)

	env.Config.Gbbq.Plain = false
	err = Gbbq(context.Background(), env, GbbqOptions{File: gbbqPath, Output: "x.csv", Category: -1})
	assert.ErrorIs(t, err, model.ErrKeysNotConfigured)
}

func TestGbbqFromURL(t *testing.T) {
	_, gbbqPath := fixtures(t)
	data, err := os.ReadFile(gbbqPath)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "gbbq.csv")
	env := testEnv(t, &fakeClient{})
	require.NoError(t, Gbbq(context.Background(), env, GbbqOptions{File: srv.URL + "/gbbq", Output: out, Category: -1}))

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, lines(string(b)), 3)
	assert.NoFileExists(t, filepath.Join(env.WorkDir, "gbbq-run"))
}
