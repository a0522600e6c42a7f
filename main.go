package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jing2uo/tdxport/cmd"
	"github.com/jing2uo/tdxport/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const tableInfo = "数据库表名，格式为 database.table"

const dayLong = `解析通达信 .day 日线文件并导出。

<dir> 可以是 sz/lday 等日线目录，也可以是 vipdoc 根目录 (展开为其下的 sh/lday sz/lday bj/lday)。

指定 --gbbq 时根据除权除息记录计算前收盘价与复权因子 (preclose, factor)，
同时指定 --previous 时从上次的因子继续计算，只输出新的日线。

--output 或 -o :
  -o day.csv / -o day.parquet  保存为文件
  -o clickhouse                先建表，导出 csv 后写入 clickhouse
  -o duckdb | postgres         同上，分别写入 duckdb 与 postgres
  -o mongodb                   导出 csv 后通过 mongoimport 写入
  写库成功后默认删除中间 csv，使用 -k 保留。

--previous :
  factor.csv                   上次导出的 code,date,close,factor
  clickhouse | duckdb | postgres 从 --table 查询每只股票最新的因子`

const dayExample = `  tdxport day /vipdoc/sz/lday /vipdoc/sh/lday -o day.csv
  tdxport day /vipdoc -o day.parquet
  tdxport day /vipdoc/sz/lday --gbbq gbbq -o clickhouse
  tdxport day /vipdoc/sz/lday --gbbq gbbq --previous clickhouse -o clickhouse
  tdxport day /vipdoc/sz/lday --stocks stocks.xlsx --stocks-col 1 --take 100 -o day.parquet`

const gbbqLong = `解析股本变迁 (gbbq) 文件并导出，支持 .zip 压缩包。

--category 或 -c 过滤特定类别的记录：
  1  - 除权除息        2  - 送配股上市      3  - 非流通股上市
  4  - 未知股本变动    5  - 股本变化        6  - 增发新股
  7  - 股份回购        8  - 增发新股上市    9  - 转配股上市
  10 - 可转债上市      11 - 扩缩股          12 - 非流通股缩股
  13 - 送认购权证      14 - 送认沽权证

--stocks 或 -s 过滤股票代码，逗号分隔，如 -s 000001,000002,600000
--date-range 或 -d 过滤日期范围，格式 YYYYMMDD-YYYYMMDD，如 -d 20200101-20231231`

const gbbqExample = `  tdxport gbbq gbbq -o gbbq_output.csv
  tdxport gbbq gbbq.zip -o clickhouse -t rustdx.gbbq -k
  tdxport gbbq gbbq -c 1 -s 000001,600000 -d 20200101-20231231`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := config.New()
	var cfgPath string

	var rootCmd = &cobra.Command{
		Use:           "tdxport",
		Short:         "Export TDX day bars and gbbq with adjustment factors",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "配置文件路径 (yaml/toml/json)")
	rootCmd.PersistentFlags().String("log-level", "info", "日志级别 debug|info|warn|error")
	rootCmd.PersistentFlags().String("work-dir", "", "中间文件目录，默认为系统临时目录")
	rootCmd.PersistentFlags().StringSlice("prefixes", nil, "只处理这些前缀的日线文件，如 sz30,sh6")

	if err := bindFlags(v, rootCmd.PersistentFlags(), map[string]string{
		"log.level": "log-level",
		"work_dir":  "work-dir",
		"prefixes":  "prefixes",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		os.Exit(1)
	}

	var dayOpts cmd.DayOptions
	var dayCmd = &cobra.Command{
		Use:     "day <dir>...",
		Short:   "Export .day files, optionally with adjustment factors",
		Long:    dayLong,
		Example: dayExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			env, err := cmd.NewEnv(v, cfgPath)
			if err != nil {
				return err
			}
			dayOpts.Dirs = args
			return cmd.Day(ctx, env, dayOpts)
		},
	}
	dayCmd.Flags().StringVarP(&dayOpts.Output, "output", "o", "day.csv", "输出：csv/parquet 文件路径，或 clickhouse|duckdb|postgres|mongodb")
	dayCmd.Flags().StringVar(&dayOpts.Gbbq, "gbbq", "", "gbbq 文件路径，指定时计算复权因子")
	dayCmd.Flags().StringVar(&dayOpts.Previous, "previous", "", "上次的因子：csv 路径，或 clickhouse|duckdb|postgres")
	dayCmd.Flags().StringVarP(&dayOpts.Table, "table", "t", "", tableInfo+"，默认复权为 rustdx.factor，否则为 rustdx.day")
	dayCmd.Flags().IntVar(&dayOpts.Take, "take", -1, "每个目录最多处理的文件数，负数表示全部")
	dayCmd.Flags().StringVar(&dayOpts.Stocks, "stocks", "", "股票列表：逗号分隔的代码、文本文件或 xlsx")
	dayCmd.Flags().IntVar(&dayOpts.StocksCol, "stocks-col", 0, "xlsx 中代码所在列，从 0 开始")
	dayCmd.Flags().BoolVarP(&dayOpts.KeepCSV, "keep-csv", "k", false, "写库后保留中间 csv")
	dayCmd.Flags().BoolVar(&dayOpts.KeepFactor, "keep-factor", false, "保留读取的上次因子文件")

	var gbbqOpts cmd.GbbqOptions
	var gbbqCmd = &cobra.Command{
		Use:     "gbbq <file>",
		Short:   "Export gbbq corporate action records",
		Long:    gbbqLong,
		Example: gbbqExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			env, err := cmd.NewEnv(v, cfgPath)
			if err != nil {
				return err
			}
			gbbqOpts.File = args[0]
			if !c.Flags().Changed("category") {
				gbbqOpts.Category = -1
			}
			return cmd.Gbbq(ctx, env, gbbqOpts)
		},
	}
	gbbqCmd.Flags().StringVarP(&gbbqOpts.Output, "output", "o", cmd.DefaultGbbqOutput, "输出：csv/parquet 文件路径，或 clickhouse|duckdb|postgres|mongodb")
	gbbqCmd.Flags().BoolVarP(&gbbqOpts.KeepCSV, "keep-csv", "k", false, "写库后保留中间 csv")
	gbbqCmd.Flags().StringVarP(&gbbqOpts.Table, "table", "t", cmd.DefaultGbbqTable, tableInfo)
	gbbqCmd.Flags().IntVarP(&gbbqOpts.Category, "category", "c", 0, "只导出该类别，如 1 为除权除息")
	gbbqCmd.Flags().StringVarP(&gbbqOpts.Stocks, "stocks", "s", "", "只导出这些股票，逗号分隔")
	gbbqCmd.Flags().StringVarP(&gbbqOpts.DateRange, "date-range", "d", "", "日期范围 YYYYMMDD-YYYYMMDD")

	rootCmd.AddCommand(dayCmd)
	rootCmd.AddCommand(gbbqCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		os.Exit(1)
	}
}

// bindFlags 命令行参数优先于配置文件与环境变量
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
