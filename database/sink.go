package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jing2uo/tdxport/model"
	"github.com/rs/zerolog"
)

// Provision 建库建表，均为 IF NOT EXISTS，可重复执行
func Provision(ctx context.Context, c WarehouseClient, ref TableRef, meta *model.TableMeta) error {
	d := c.Dialect()
	if err := c.Execute(ctx, d.CreateDatabase(ref.Database)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", ref.Database, err)
	}
	if err := c.Execute(ctx, d.CreateTable(ref, meta)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", ref, err)
	}
	return nil
}

// Load 写入数据库后按 keep 保留或删除 csv；写入失败时保留原文件
func Load(ctx context.Context, l Loader, ref TableRef, meta *model.TableMeta, csvPath string, keep bool, log zerolog.Logger) error {
	log.Info().Str("table", ref.String()).Str("file", csvPath).Msg("🚚 正在写入数据库")
	if err := l.BulkInsert(ctx, ref, meta, csvPath); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", ref, err)
	}

	kept, err := Retain(csvPath, keep)
	if err != nil {
		return err
	}
	if kept != "" {
		log.Info().Str("file", kept).Msg("💾 已保留 csv")
	}
	log.Info().Str("table", ref.String()).Msg("✅ 写入完成")
	return nil
}

// Retain keep 为 true 时把文件重命名为 .csv 扩展名并返回新路径，否则删除
func Retain(path string, keep bool) (string, error) {
	if !keep {
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return "", nil
	}

	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
	if target == path {
		return path, nil
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("failed to keep %s: %w", path, err)
	}
	return target, nil
}

// FactorExporter 用数据库方言查询每只股票最新的复权因子
type FactorExporter struct {
	Client WarehouseClient
}

func (f FactorExporter) ExportLatestFactors(ctx context.Context, table, dest string) error {
	ref, err := ParseTableRef(table)
	if err != nil {
		return err
	}
	return f.Client.ExportQuery(ctx, f.Client.Dialect().LatestFactors(ref), dest)
}
