package model

import "errors"

var (
	ErrMissingGbbq        = errors.New("gbbq file is required for adjusted export")
	ErrInvalidTable       = errors.New("table must be in database.table form")
	ErrInvalidDateRange   = errors.New("date range must be YYYYMMDD-YYYYMMDD")
	ErrUnsupportedOutput  = errors.New("unsupported output")
	ErrKeysNotConfigured  = errors.New("gbbq key table is not configured")
	ErrNoWarehouseForPrev = errors.New("previous factor keyword needs a warehouse client")

	// 路径校验
	ErrPathNotFound = errors.New("path does not exist")
	ErrNotDirectory = errors.New("not a directory")
	ErrNotFile      = errors.New("not a regular file")
	ErrNoDayFiles   = errors.New("no .day files and no sh/lday, sz/lday, bj/lday under directory")
	ErrInvalidGbbq  = errors.New("not a gbbq file")
)
