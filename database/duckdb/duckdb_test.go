package duckdb

import (
	"strings"
	"testing"

	"github.com/jing2uo/tdxport/database"
	"github.com/jing2uo/tdxport/model"
	"github.com/stretchr/testify/assert"
)

func TestCreateTable(t *testing.T) {
	ref := database.TableRef{Database: "rustdx", Table: "gbbq"}
	stmt := Dialect{}.CreateTable(ref, model.TableGbbq)

	assert.True(t, strings.HasPrefix(stmt, "CREATE TABLE IF NOT EXISTS rustdx.gbbq ("))
	assert.Contains(t, stmt, "category UTINYINT")
	assert.Contains(t, stmt, "fh_qltp FLOAT")
	assert.Contains(t, stmt, "PRIMARY KEY (date, code, category)")
	assert.Equal(t, "CREATE SCHEMA IF NOT EXISTS rustdx", Dialect{}.CreateDatabase("rustdx"))
}

func TestInsertQuery(t *testing.T) {
	ref := database.TableRef{Database: "rustdx", Table: "factor"}
	q := Dialect{}.insertQuery(ref, model.TableAdjusted, "/tmp/o'brien/factor-run")

	assert.Contains(t, q, "INSERT OR REPLACE INTO rustdx.factor (date, code, open, high, low, close, amount, vol, preclose, factor)")
	assert.Contains(t, q, "read_csv('/tmp/o''brien/factor-run'")
	assert.Contains(t, q, "'date': 'DATE'")
	assert.Contains(t, q, "'factor': 'DOUBLE'")
	assert.Contains(t, q, "dateformat='%Y-%m-%d'")
}

func TestExportQuery(t *testing.T) {
	q := exportQuery(Dialect{}.LatestFactors(database.TableRef{Database: "rustdx", Table: "factor"}), "/tmp/f.csv")
	assert.True(t, strings.HasPrefix(q, "COPY (SELECT"))
	assert.Contains(t, q, "arg_max(factor, date)")
	assert.True(t, strings.HasSuffix(q, "TO '/tmp/f.csv' (FORMAT CSV, HEADER)"))
}
