package logging

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/jing2uo/tdxport/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "warn"}, "run-1")

	log.Info().Msg("hidden")
	log.Warn().Msg("⚠️ 没有匹配的文件")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "没有匹配的文件")
	assert.Contains(t, out, "run-1")
}

func TestFileOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "tdxport.log")
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LogConfig{Level: "debug", File: file, MaxSize: 1}, "")
	log.Debug().Msg("#000001# sz000001.day")

	assert.FileExists(t, file)
	assert.Contains(t, buf.String(), "000001")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}
