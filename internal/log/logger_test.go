package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/otus-inject/internal/config"
)

func TestNewTextPattern(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{
		Level:   "info",
		Format:  "text",
		Pattern: "[%level] %msg %field",
	}, &buf)
	require.NoError(t, err)

	l.WithFields(map[string]interface{}{"sent": 10, "total": 20}).Info("injection progress")

	assert.Equal(t, "[INFO] injection progress sent=10 total=20\n", buf.String())
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.WithError(errors.New("boom")).WithField("stage", "device").Error("run failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "run failed", line["msg"])
	assert.Equal(t, "device", line["stage"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "error", line["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewInvalid(t *testing.T) {
	_, err := New(config.LogConfig{Level: "verbose", Format: "text"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestNewWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "inject.log")
	var buf bytes.Buffer

	l, err := New(config.LogConfig{
		Level:  "info",
		Format: "text",
		File: config.FileConfig{
			Enabled:    true,
			Path:       logPath,
			MaxSizeMB:  1,
			MaxBackups: 1,
		},
	}, &buf)
	require.NoError(t, err)

	l.Info("to both outputs")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both outputs")
	assert.Contains(t, buf.String(), "to both outputs")
}

func TestFormatterAppendsNewline(t *testing.T) {
	f := &formatter{pattern: "%time %msg", time: time.RFC3339}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "hello",
		Data:    logrus.Fields{},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z hello\n", string(out))
}

func TestInitReplacesGlobalLogger(t *testing.T) {
	before := GetLogger()
	require.NotNil(t, before)

	require.NoError(t, Init(config.LogConfig{Level: "error", Format: "text"}))
	t.Cleanup(func() { setLogger(before) })

	after := GetLogger()
	assert.False(t, after.IsInfoEnabled())
}
