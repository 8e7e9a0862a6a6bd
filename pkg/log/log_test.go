package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/ezoic/mlsurface/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("boom"), "model", "knn")

	require.NotEmpty(t, buffer.String())
	assert.True(t, logger.ContainsMessage("debug message"))
	assert.True(t, logger.ContainsMessage("warning message"))
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42.0))
	assert.True(t, logger.ContainsField(OperationKey, OperationFit))
	assert.True(t, logger.ContainsField(ErrorKey, "boom"))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestTestLoggerLevelFilter(t *testing.T) {
	logger, _ := NewTestLogger(LevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestTestLoggerWith(t *testing.T) {
	root, _ := NewTestLogger(LevelInfo)
	child := root.With(ModelNameKey, "forest", RunIDKey, "run-1")

	child.Info("Training completed", SamplesKey, 10)

	assert.True(t, root.ContainsField(ModelNameKey, "forest"))
	assert.True(t, root.ContainsField(RunIDKey, "run-1"))
	assert.True(t, root.ContainsField(SamplesKey, 10.0))
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelInfo)

	logger := provider.GetLoggerWithName("grid").With(ComponentKey, "grid")
	logger.Debug("not emitted")
	logger.Info("Grid built", GridPointsKey, 4, ColumnsKey, []string{"Age", "BMI"})
	logger.Error("failed", mlerrors.NewConfigError("resolution", "must be at least 2", 1))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "Grid built", first["message"])
	assert.Equal(t, "grid", first["logger"])
	assert.Equal(t, "grid", first[ComponentKey])
	assert.Equal(t, 4.0, first[GridPointsKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "error", second["level"])
	assert.Contains(t, second["error"], "resolution")
}

func TestZerologProviderSetLevel(t *testing.T) {
	var buf bytes.Buffer
	provider := NewZerologProviderWithWriter(&buf, LevelError)
	assert.False(t, provider.GetLogger().Enabled(context.Background(), LevelInfo))

	provider.SetLevel(LevelDebug)
	assert.True(t, provider.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ToLogLevel("debug"))
	assert.Equal(t, LevelWarn, ToLogLevel("warn"))
	assert.Equal(t, LevelError, ToLogLevel("error"))
	assert.Equal(t, LevelInfo, ToLogLevel("info"))
	assert.Equal(t, LevelInfo, ToLogLevel("verbose"))
	assert.Equal(t, "WARN", LevelWarn.String())
}
