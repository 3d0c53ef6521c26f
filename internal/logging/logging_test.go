package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_VerboseTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Verbose: true})
	logger.Debug("  v app.util", "path", "/src/app/util.py")

	out := buf.String()
	assert.Contains(t, out, `msg="  v app.util"`)
	assert.Contains(t, out, "path=/src/app/util.py")
	assert.NotContains(t, out, "time=")
	assert.NotContains(t, out, "level=")
}

func TestNew_QuietDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{})
	logger.Debug("v app.cli")
	assert.Empty(t, buf.String())

	logger.Warn("cache write failed")
	assert.True(t, strings.HasPrefix(buf.String(), "level=warn "), buf.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Verbose: true, JSON: true}).Debug("^ app.cli", "calls", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "^ app.cli", rec["msg"])
	assert.Equal(t, float64(3), rec["calls"])
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(t.Context(), 0))
}
