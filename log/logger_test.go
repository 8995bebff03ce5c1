package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("docstore", Warn, &buf)

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "[docstore]")
}

func TestLogger_NamedAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("docstore", Debug, &buf).Named("index").With("id", "abc").With("action", "insert")

	l.Debug("entry updated")

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "[docstore/index]")
	assert.True(t, strings.HasSuffix(line, "entry updated action=insert id=abc"), line)
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("docstore", Info, &buf)
	l.JSON = true

	l.With("count", 3).Info("loaded")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "docstore", entry.Service)
	assert.Equal(t, "loaded", entry.Message)
	assert.EqualValues(t, 3, entry.Fields["count"])
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, Warn, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)

	assert.Panics(t, func() { Parse("verbose") })
}
