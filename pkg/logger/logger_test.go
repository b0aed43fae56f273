package logger

import (
	"bytes"
	"testing"

	charmlog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	cases := map[LogLevel]charmlog.Level{
		DebugLevel: charmlog.DebugLevel,
		InfoLevel:  charmlog.InfoLevel,
		WarnLevel:  charmlog.WarnLevel,
		ErrorLevel: charmlog.ErrorLevel,
		"verbose":  charmlog.InfoLevel,
	}
	for level, expected := range cases {
		assert.Equal(t, expected, level.ToCharmlogLevel(), "level %q", level)
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write JSON lines with key values", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: DebugLevel, Output: &buf, JSON: true})

		log.With("family", "vite").Debug("cache hit", "project", "apps/web")

		line := buf.String()
		require.True(t, gjson.Valid(line))
		assert.Equal(t, "cache hit", gjson.Get(line, "msg").String())
		assert.Equal(t, "vite", gjson.Get(line, "family").String())
		assert.Equal(t, "apps/web", gjson.Get(line, "project").String())
	})

	t.Run("Should drop lines below the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: WarnLevel, Output: &buf})

		log.Info("ignored")
		assert.Empty(t, buf.String())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}
