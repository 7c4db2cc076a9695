package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIsSilentBeforeInit(t *testing.T) {
	log := logging.Get("test.silent")
	// Must not panic and must not write anywhere; there is nothing to
	// assert on besides "this doesn't blow up with no sinks configured."
	log.Info("hello", "k", "v")
}

func TestInitWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simbiotad.log")
	require.NoError(t, logging.Init(logging.Config{
		Sinks: []logging.SinkConfig{
			{Output: "file", Level: "info", Path: path},
		},
	}))
	defer logging.Close()

	log := logging.Get("test.file")
	log.Info("detection positive", "path", "/bin/evil")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "detection positive")
	assert.Contains(t, string(data), "/bin/evil")
}

func TestInitRejectsUnknownSinkOutput(t *testing.T) {
	err := logging.Init(logging.Config{
		Sinks: []logging.SinkConfig{{Output: "carrier-pigeon", Level: "info"}},
	})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := logging.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, level)

	_, err = logging.ParseLevel("nonsense")
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)
}

func TestLevelAtOffNeverLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "off.log")
	require.NoError(t, logging.Init(logging.Config{
		Sinks: []logging.SinkConfig{{Output: "file", Level: "off", Path: path}},
	}))
	defer logging.Close()

	logging.Get("test.off").Error("should not appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
