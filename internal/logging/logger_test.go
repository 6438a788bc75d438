package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medscan-resolver/internal/domain"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "verbose"})
	require.NoError(t, err)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "medscan.log")

	logger, err := NewLogger(domain.LoggingConfig{Level: "info", Format: "json", Output: "file", Filename: path})
	require.NoError(t, err)

	logger.WithField("drug", "Calpol").Info("resolved")
	if closer, ok := logger.Out.(*os.File); ok {
		closer.Close()
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"resolved"`)
	assert.Contains(t, string(data), `"drug":"Calpol"`)
}

func TestNewLogger_InvalidOutput(t *testing.T) {
	_, err := NewLogger(domain.LoggingConfig{Output: "syslog"})
	assert.Error(t, err)

	_, err = NewLogger(domain.LoggingConfig{Output: "file"})
	assert.Error(t, err)
}
