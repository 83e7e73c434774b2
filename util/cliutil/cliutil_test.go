package cliutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupSlog(t *testing.T) {
	assert := assert.New(t)
	defer slog.SetDefault(slog.Default())

	path := filepath.Join(t.TempDir(), "chatmod.log")
	logger, err := SetupSlog(LogOptions{LogLevel: "warn", LogFormat: "json", LogPath: path})
	assert.NoError(err)
	assert.False(logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("rule matched", "rule", "spam")

	b, err := os.ReadFile(path)
	assert.NoError(err)
	assert.Contains(string(b), `"rule":"spam"`)

	_, err = SetupSlog(LogOptions{LogLevel: "loud"})
	assert.Error(err)
	_, err = SetupSlog(LogOptions{LogFormat: "xml", LogPath: path})
	assert.Error(err)
}

func TestSetupDatabase(t *testing.T) {
	assert := assert.New(t)

	db, err := SetupDatabase("sqlite://"+filepath.Join(t.TempDir(), "db", "chatmod.sqlite"), 10)
	assert.NoError(err)
	assert.NoError(db.Exec("SELECT 1").Error)

	_, err = SetupDatabase("mysql://localhost/chatmod", 10)
	assert.Error(err)
}
