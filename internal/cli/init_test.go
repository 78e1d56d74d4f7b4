package cli

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetrail/internal/config"
	"finetrail/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", log.ComponentAdmin)
	assert.Equal(t, log.ComponentAdmin, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestOpenApp(t *testing.T) {
	cfg := &config.Config{DataBackend: "memory", CacheTTL: time.Minute}
	app, err := OpenApp(context.Background(), cfg, log.Discard(), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	cats, err := app.Service.Categories(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
	assert.Nil(t, app.Backend.Publisher)
}

func TestOpenAppRejectsUnknownBackend(t *testing.T) {
	_, err := OpenApp(context.Background(), &config.Config{DataBackend: "csv"}, log.Discard(), false)
	assert.Error(t, err)
}
