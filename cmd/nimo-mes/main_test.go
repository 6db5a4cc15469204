package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/handler"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	l, err := initLogger(config.LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "mes.db")},
		JWT:      config.JWTConfig{Secret: testutil.JWTSecret},
	}
	db, err := initDatabase(cfg.Database, false)
	require.NoError(t, err)
	require.NoError(t, entity.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
	})

	services := service.NewServices(repository.NewRepositories(db), nil, &testutil.StubERP{}, service.Options{}, zap.NewNop())
	return newRouter(cfg, db, nil, handler.NewHandlers(services, zap.NewNop()), zap.NewNop())
}

func TestProbes(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready", "/version"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAPIRequiresAuth(t *testing.T) {
	r := newTestRouter(t)
	w := testutil.DoRequest(r, http.MethodGet, "/api/v1/mes/break-reasons", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/api/v1/mes/break-reasons", nil, testutil.DefaultTestToken())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
