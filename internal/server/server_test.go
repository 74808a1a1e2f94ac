package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/config"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/handlers"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/metrics"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/services"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppCfg{Name: "test", Env: "test", BodyLimitMB: 4, CORSOrigins: []string{"*"}},
	}
}


func TestRoutes(t *testing.T) {
	log := zap.NewNop()
	m := metrics.New()
	store := storage.NewMemoryStore()
	codec := media.NewCodec("http://localhost/api/v1/media", "")
	mc := media.NewClient(store, codec, media.DefaultPolicies(0), media.BreakerConfig{}, m, log)
	v, err := auth.NewVerifier(auth.VerifierConfig{Secret: "s"})
	require.NoError(t, err)

	life := services.NewLifecycle[*models.Profile](models.Profiles, repository.NewMemoryRepository(models.Profiles),
		services.Deps{Media: mc, Metrics: m, Log: log})
	app := New(testConfig(), Routes{
		Resources: []Registrar{handlers.NewResource(life, 0)},
		Media:     handlers.NewMedia(codec, store, nil, time.Minute, log),
		Verifier:  v,
		Metrics:   m,
	}, log)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/mine", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/profiles/missing", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
