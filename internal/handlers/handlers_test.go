package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/auth"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/media"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/middleware"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/models"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/repository"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/services"
	"github.com/VanshKirtishahi/Wall-of-Humanity/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const baseURL = "http://api.test/api/v1/media"

type testEnv struct {
	app      *fiber.App
	store    *storage.MemoryStore
	reaper   *services.Reaper
	verifier *auth.Verifier
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := storage.NewMemoryStore()
	codec := media.NewCodec(baseURL, "")
	mc := media.NewClient(store, codec, media.DefaultPolicies(0), media.BreakerConfig{}, nil, log)
	rep := services.NewOrphanReporter(log, nil, nil, nil)
	reaper := services.NewReaper(mc, services.ReaperConfig{Workers: 1, InitialBackoff: time.Millisecond}, rep, log)
	t.Cleanup(reaper.Close)

	v, err := auth.NewVerifier(auth.VerifierConfig{Secret: "test-secret"})
	require.NoError(t, err)

	deps := services.Deps{Media: mc, Reaper: reaper, Orphans: rep, Log: log}
	donations := services.NewLifecycle[*models.Donation](models.Donations, repository.NewMemoryRepository(models.Donations), deps)
	ngos := services.NewLifecycle[*models.NGO](models.NGOs, repository.NewMemoryRepository(models.NGOs), deps)

	app := fiber.New()
	api := app.Group("/api/v1")
	required, optional := middleware.JWTAuth(v), middleware.OptionalJWTAuth(v)
	NewResource(donations, 0).Register(api, required, optional)
	NewResource(ngos, 0).Register(api, required, optional)
	api.Get("/media/*", NewMedia(codec, store, nil, time.Minute, log).Redirect)
	app.Get("/healthz", Health)

	return &testEnv{app: app, store: store, reaper: reaper, verifier: v}
}

func (e *testEnv) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := e.verifier.Sign(user, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, req *http.Request, user string) (int, envelope) {
	t.Helper()
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, user))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &env), string(body))
	}
	return resp.StatusCode, env
}

type part struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", "image/png")
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

var donationForm = map[string]string{
	"title":       "Rice 10kg",
	"description": "Two bags of rice",
	"quantity":    "10kg",
	"location":    `{"address":"12 MG Road","city":"Pune","state":"MH"}`,
}

func decodeDonation(t *testing.T, env envelope) models.Donation {
	t.Helper()
	var d models.Donation
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func TestDonationLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)

	status, env := e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/donations", donationForm,
		part{"images", "a.png", pngBytes(t)}), "alice")
	require.Equal(t, http.StatusCreated, status, env.Message)
	d := decodeDonation(t, env)
	require.Len(t, d.Images, 1)
	assert.Equal(t, "alice", d.OwnerID)
	assert.Equal(t, "Pune", d.Location.City)
	first := d.Images[0]
	assert.True(t, e.store.Has(first.Identifier))

	status, env = e.do(t, multipartRequest(t, http.MethodPut, "/api/v1/donations/"+d.ID, nil,
		part{"images", "b.png", pngBytes(t)}), "alice")
	require.Equal(t, http.StatusOK, status, env.Message)
	d = decodeDonation(t, env)
	require.Len(t, d.Images, 1)
	second := d.Images[0]
	assert.NotEqual(t, first.Locator, second.Locator)
	e.reaper.Wait()
	assert.False(t, e.store.Has(first.Identifier))

	status, env = e.do(t, multipartRequest(t, http.MethodPut, "/api/v1/donations/"+d.ID, nil,
		part{"images", "c.png", pngBytes(t)}), "bob")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, []string{second.Identifier}, e.store.Keys())

	status, _ = e.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/donations/"+d.ID, nil), "alice")
	assert.Equal(t, http.StatusOK, status)
	status, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/donations/"+d.ID, nil), "alice")
	assert.Equal(t, http.StatusNotFound, status)
	e.reaper.Wait()
	assert.Empty(t, e.store.Keys())
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	e := newEnv(t)

	form := map[string]string{"title": "Rice"}
	status, env := e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/donations", form,
		part{"images", "a.png", pngBytes(t)}), "alice")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, env.Field)
	assert.Empty(t, e.store.Keys())

	bad := map[string]string{}
	for k, v := range donationForm {
		bad[k] = v
	}
	bad["location"] = "{not json"
	status, env = e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/donations", bad), "alice")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "location", env.Field)

	status, _ = e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/donations", donationForm,
		part{"images", "a.png", []byte("%PDF-1.4 not an image")}), "alice")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, e.store.Keys())
}

func TestAnonymousCallers(t *testing.T) {
	e := newEnv(t)

	status, _ := e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/donations", donationForm), "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/donations", nil), "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestJSONBodyAndPublicListing(t *testing.T) {
	e := newEnv(t)

	body := `{"title":"Books","type":"Books","description":"school books","quantity":"12",
		"location":{"address":"1 Park St","city":"Kolkata","state":"WB"},
		"owner_id":"mallory","images":[{"url":"http://evil/x.png","identifier":"x"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	status, env := e.do(t, req, "alice")
	require.Equal(t, http.StatusCreated, status, env.Message)
	d := decodeDonation(t, env)
	assert.Equal(t, "alice", d.OwnerID)
	assert.Empty(t, d.Images)

	status, env = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/donations?location.city=Kolkata&limit=5", nil), "")
	require.Equal(t, http.StatusOK, status)
	var list []models.Donation
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Empty(t, list[0].OwnerID)

	status, env = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/donations?location.city=Pune", nil), "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(env.Data))

	status, env = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/donations/mine", nil), "alice")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestRemoveMediaClearsSlot(t *testing.T) {
	e := newEnv(t)
	fields := map[string]string{
		"organization_name":  "Robin Hood Army",
		"organization_email": "hello@rha.org",
	}

	status, env := e.do(t, multipartRequest(t, http.MethodPost, "/api/v1/ngos", fields,
		part{"logo", "logo.png", pngBytes(t)}), "alice")
	require.Equal(t, http.StatusCreated, status, env.Message)
	var n models.NGO
	require.NoError(t, json.Unmarshal(env.Data, &n))
	require.NotNil(t, n.Logo)
	logo := n.Logo.Identifier

	status, env = e.do(t, multipartRequest(t, http.MethodPut, "/api/v1/ngos/"+n.ID,
		map[string]string{"remove_media": "logo"}), "alice")
	require.Equal(t, http.StatusOK, status, env.Message)
	n = models.NGO{}
	require.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Nil(t, n.Logo)
	e.reaper.Wait()
	assert.False(t, e.store.Has(logo))
}

func TestMediaRedirect(t *testing.T) {
	e := newEnv(t)
	mc := media.NewClient(e.store, media.NewCodec(baseURL, ""), media.DefaultPolicies(0), media.BreakerConfig{}, nil, zap.NewNop())
	ref, err := mc.Upload(context.Background(), "donations", media.File{Name: "a.png", ContentType: "image/png", Data: pngBytes(t)})
	require.NoError(t, err)

	path := ref.Locator[len("http://api.test"):]
	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "memory://"+ref.Identifier)

	resp, err = e.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/media/static/default.png", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	status, env := e.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", env.Status)
}
