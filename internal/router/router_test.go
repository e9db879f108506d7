package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildsats-api/internal/cache"
	"wildsats-api/internal/catalog"
	"wildsats-api/internal/handler"
	"wildsats-api/internal/identity"
	"wildsats-api/internal/logging"
	"wildsats-api/internal/metrics"
	"wildsats-api/internal/middleware"
	"wildsats-api/internal/repository"
	"wildsats-api/internal/service"
)

type testServer struct {
	server  *httptest.Server
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()
	logger := logging.Nop()
	m := metrics.New()

	repo := repository.NewInstrumented(repository.NewMemoryPlayerRepository(), "memory", m)
	players := service.NewPlayerService(service.PlayerServiceConfig{
		Repo:     repo,
		Catalog:  catalog.Default(),
		Observer: m,
		Logger:   logger,
	})

	replay := cache.NewMemoryCache()
	t.Cleanup(func() { _ = replay.Close() })

	r := New(Config{
		Handler:       handler.New("wildsats-api", "test", handler.ReadinessCheck{Name: "store", Pinger: repo}),
		PlayerHandler: handler.NewPlayerHandler(players, logger, false),
		AdminHandler:  handler.NewAdminHandler(repo, "memory", "memory", "key"),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Authenticator: service.NewAuthService(replay, time.Minute, logger),
			Required:      authRequired,
			Recorder:      m,
			Logger:        logger,
		}),
		Metrics:        m,
		MetricsHandler: m.Handler(),
		Logger:         logger,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, metrics: m}
}

type result struct {
	status int
	body   map[string]any
	data   map[string]any
}

func (s *testServer) do(t *testing.T, method, path string, body any, header http.Header) result {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(testContext(t), method, s.server.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.body))
	out.data, _ = out.body["data"].(map[string]any)
	return out
}

func strs(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, _ := it.(string)
		out = append(out, s)
	}
	return out
}

func TestRouter_PlayerScenario(t *testing.T) {
	s := newTestServer(t, false)

	res := s.do(t, http.MethodPost, "/users", map[string]string{"identity": "abc123", "displayName": "Alice"}, nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "Alice", res.data["displayName"])
	assert.Equal(t, []string{"Dog"}, strs(res.data["characters"]))
	assert.Empty(t, strs(res.data["inventory"]))

	res = s.do(t, http.MethodPost, "/users/abc123/buy-animal", map[string]string{"animal": "Cat"}, nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, []string{"Dog", "Cat"}, strs(res.data["characters"]))
	assert.Equal(t, false, res.data["alreadyOwned"])

	res = s.do(t, http.MethodPost, "/api/users/abc123/buy-animal", map[string]string{"animal": "Cat"}, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, []string{"Dog", "Cat"}, strs(res.data["characters"]))
	assert.Equal(t, true, res.data["alreadyOwned"])

	res = s.do(t, http.MethodGet, "/api/users/abc123/characters", nil, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, []string{"Dog", "Cat"}, strs(res.data["characters"]))

	for i := 0; i < 2; i++ {
		res = s.do(t, http.MethodPost, "/users/abc123/inventory", map[string]string{"item": "bone"}, nil)
		require.Equal(t, http.StatusOK, res.status)
	}
	assert.Equal(t, []string{"bone", "bone"}, strs(res.data["inventory"]))

	res = s.do(t, http.MethodGet, "/users/abc123", nil, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "abc123", res.data["identity"])
}

func TestRouter_LegacyLoginFields(t *testing.T) {
	s := newTestServer(t, false)

	res := s.do(t, http.MethodPost, "/api/users", map[string]string{"npub": "legacy1", "nostrName": "Bob"}, nil)
	require.Equal(t, http.StatusOK, res.status, res.body)
	assert.Equal(t, "legacy1", res.data["identity"])
	assert.Equal(t, "Bob", res.data["displayName"])
}

func TestRouter_Errors(t *testing.T) {
	s := newTestServer(t, false)
	s.do(t, http.MethodPost, "/users", map[string]string{"identity": "abc123", "displayName": "Alice"}, nil)

	res := s.do(t, http.MethodGet, "/users/nobody/characters", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, false, res.body["success"])

	res = s.do(t, http.MethodPost, "/users/abc123/buy-animal", map[string]string{"animal": "Dragon"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = s.do(t, http.MethodPost, "/users/nobody/buy-animal", map[string]string{"animal": "Dragon"}, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = s.do(t, http.MethodPost, "/users/abc123/inventory", map[string]string{"item": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	errBody, _ := res.body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])

	res = s.do(t, http.MethodPost, "/users", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
}

func TestRouter_BuyAnimalFallback(t *testing.T) {
	s := newTestServer(t, false)

	res := s.do(t, http.MethodGet, "/api/users/abc123/buy-animal?x=1", nil, nil)
	require.Equal(t, http.StatusMethodNotAllowed, res.status)

	errBody, _ := res.body["error"].(map[string]any)
	extra, _ := errBody["extra"].(map[string]any)
	assert.Equal(t, "GET", extra["requestedMethod"])
	assert.Equal(t, "/api/users/abc123/buy-animal?x=1", extra["requestedUrl"])
}

func TestRouter_CatalogAndTest(t *testing.T) {
	s := newTestServer(t, false)

	res := s.do(t, http.MethodGet, "/catalog", nil, nil)
	require.Equal(t, http.StatusOK, res.status)
	animals, _ := res.data["animals"].([]any)
	assert.Len(t, animals, 3)

	res = s.do(t, http.MethodGet, "/api/test", nil, nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Server is working", res.data["message"])
}

func TestRouter_HealthAndAdmin(t *testing.T) {
	s := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/health", nil, nil).status)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/ready", nil, nil).status)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/status", nil, nil).status)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/admin/stats", nil, nil).status)

	res := s.do(t, http.MethodGet, "/api/v1/admin/stats", nil, http.Header{handler.LoginKeyHeader: {"key"}})
	assert.Equal(t, http.StatusOK, res.status)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	s.do(t, http.MethodGet, "/api/test", nil, nil)

	resp, err := s.server.Client().Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `wildsats_http_requests_total`)
	assert.Contains(t, buf.String(), `route="/api/test"`)
}

func TestRouter_AuthRequired(t *testing.T) {
	s := newTestServer(t, true)
	signer, err := identity.GenerateKeySigner()
	require.NoError(t, err)
	pubkey, err := signer.GetPublicKey(testContext(t))
	require.NoError(t, err)
	npub, err := identity.EncodePublicKey(pubkey)
	require.NoError(t, err)

	body := map[string]string{"identity": npub, "displayName": "Alice"}
	res := s.do(t, http.MethodPost, "/users", body, nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	sign := func(method, path string, body any) http.Header {
		var raw []byte
		if body != nil {
			raw, err = json.Marshal(body)
			require.NoError(t, err)
			raw = append(raw, '\n')
		}
		header, err := identity.AuthorizationHeader(testContext(t), signer, method, s.server.URL+path, raw)
		require.NoError(t, err)
		return http.Header{"Authorization": {header}}
	}

	res = s.do(t, http.MethodPost, "/users", body, sign(http.MethodPost, "/users", body))
	require.Equal(t, http.StatusOK, res.status, res.body)

	other, err := identity.GenerateKeySigner()
	require.NoError(t, err)
	otherPub, _ := other.GetPublicKey(testContext(t))
	otherNpub, _ := identity.EncodePublicKey(otherPub)

	path := "/users/" + otherNpub + "/buy-animal"
	buy := map[string]string{"animal": "Cat"}
	res = s.do(t, http.MethodPost, path, buy, sign(http.MethodPost, path, buy))
	assert.Equal(t, http.StatusForbidden, res.status)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/users/"+npub+"/characters", nil, nil).status)
}

func TestRouter_UnknownRouteIsJSON(t *testing.T) {
	s := newTestServer(t, false)

	res := s.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, false, res.body["success"])
	errBody, _ := res.body["error"].(map[string]any)
	assert.Equal(t, "ROUTE_NOT_FOUND", errBody["code"])
}
