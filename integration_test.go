package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/app"
	"backoffice/internal/config"
	httpx "backoffice/internal/http"
)

// TestAdminAPIIntegration boots the app on sqlite and redis and drives the
// admin API end to end.
func TestAdminAPIIntegration(t *testing.T) {
	mr := miniredis.RunT(t)
	v := viper.New()
	config.SetDefaults(v)
	v.Set("DATA_PROVIDER", config.ProviderSQLite)
	v.Set("SQLITE_PATH", ":memory:")
	v.Set("REDIS_ADDR", mr.Addr())
	v.Set("ADMIN_TOKEN", "integration")
	v.Set("UNDO_WINDOW", "1h")
	cfg, err := config.Parse(v)
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(httpx.NewRouter(httpx.DepsFromApp(a)))
	defer srv.Close()

	call := func(method, path, body string) (int, map[string]any) {
		t.Helper()
		req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("X-Admin-Token", "integration")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}
	total := func() float64 {
		t.Helper()
		// an explicit page keeps the remembered filter out
		status, out := call(http.MethodGet, "/admin/comments?page=1", "")
		require.Equal(t, http.StatusOK, status, out["error"])
		return out["result"].(map[string]any)["total"].(float64)
	}

	for _, body := range []string{
		`{"id":"c1","body":"first","post_id":1}`,
		`{"id":"c2","body":"second","post_id":1}`,
		`{"id":"c3","body":"third","post_id":2}`,
	} {
		status, out := call(http.MethodPost, "/admin/comments", body)
		require.Equal(t, http.StatusCreated, status, out["error"])
	}
	assert.Equal(t, float64(3), total())

	q := url.Values{"filter": {`{"post_id":1}`}, "sort": {"id"}, "order": {"DESC"}}
	status, out := call(http.MethodGet, "/admin/comments?"+q.Encode(), "")
	require.Equal(t, http.StatusOK, status)
	data := out["result"].(map[string]any)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "c2", data[0].(map[string]any)["id"])

	status, _ = call(http.MethodPost, "/admin/comments/selection", `{"ids":["c1","c3"]}`)
	require.Equal(t, http.StatusOK, status)

	status, out = call(http.MethodDelete, "/admin/comments/c3", "")
	require.Equal(t, http.StatusAccepted, status, out["error"])
	assert.Equal(t, float64(3), total(), "undoable delete waits for its window")

	a.Mutator.Flush()
	assert.Equal(t, float64(2), total())

	status, out = call(http.MethodGet, "/admin/comments/selection", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"c1"}, out["result"].(map[string]any)["selectedIds"])
}
