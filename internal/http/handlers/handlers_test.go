package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avfs/avfs/vfs/memfs"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/tvfilter/internal/catalog"
	"github.com/jmylchreest/tvfilter/internal/http/handlers"
	"github.com/jmylchreest/tvfilter/internal/pipeline"
	"github.com/jmylchreest/tvfilter/internal/pipeline/core"
	"github.com/jmylchreest/tvfilter/internal/storage"
	"github.com/jmylchreest/tvfilter/pkg/xtream"
)

const servedCatalog = `
sources:
  - inputs:
      - name: p
        type: m3u
        url: /in/p.m3u
    targets:
      - name: tv
        output: m3u
      - name: xt
        output: xtream
      - name: lib
        output: strm
      - name: off
        output: m3u
        enabled: false
`

func setupRouter(t *testing.T) (*chi.Mux, *storage.Sandbox) {
	t.Helper()
	sandbox, err := storage.NewSandboxFS(memfs.New(), "/data")
	require.NoError(t, err)

	cat, err := catalog.Parse([]byte(servedCatalog), catalog.Options{})
	require.NoError(t, err)

	router := chi.NewRouter()
	handlers.NewOutputHandler(sandbox, "output", cat).RegisterFileServer(router)
	handlers.NewXtreamHandler(sandbox, "output", cat).RegisterRoutes(router)
	return router, sandbox
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestOutputHandler(t *testing.T) {
	router, sandbox := setupRouter(t)
	require.NoError(t, sandbox.WriteFile("output/tv.m3u", []byte("#EXTM3U\n")))
	require.NoError(t, sandbox.WriteFile("output/off.m3u", []byte("#EXTM3U\n")))
	require.NoError(t, sandbox.WriteFile("output/lib/Movies/Heat (1995).strm", []byte("http://a/heat.mkv")))
	require.NoError(t, sandbox.WriteFile("output/secret.txt", []byte("nope")))

	t.Run("m3u playlist", func(t *testing.T) {
		rec := get(router, "/output/tv")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/x-mpegurl", rec.Header().Get("Content-Type"))
		assert.Equal(t, "#EXTM3U\n", rec.Body.String())
	})

	t.Run("strm file", func(t *testing.T) {
		rec := get(router, "/output/lib/Movies/Heat%20(1995).strm")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://a/heat.mkv", rec.Body.String())
	})

	t.Run("directory listing", func(t *testing.T) {
		rec := get(router, "/output/lib/")
		require.Equal(t, http.StatusOK, rec.Code)
		var names []string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
		assert.Equal(t, []string{"Movies/"}, names)
	})

	t.Run("disabled target", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/output/off").Code)
	})

	t.Run("unknown target", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/output/nope").Code)
	})

	t.Run("not yet published", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/output/xt/live.json").Code)
	})

	t.Run("traversal stays inside target", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/output/lib/..%2Fsecret.txt").Code)
	})

	t.Run("m3u has no sub paths", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/output/tv/anything").Code)
	})
}

func TestXtreamHandler(t *testing.T) {
	router, sandbox := setupRouter(t)

	write := func(name string, v any) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, sandbox.WriteFile("output/xt/"+name, data))
	}
	write(xtream.FileLiveCategories, []xtream.Category{{CategoryID: "1", CategoryName: "News"}, {CategoryID: "2", CategoryName: "Sport"}})
	write(xtream.FileLiveStreams, []map[string]any{
		{"name": "ARD", "stream_id": 1, "category_id": "1"},
		{"name": "Sky", "stream_id": 2, "category_id": 2},
		{"name": "ZDF", "stream_id": 3, "category_id": "1"},
	})

	t.Run("login", func(t *testing.T) {
		rec := get(router, "/xtream/xt/player_api.php?username=u&password=p")
		require.Equal(t, http.StatusOK, rec.Code)
		var info xtream.AuthInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.True(t, info.UserInfo.IsAuthenticated())
		assert.Equal(t, "u", info.UserInfo.Username)
	})

	t.Run("categories", func(t *testing.T) {
		rec := get(router, "/xtream/xt/player_api.php?action=get_live_categories")
		require.Equal(t, http.StatusOK, rec.Code)
		var cats []xtream.Category
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cats))
		assert.Len(t, cats, 2)
	})

	t.Run("streams filtered by category", func(t *testing.T) {
		rec := get(router, "/xtream/xt/player_api.php?action=get_live_streams&category_id=1")
		require.Equal(t, http.StatusOK, rec.Code)
		var streams []xtream.Stream
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
		require.Len(t, streams, 2)
		assert.Equal(t, "ARD", streams[0].Name)
		assert.Equal(t, "ZDF", streams[1].Name)
	})

	t.Run("numeric category id", func(t *testing.T) {
		rec := get(router, "/xtream/xt/player_api.php?action=get_live_streams&category_id=2")
		var streams []xtream.Stream
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streams))
		require.Len(t, streams, 1)
		assert.Equal(t, "Sky", streams[0].Name)
	})

	t.Run("collection not published", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/xtream/xt/player_api.php?action=get_series").Code)
	})

	t.Run("unsupported action", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(router, "/xtream/xt/player_api.php?action=get_short_epg").Code)
	})

	t.Run("not an xtream target", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/xtream/tv/player_api.php?action=get_live_streams").Code)
	})
}

type fakeRuns struct {
	running bool
	last    *pipeline.RunReport
	err     error
	started int
}

func (f *fakeRuns) Running() bool                    { return f.running }
func (f *fakeRuns) LastReport() *pipeline.RunReport { return f.last }
func (f *fakeRuns) Trigger(context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.started++
	return nil
}

func setupAPI(runs *fakeRuns) *chi.Mux {
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	handlers.NewRunsHandler(runs).Register(api)
	handlers.NewHealthHandler("1.2.3").WithRuns(runs).Register(api)
	return router
}

func TestRunsHandler(t *testing.T) {
	t.Run("no run yet", func(t *testing.T) {
		router := setupAPI(&fakeRuns{})
		assert.Equal(t, http.StatusNotFound, get(router, "/api/v1/runs/latest").Code)
	})

	t.Run("latest report", func(t *testing.T) {
		started := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
		runs := &fakeRuns{last: &pipeline.RunReport{
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Targets: []core.TargetStatus{
				{Name: "tv", Output: catalog.OutputM3U, State: core.TargetSucceeded, Channels: 12},
				{Name: "xt", Output: catalog.OutputXtream, State: core.TargetFailed, Error: "boom"},
			},
		}}
		rec := get(setupAPI(runs), "/api/v1/runs/latest")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Targets []struct {
				Name     string `json:"name"`
				State    string `json:"state"`
				Channels int    `json:"channels"`
				Error    string `json:"error"`
			} `json:"targets"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Targets, 2)
		assert.Equal(t, "succeeded", body.Targets[0].State)
		assert.Equal(t, 12, body.Targets[0].Channels)
		assert.Equal(t, "boom", body.Targets[1].Error)
	})

	t.Run("trigger", func(t *testing.T) {
		runs := &fakeRuns{}
		rec := httptest.NewRecorder()
		setupAPI(runs).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, runs.started)
	})

	t.Run("trigger while running", func(t *testing.T) {
		runs := &fakeRuns{err: pipeline.ErrRunInProgress}
		rec := httptest.NewRecorder()
		setupAPI(runs).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("trigger failure", func(t *testing.T) {
		runs := &fakeRuns{err: errors.New("catalog unreadable")}
		rec := httptest.NewRecorder()
		setupAPI(runs).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		runs := &fakeRuns{running: true}
		out, err := handlers.NewHealthHandler("1.2.3").WithRuns(runs).GetHealth(context.Background(), &handlers.HealthInput{})
		require.NoError(t, err)
		assert.Equal(t, "healthy", out.Body.Status)
		assert.Equal(t, "1.2.3", out.Body.Version)
		assert.True(t, out.Body.RunActive)
		assert.NotEmpty(t, out.Body.Uptime)
		assert.Positive(t, out.Body.CPU.Cores)
		assert.Equal(t, "not_configured", out.Body.Checks["database"])
	})

	t.Run("degraded database", func(t *testing.T) {
		h := handlers.NewHealthHandler("1.2.3").WithDB(fakePinger{err: errors.New("gone")})
		out, err := h.GetHealth(context.Background(), &handlers.HealthInput{})
		require.NoError(t, err)
		assert.Equal(t, "degraded", out.Body.Status)

		ready, err := h.GetReadyz(context.Background(), &handlers.ProbeInput{})
		require.NoError(t, err)
		assert.Equal(t, "not_ready", ready.Body.Status)
	})

	t.Run("ready", func(t *testing.T) {
		h := handlers.NewHealthHandler("1.2.3").WithDB(fakePinger{})
		ready, err := h.GetReadyz(context.Background(), &handlers.ProbeInput{})
		require.NoError(t, err)
		assert.Equal(t, "ready", ready.Body.Status)
		assert.Equal(t, "ok", ready.Body.Components["database"])
	})

	t.Run("routes", func(t *testing.T) {
		router := setupAPI(&fakeRuns{})
		assert.Equal(t, http.StatusOK, get(router, "/livez").Code)
		assert.Equal(t, http.StatusOK, get(router, "/api/v1/health").Code)
	})
}
