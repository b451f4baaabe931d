package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"cronhub/internal/cron"
	"cronhub/internal/services/scheduler"
	"cronhub/internal/storage"
	logx "cronhub/pkg/logx"
)

type fixture struct {
	svc *scheduler.Service
	reg *prometheus.Registry
	on  cron.Job
	off cron.Job
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "jobs.json")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := prometheus.NewRegistry()
	m, err := scheduler.NewMetrics(reg)
	require.NoError(t, err)
	svc, err := scheduler.New(scheduler.Config{Store: st, Metrics: m})
	require.NoError(t, err)

	ctx := context.Background()
	on, err := svc.AddJob(ctx, "on", cron.Every(60_000), "ping", true)
	require.NoError(t, err)
	off, err := svc.AddJob(ctx, "off", cron.Cron("0 9 * * 1", "UTC"), "", false)
	require.NoError(t, err)
	return fixture{svc: svc, reg: reg, on: on, off: off}
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	h := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)
	h := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()

	decode := func(rec *httptest.ResponseRecorder) []cron.Job {
		var body struct {
			Jobs []cron.Job `json:"jobs"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body.Jobs
	}

	rec := do(t, h, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	jobs := decode(rec)
	require.Len(t, jobs, 1)
	require.Equal(t, f.on.ID, jobs[0].ID)

	jobs = decode(do(t, h, http.MethodGet, "/jobs?all=1", nil))
	require.Len(t, jobs, 2)
	require.Equal(t, f.off.ID, jobs[1].ID)
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)
	h := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/jobs/"+f.off.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got cron.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, f.off, got)

	rec = do(t, h, http.MethodGet, "/jobs/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	h := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()

	rec := do(t, h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "stopped", body["state"])
	require.Equal(t, false, body["running"])
	require.EqualValues(t, 2, body["jobs"])
	require.EqualValues(t, 1, body["enabledJobs"])
	require.EqualValues(t, *f.on.State.NextRunAtMs, body["nextWakeAtMs"])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	h := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()

	ran, err := f.svc.RunJob(context.Background(), f.on.ID, false)
	require.NoError(t, err)
	require.True(t, ran)

	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `cronhub_scheduler_dispatches_total{status="ok"} 1`)
}

func TestTokenAuth(t *testing.T) {
	f := newFixture(t)
	h := New(Config{Token: "s3cret"}, f.svc, f.reg, logx.Nop()).Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", nil).Code)

	rec := do(t, h, http.MethodGet, "/jobs", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/jobs?token=wrong", nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/jobs?token=s3cret", nil).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	require.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/status", map[string]string{"Authorization": "Bearer nope"}).Code)
}

func TestPprofIsOptIn(t *testing.T) {
	f := newFixture(t)

	off := New(Config{}, f.svc, f.reg, logx.Nop()).Handler()
	require.Equal(t, http.StatusNotFound, do(t, off, http.MethodGet, "/debug/pprof/", nil).Code)

	on := New(Config{Pprof: true}, f.svc, f.reg, logx.Nop()).Handler()
	require.Equal(t, http.StatusOK, do(t, on, http.MethodGet, "/debug/pprof/", nil).Code)
}

func TestStartRefusesPublicAddrWithoutToken(t *testing.T) {
	f := newFixture(t)
	s := New(Config{Addr: "0.0.0.0:0"}, f.svc, f.reg, logx.Nop())
	require.ErrorIs(t, s.Start(), ErrInsecureAddr)
	require.Empty(t, s.Addr())
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	s := New(Config{Addr: "127.0.0.1:0"}, f.svc, f.reg, logx.Nop())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	addr := s.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, "ok", strings.TrimSpace(string(body)))

	require.NoError(t, s.Stop(context.Background()))
	require.Empty(t, s.Addr())
	require.NoError(t, s.Stop(context.Background()))
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	for addr, want := range map[string]bool{
		"127.0.0.1:9464": true,
		"localhost:80":   true,
		"[::1]:9464":     true,
		":9464":          false,
		"0.0.0.0:9464":   false,
		"10.0.0.5:9464":  false,
		"bogus":          false,
	} {
		require.Equal(t, want, isLoopbackAddr(addr), addr)
	}
}
