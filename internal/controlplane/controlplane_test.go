package controlplane

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulp/internal/orchestrator"
	"ulp/internal/parser"
	"ulp/internal/sink"
	"ulp/internal/workerpool"
	"ulp/pkg/mapping"
	"ulp/pkg/queue"
	"ulp/pkg/typelattice"
)

type fakeSink struct{}

func (fakeSink) DeclareMapping(ctx context.Context, indexName string, t typelattice.Type) error {
	return nil
}

func (fakeSink) BulkSubmit(ctx context.Context, docs []sink.Document) error { return nil }

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestControlPlane(t *testing.T) (*ControlPlane, *orchestrator.Orchestrator, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	q := queue.New[mapping.Message]()
	pool := workerpool.New(1, q, parser.NewRegistry(), fakeSink{}, dir, silentLogger())
	orch := orchestrator.New(pool, dir, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	orch.Start(ctx)

	return New(orch, silentLogger()), orch, cancel
}

func TestGetJobReturns204WhenEmpty(t *testing.T) {
	cp, _, cancel := newTestControlPlane(t)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/job", nil)
	rec := httptest.NewRecorder()
	cp.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPostJobWithGlobBodyMaterializesJob(t *testing.T) {
	cp, orch, cancel := newTestControlPlane(t)
	defer cancel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.evtx")
	require.NoError(t, os.WriteFile(src, []byte("{}\n"), 0o644))

	body := `"` + src + `"`
	req := httptest.NewRequest(http.MethodPost, "/job", strings.NewReader(body))
	rec := httptest.NewRecorder()
	cp.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return orch.CurrentJob() != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteJobClearsSlot(t *testing.T) {
	cp, orch, cancel := newTestControlPlane(t)
	defer cancel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.evtx")
	require.NoError(t, os.WriteFile(src, []byte("{}\n"), 0o644))
	orch.SubmitIngress(orchestrator.Ingress{Kind: orchestrator.IngressJob, Glob: src})

	require.Eventually(t, func() bool {
		return orch.CurrentJob() != nil
	}, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodDelete, "/job", nil)
	rec := httptest.NewRecorder()
	cp.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, orch.CurrentJob())
}

func TestPostElasticAliasesPostJob(t *testing.T) {
	cp, _, cancel := newTestControlPlane(t)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/elastic", strings.NewReader(`"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`))
	rec := httptest.NewRecorder()
	cp.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
