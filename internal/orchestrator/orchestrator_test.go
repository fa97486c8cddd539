package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulp/internal/parser"
	"ulp/internal/sink"
	"ulp/internal/workerpool"
	"ulp/pkg/mapping"
	"ulp/pkg/queue"
	"ulp/pkg/typelattice"
)

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeSink struct{}

func (fakeSink) DeclareMapping(ctx context.Context, indexName string, t typelattice.Type) error {
	return nil
}

func (fakeSink) BulkSubmit(ctx context.Context, docs []sink.Document) error { return nil }

func TestParseUUIDOrGlob(t *testing.T) {
	ship := ParseUUIDOrGlob("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, IngressShip, ship.Kind)

	job := ParseUUIDOrGlob("/var/log/*.evtx")
	assert.Equal(t, IngressJob, job.Kind)
}

func TestOrchestratorEndToEndSingleFileJob(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "source.evtx")
	require.NoError(t, os.WriteFile(srcPath, []byte("{\"a\":1}\n{\"a\":2}\n"), 0o644))

	q := queue.New[mapping.Message]()
	pool := workerpool.New(2, q, parser.NewRegistry(), fakeSink{}, dir, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	orch := New(pool, dir, silentLogger())
	orch.Start(ctx)
	defer orch.Stop()

	orch.SubmitIngress(Ingress{Kind: IngressJob, Glob: srcPath})

	var jobID string
	require.Eventually(t, func() bool {
		job := orch.CurrentJob()
		if job == nil {
			return false
		}
		jobID = job.ID
		return true
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, jobID, "mappings.json"))
		if err != nil {
			return false
		}
		var snap struct {
			Status string `json:"status"`
		}
		if json.Unmarshal(data, &snap) != nil {
			return false
		}
		return snap.Status == "Done"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestClearCurrentJob(t *testing.T) {
	q := queue.New[mapping.Message]()
	pool := workerpool.New(1, q, parser.NewRegistry(), fakeSink{}, t.TempDir(), silentLogger())
	orch := New(pool, t.TempDir(), silentLogger())

	job := mapping.NewJob([]string{"a"})
	orch.setCurrentJob(job)
	assert.NotNil(t, orch.CurrentJob())

	orch.ClearCurrentJob()
	assert.Nil(t, orch.CurrentJob())
}
