package workerpool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ulp/internal/parser"
	"ulp/internal/sink"
	"ulp/pkg/indexpattern"
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

type fakeSink struct {
	mu        sync.Mutex
	mappings  int
	submitted int
}

func (f *fakeSink) DeclareMapping(ctx context.Context, indexName string, t typelattice.Type) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings++
	return nil
}

func (f *fakeSink) BulkSubmit(ctx context.Context, docs []sink.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted += len(docs)
	return nil
}

func TestPoolProcessesTaskMessage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.evtx")
	require.NoError(t, os.WriteFile(src, []byte("{\"a\":1}\n{\"a\":2}\n"), 0o644))

	store := mapping.New()
	task := mapping.NewTask("job1", src, store, indexpattern.Parse("idx"))

	q := queue.New[mapping.Message]()
	pool := New(2, q, parser.NewRegistry(), &fakeSink{}, dir, silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	q.Push(mapping.NewTaskMessage(task))

	select {
	case msg := <-pool.Returns():
		assert.Equal(t, mapping.MessageTask, msg.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task completion")
	}

	files := store.Files()
	require.Len(t, files, 1)
	assert.Equal(t, int64(1), mustCount(store))
}

func mustCount(store *mapping.Store) int64 {
	gt := store.GlobalType()
	if gt.Kind == typelattice.KindObject {
		return int64(len(gt.Obj))
	}
	return 0
}

var _ sink.Sink = (*fakeSink)(nil)

func TestPoolStatusesReportIdleWhenEmpty(t *testing.T) {
	q := queue.New[mapping.Message]()
	pool := New(3, q, parser.NewRegistry(), &fakeSink{}, t.TempDir(), silentLogger())
	for _, s := range pool.Statuses() {
		assert.Equal(t, "", s)
	}
}

func TestPoolHandlesDebugMessage(t *testing.T) {
	q := queue.New[mapping.Message]()
	pool := New(1, q, parser.NewRegistry(), &fakeSink{}, t.TempDir(), silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	q.Push(mapping.NewDebugMessage(7))
	select {
	case msg := <-pool.Returns():
		assert.Equal(t, mapping.MessageDebug, msg.Kind)
		assert.Equal(t, int64(7), msg.DebugN)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debug echo")
	}
}
