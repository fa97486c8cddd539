// Package workerpool implements the bounded worker pool (C5): a fixed
// number of long-lived goroutines consuming mapping.Message off a shared
// BlockingQueue and emitting each completed Message onto a bounded return
// channel, per spec §4.5. Adapted from the teacher's pkg/workerpool —
// same worker/pool split and status-slot idea, generalized from arbitrary
// Task closures to the pipeline's four concrete Message variants.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"ulp/internal/metrics"
	"ulp/internal/parser"
	"ulp/internal/sink"
	"ulp/pkg/errors"
	"ulp/pkg/indexpattern"
	"ulp/pkg/mapping"
	"ulp/pkg/queue"
)

// ReturnDepth is the bounded depth of the pool's return channel, per
// spec §4.5; a full channel blocks the worker trying to emit onto it.
const ReturnDepth = 1000

// BulkBatchSize is how many records a ShipData worker accumulates before
// flushing to the sink, per spec §4.5.
const BulkBatchSize = 1000

// BulkRejectBackoff is the pause between bulk-submit retries after an
// es_rejected_execution_exception, per spec §4.5/§4.8.
const BulkRejectBackoff = time.Second

// Pool is the bounded worker pool. Construct with New, then Start; workers
// run until Stop cancels the shared context.
type Pool struct {
	queue    *queue.BlockingQueue[mapping.Message]
	returns  chan mapping.Message
	registry *parser.Registry
	sink     sink.Sink
	logger   *logrus.Logger
	uploadDir string

	workers []*worker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// worker is one pool goroutine with a read-only status slot reporting the
// path currently in flight, per spec §4.5.
type worker struct {
	id     int
	status atomic.Pointer[string]
}

// Status returns the path the worker is currently processing, or "" when
// idle.
func (w *worker) Status() string {
	p := w.status.Load()
	if p == nil {
		return ""
	}
	return *p
}

func (w *worker) setStatus(path string) {
	if path == "" {
		w.status.Store(nil)
		return
	}
	w.status.Store(&path)
}

// New constructs a Pool with n workers (default 8 if n <= 0), per
// spec §4.5 / §6 (ULP_WORKERS_N).
func New(n int, q *queue.BlockingQueue[mapping.Message], registry *parser.Registry, snk sink.Sink, uploadDir string, logger *logrus.Logger) *Pool {
	if n <= 0 {
		n = 8
	}
	p := &Pool{
		queue:     q,
		returns:   make(chan mapping.Message, ReturnDepth),
		registry:  registry,
		sink:      snk,
		logger:    logger,
		uploadDir: uploadDir,
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, &worker{id: i})
	}
	return p
}

// Returns exposes the pool's return channel for the completion reconciler
// to drain.
func (p *Pool) Returns() <-chan mapping.Message {
	return p.returns
}

// EnqueueMessage pushes msg onto the pool's shared message queue, the
// orchestrator's only write path into the pool (spec §4.6 steps 2/3).
func (p *Pool) EnqueueMessage(msg mapping.Message) {
	p.queue.Push(msg)
}

// Statuses reports every worker's current in-flight path, for /job-style
// diagnostics.
func (p *Pool) Statuses() []string {
	out := make([]string, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.Status()
	}
	return out
}

// Start launches every worker goroutine. Workers observe ctx's
// cancellation between messages; there is no in-task cancellation
// (spec §4.5/§5): a running parse or bulk submit always runs to
// completion.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		p.wg.Add(1)
		go p.run(ctx, w)
	}
}

// Stop signals every worker to exit at its next message boundary and
// blocks until they have.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, w *worker) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		msg := p.take(ctx)
		if msg == nil {
			return
		}
		metrics.WorkerActive.Inc()
		p.handle(ctx, w, *msg)
		metrics.WorkerActive.Dec()
	}
}

// take waits for a message on the shared queue but returns nil promptly on
// ctx cancellation — BlockingQueue has no context-aware variant (spec §4.4
// keeps it minimal), so the pool polls TryTake every 5ms instead of calling
// the blocking Take.
func (p *Pool) take(ctx context.Context) *mapping.Message {
	for {
		if m, ok := p.queue.TryTake(); ok {
			return &m
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *Pool) handle(ctx context.Context, w *worker, msg mapping.Message) {
	switch msg.Kind {
	case mapping.MessageTask:
		p.handleTask(w, msg)
	case mapping.MessageShipData:
		p.handleShipData(ctx, msg)
	case mapping.MessageShipIndexMapping:
		p.handleShipIndexMapping(ctx, msg)
	case mapping.MessageDebug:
		p.handleDebug(msg)
	}
}

func (p *Pool) handleTask(w *worker, msg mapping.Message) {
	t := msg.Task
	w.setStatus(t.Path)
	defer w.setStatus("")

	kind, err := parser.Sniff(t.Path)
	if err != nil || kind == parser.KindUnknown {
		p.logger.WithFields(logrus.Fields{"task_id": t.ID, "path": t.Path}).
			Error("parser init failed: unrecognized file kind")
		metrics.WorkerTasksTotal.WithLabelValues("task", "parser_init_error").Inc()
		p.emit(msg)
		return
	}

	stream, err := p.registry.Open(kind, t.Path)
	if err != nil {
		p.logger.WithError(errors.New(errors.KindParserInit, "workerpool", "Open", err)).Error("parser init failed")
		metrics.WorkerTasksTotal.WithLabelValues("task", "parser_init_error").Inc()
		p.emit(msg)
		return
	}
	defer stream.Close()

	// Observe under the same pattern ShipData will later cast against
	// (keyed off parser kind, sniffed just above), not the task's nominal
	// Pattern field — otherwise the per-index type built at parse time and
	// the per-index type looked up at ship time never agree on a key.
	pattern := defaultPatternFor(string(kind))
	if err := p.drainToNDJSON(stream, t, pattern); err != nil {
		p.logger.WithError(errors.New(errors.KindParserRun, "workerpool", "drain", err)).Error("parser run failed")
		metrics.WorkerTasksTotal.WithLabelValues("task", "parser_run_error").Inc()
		p.emit(msg)
		return
	}

	if err := t.MappingRef.RegisterFile(p.uploadDir, t.JobID, t.ID, t.Path, string(kind)); err != nil {
		p.logger.WithError(err).Error("stats registration failed")
		metrics.WorkerTasksTotal.WithLabelValues("task", "stats_error").Inc()
		p.emit(msg)
		return
	}

	metrics.WorkerTasksTotal.WithLabelValues("task", "ok").Inc()
	p.emit(msg)
}

func (p *Pool) drainToNDJSON(stream parser.RecordStream, t mapping.Task, pattern indexpattern.Pattern) error {
	outPath, err := ndjsonPath(p.uploadDir, t.JobID, t.ID)
	if err != nil {
		return err
	}
	out, err := openAppend(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	for {
		rec, ok, err := stream.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		line, err := rec.MarshalJSON()
		if err != nil {
			p.logger.WithError(err).Warn("skipping record: marshal failed")
			continue
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			return err
		}
		if err := t.MappingRef.Observe(rec, pattern); err != nil {
			// A single record's inference error is fatal to that record
			// only, per spec §7: log and continue rather than abort the
			// file.
			p.logger.WithError(err).Warn("skipping record: type inference failed")
		}
	}
}

func (p *Pool) handleShipData(ctx context.Context, msg mapping.Message) {
	stream, err := newNDJSONReader(msg.ShipParsedPath)
	if err != nil {
		p.logger.WithError(errors.New(errors.KindStats, "workerpool", "ship", err)).Error("cannot open parsed file for shipping")
		p.emit(msg)
		return
	}
	defer stream.Close()

	pattern := defaultPatternFor(msg.ShipParserKind)
	batch := make([]sink.Document, 0, BulkBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for {
			err := p.sink.BulkSubmit(ctx, batch)
			if err == nil {
				break
			}
			if errors.IsRetryable(err) {
				metrics.BulkRetriesTotal.Inc()
				time.Sleep(BulkRejectBackoff)
				continue
			}
			p.logger.WithError(err).Error("bulk submit failed permanently")
			break
		}
		batch = batch[:0]
	}

	for {
		rec, ok, err := stream.Next()
		if err != nil {
			p.logger.WithError(err).Warn("ship: stopping on read error")
			break
		}
		if !ok {
			break
		}
		indexName := pattern.Render(rec)
		cast, err := msg.ShipMapping.Cast(rec, &indexName)
		if err != nil {
			p.logger.WithError(err).Warn("skipping record: cast failed")
			continue
		}
		batch = append(batch, sink.Document{Index: indexName, Record: cast})
		if len(batch) >= BulkBatchSize {
			flush()
		}
	}
	flush()
	metrics.WorkerTasksTotal.WithLabelValues("ship_data", "ok").Inc()
	p.emit(msg)
}

func (p *Pool) handleShipIndexMapping(ctx context.Context, msg mapping.Message) {
	if err := p.sink.DeclareMapping(ctx, msg.IndexName, msg.IndexType); err != nil {
		p.logger.WithError(err).Warn("mapping declaration rejected")
		metrics.WorkerTasksTotal.WithLabelValues("ship_index_mapping", "rejected").Inc()
		p.emit(msg)
		return
	}
	metrics.WorkerTasksTotal.WithLabelValues("ship_index_mapping", "ok").Inc()
	p.emit(msg)
}

func (p *Pool) handleDebug(msg mapping.Message) {
	time.Sleep(time.Millisecond)
	p.emit(msg)
}

func (p *Pool) emit(msg mapping.Message) {
	p.returns <- msg
}

// defaultPatternFor is the parser kind's default index pattern, per spec
// §4.5's "the parser's default pattern" — used both when a Task's records
// are first observed (handleTask, right after the kind is sniffed) and when
// its parsed file is later shipped (handleShipData), so the per-index type
// built at observe time and the per-index type looked up at ship time
// always agree on the same key.
func defaultPatternFor(parserKind string) indexpattern.Pattern {
	return indexpattern.Parse("ulp-" + parserKind)
}
