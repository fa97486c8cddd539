// Package orchestrator wires the five pipeline stages described in
// spec.md §4.6: control-plane intake, ingress conversion, task fan-out,
// completion reconciliation, and artifact writing. Adapted from the
// teacher's internal/dispatcher (stage-goroutine-over-channels shape) and
// internal/app (bootstrap/wiring style), restructured around the four
// BlockingQueues and one return channel this pipeline's stages share.
package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ulp/internal/metrics"
	"ulp/internal/workerpool"
	"ulp/pkg/indexpattern"
	"ulp/pkg/mapping"
	"ulp/pkg/queue"
)

// IngressKind tags which variant of Ingress a control-plane request
// produced, per spec §4.6 step 2.
type IngressKind int

const (
	IngressJob IngressKind = iota
	IngressShip
)

// Ingress is the payload the control plane pushes onto the ingress
// queue: either a fresh glob to materialize into a Job, or a request to
// ship an already-completed Job's artifacts downstream.
type Ingress struct {
	Kind  IngressKind
	Glob  string
	JobID string
}

// shipThrottle is the minimum spacing between ShipIndexMapping/ShipData
// messages the ingress converter emits for a Ship request, per spec
// §4.6 step 2.
const shipThrottle = 5 * time.Millisecond

// Orchestrator owns the four BlockingQueues named in spec §4.6 plus the
// worker pool whose return channel the completion reconciler drains.
type Orchestrator struct {
	uploadDir string
	logger    *logrus.Logger
	pool      *workerpool.Pool

	ingressQueue    *queue.BlockingQueue[Ingress]
	workerQueue     *queue.BlockingQueue[*mapping.Job]
	processingQueue *queue.BlockingQueue[*mapping.Job]
	completedQueue  *queue.BlockingQueue[*mapping.Job]

	mu         sync.Mutex
	currentJob *mapping.Job

	wg sync.WaitGroup
}

// New constructs an Orchestrator bound to pool. Call Start to launch its
// four stage goroutines.
func New(pool *workerpool.Pool, uploadDir string, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		uploadDir:       uploadDir,
		logger:          logger,
		pool:            pool,
		ingressQueue:    queue.New[Ingress](),
		workerQueue:     queue.New[*mapping.Job](),
		processingQueue: queue.New[*mapping.Job](),
		completedQueue:  queue.New[*mapping.Job](),
	}
}

// SubmitIngress pushes i onto the ingress queue, per spec §4.6 step 1
// (the control plane's only write path into the orchestrator).
func (o *Orchestrator) SubmitIngress(i Ingress) {
	o.ingressQueue.Push(i)
}

// CurrentJob returns the job most recently materialized by the ingress
// converter, for GET /job (spec §4.7); nil if none, or if it has been
// cleared by DELETE /job. The returned *Job is the same one the pipeline
// keeps working on, not a copy.
func (o *Orchestrator) CurrentJob() *mapping.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentJob
}

// ClearCurrentJob empties the "current job" slot, per DELETE /job
// (spec §4.7).
func (o *Orchestrator) ClearCurrentJob() {
	o.mu.Lock()
	o.currentJob = nil
	o.mu.Unlock()
}

func (o *Orchestrator) setCurrentJob(j *mapping.Job) {
	o.mu.Lock()
	o.currentJob = j
	o.mu.Unlock()
}

// Start launches the four stage goroutines. Workers must already be
// started on the shared pool before calling Start.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(4)
	go o.runIngressConverter(ctx)
	go o.runTaskFanOut(ctx)
	go o.runCompletionReconciler(ctx)
	go o.runArtifactWriter(ctx)
}

// Stop blocks until every stage goroutine has observed ctx's
// cancellation and exited. Callers cancel the context passed to Start,
// then call Stop.
func (o *Orchestrator) Stop() {
	o.wg.Wait()
}

// pollInterval is how often a stage goroutine rechecks a BlockingQueue
// it has no context-aware blocking primitive for (queue.BlockingQueue's
// Take has no ctx-cancellable variant, per spec §4.4's minimal
// contract), mirroring the same poll-with-ctx-select pattern
// internal/workerpool uses against the message queue.
const pollInterval = 5 * time.Millisecond

// runIngressConverter implements spec §4.6 step 2.
func (o *Orchestrator) runIngressConverter(ctx context.Context) {
	defer o.wg.Done()
	for {
		item, ok := o.tryTakeIngress(ctx)
		if !ok {
			return
		}
		switch item.Kind {
		case IngressJob:
			o.convertJobIngress(item.Glob)
		case IngressShip:
			o.convertShipIngress(ctx, item.JobID)
		}
	}
}

func (o *Orchestrator) tryTakeIngress(ctx context.Context) (Ingress, bool) {
	for {
		if v, ok := o.ingressQueue.TryTake(); ok {
			return v, true
		}
		select {
		case <-ctx.Done():
			return Ingress{}, false
		case <-time.After(pollInterval):
		}
	}
}

func (o *Orchestrator) convertJobIngress(glob string) {
	paths, err := filepath.Glob(glob)
	if err != nil {
		o.logger.WithError(err).WithField("glob", glob).Warn("ingress: glob expansion failed")
		return
	}
	if len(paths) == 0 {
		o.logger.WithField("glob", glob).Info("ingress: glob matched no paths, dropping")
		return
	}
	job := mapping.NewJob(paths)
	o.setCurrentJob(job)
	o.workerQueue.Push(job)
	o.logger.WithFields(logrus.Fields{"job_id": job.ID, "paths": len(paths)}).Info("ingress: job materialized")
}

func (o *Orchestrator) convertShipIngress(ctx context.Context, jobID string) {
	path := filepath.Join(o.uploadDir, jobID, "mappings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		o.logger.WithError(err).WithField("job_id", jobID).Warn("ingress: cannot read job artifact to ship")
		return
	}

	job := &mapping.Job{}
	if err := json.Unmarshal(data, job); err != nil {
		o.logger.WithError(err).WithField("job_id", jobID).Warn("ingress: cannot parse job artifact")
		return
	}
	store := job.Mapping

	for idx, ty := range store.PerIndex() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		o.pool.EnqueueMessage(mapping.NewShipIndexMappingMessage(idx, ty))
		time.Sleep(shipThrottle)
	}
	for _, f := range store.Files() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		o.pool.EnqueueMessage(mapping.NewShipDataMessage(store, f.ParsedPath, f.ParserKind))
		time.Sleep(shipThrottle)
	}
}

// runTaskFanOut implements spec §4.6 step 3.
func (o *Orchestrator) runTaskFanOut(ctx context.Context) {
	defer o.wg.Done()
	for {
		job, ok := o.tryTakeJob(ctx, o.workerQueue)
		if !ok {
			return
		}
		for i := len(job.RemainingPaths) - 1; i >= 0; i-- {
			path := job.RemainingPaths[i]
			// Task.Pattern is left zero-valued here: the worker pool derives
			// the real observe-time index pattern from the parser kind it
			// sniffs at t.Path, the same derivation ShipData later uses to
			// pick the per-index type to cast against (internal/workerpool's
			// defaultPatternFor), so the two always agree on a key.
			task := mapping.NewTask(job.ID, path, job.Mapping, indexpattern.Pattern{})
			job.MarkSent(task.ID, task.Path)
			o.pool.EnqueueMessage(mapping.NewTaskMessage(task))
		}
		job.RemainingPaths = nil
		o.processingQueue.Push(job)
	}
}

func (o *Orchestrator) tryTakeJob(ctx context.Context, q *queue.BlockingQueue[*mapping.Job]) (*mapping.Job, bool) {
	for {
		if v, ok := q.TryTake(); ok {
			return v, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(pollInterval):
		}
	}
}

// runCompletionReconciler implements spec §4.6 step 4.
func (o *Orchestrator) runCompletionReconciler(ctx context.Context) {
	defer o.wg.Done()
	for {
		msg, ok := o.tryTakeReturn(ctx)
		if !ok {
			return
		}
		if msg.Kind != mapping.MessageTask {
			continue
		}
		t := msg.Task
		job, found := o.processingQueue.Remove(func(j *mapping.Job) bool {
			return j.ID == t.JobID
		})
		if !found {
			o.logger.WithFields(logrus.Fields{"task_id": t.ID, "job_id": t.JobID}).
				Warn("reconciler: completed task references unknown job")
			continue
		}
		done := job.RecordCompletion(t)
		if done {
			o.completedQueue.Push(job)
		} else {
			o.processingQueue.Push(job)
		}
	}
}

func (o *Orchestrator) tryTakeReturn(ctx context.Context) (mapping.Message, bool) {
	for {
		select {
		case m := <-o.pool.Returns():
			return m, true
		case <-ctx.Done():
			return mapping.Message{}, false
		case <-time.After(pollInterval):
		}
	}
}

// runArtifactWriter implements spec §4.6 step 5.
func (o *Orchestrator) runArtifactWriter(ctx context.Context) {
	defer o.wg.Done()
	for {
		job, ok := o.tryTakeJob(ctx, o.completedQueue)
		if !ok {
			return
		}
		start := job.StartedAt
		dir := filepath.Join(o.uploadDir, job.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			o.logger.WithError(err).WithField("job_id", job.ID).Error("artifact writer: mkdir failed")
			continue
		}
		data, err := json.Marshal(job)
		if err != nil {
			o.logger.WithError(err).WithField("job_id", job.ID).Error("artifact writer: marshal failed")
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, "mappings.json"), data, 0o644); err != nil {
			o.logger.WithError(err).WithField("job_id", job.ID).Error("artifact writer: write failed")
			continue
		}
		metrics.JobsCompletedTotal.Inc()
		o.logger.WithFields(logrus.Fields{
			"job_id":  job.ID,
			"elapsed": time.Since(start).String(),
		}).Info("artifact writer: job persisted")
	}
}

// ParseUUIDOrGlob distinguishes a POST /job body that is a bare UUID
// (→ Ingress::Ship) from one that is anything else (→ Ingress::Job(glob)),
// per spec §4.7's routing rule.
func ParseUUIDOrGlob(body string) Ingress {
	if _, err := uuid.Parse(body); err == nil {
		return Ingress{Kind: IngressShip, JobID: body}
	}
	return Ingress{Kind: IngressJob, Glob: body}
}
