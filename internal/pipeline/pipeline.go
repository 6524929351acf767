package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"photorename/internal/config"
	"photorename/internal/logging"
	"photorename/internal/storage"
)

// JobType enumerates supported batch kinds.
type JobType string

const (
	JobRename        JobType = "rename"
	JobSetDatetime   JobType = "set-datetime"
	JobShiftDatetime JobType = "shift-datetime"
	JobCopyMetadata  JobType = "copy-metadata"
)

// Job is one batch over one directory.
type Job struct {
	ID      string
	Type    JobType
	Dir     string
	MapFile string
	Options map[string]any
}

// Result captures the outcome of a Job.
type Result struct {
	Job   Job
	Error error
	Meta  map[string]any
}

// Processor executes a job and returns a Result.
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// Pipeline runs jobs one at a time on a single worker so that batches over
// the same directory never interleave.
type Pipeline struct {
	processor Processor
	log       *slog.Logger
	jobs      chan Job
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	stopOnce  sync.Once
	store     *storage.Store
	mu        sync.Mutex
	subs      map[int]chan Result
	nextSubID int
	stopped   bool
}

// New creates a Pipeline routing jobs with the given dependencies. store may
// be nil.
func New(ctx context.Context, logger *slog.Logger, store *storage.Store, cfg *config.Config, deps Deps) *Pipeline {
	return newWithProcessor(ctx, logger, store, newRouter(logger, store, cfg, deps))
}

func newWithProcessor(ctx context.Context, logger *slog.Logger, store *storage.Store, proc Processor) *Pipeline {
	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		processor: proc,
		log:       logger,
		jobs:      make(chan Job, 8),
		cancel:    cancel,
		store:     store,
		subs:      make(map[int]chan Result),
	}
	p.wg.Add(1)
	go p.worker(ctx)
	return p
}

// Submit adds a job to the processing queue.
func (p *Pipeline) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return errors.New("pipeline stopped")
	}

	if p.store != nil {
		optsJSON, _ := json.Marshal(job.Options)
		simonSez, _ := job.Options["simonSez"].(bool)
		if err := p.store.RecordRunQueued(storage.RunRecord{
			ID:          job.ID,
			JobType:     string(job.Type),
			Directory:   job.Dir,
			MapFile:     job.MapFile,
			DryRun:      !simonSez,
			OptionsJSON: string(optsJSON),
		}); err != nil {
			p.log.Warn("journal write failed", "id", job.ID, "error", err)
		}
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return errors.New("job queue is full")
	}
}

// Stop signals the worker to exit and waits for it.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
		p.cancel()
		p.wg.Wait()
		p.mu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	})
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.broadcast(p.run(ctx, job))
		}
	}
}

func (p *Pipeline) run(ctx context.Context, job Job) Result {
	start := time.Now()
	logging.LogRunStart(p.log, string(job.Type), job.ID, job.Dir, job.Options)
	if err := p.store.RecordRunStart(job.ID); err != nil {
		p.log.Warn("journal write failed", "id", job.ID, "error", err)
	}

	res := p.processor.Process(ctx, job)
	duration := time.Since(start)

	status := storage.StatusCompleted
	if res.Error != nil {
		status = storage.StatusFailed
		logging.LogRunError(p.log, string(job.Type), job.ID, duration, res.Error, map[string]any{
			"directory": job.Dir,
			"map_file":  job.MapFile,
		})
	} else {
		logging.LogRunComplete(p.log, string(job.Type), job.ID, duration, res.Meta)
	}
	if err := p.store.RecordRunResult(job.ID, status, res.Meta, errString(res.Error)); err != nil {
		p.log.Warn("journal write failed", "id", job.ID, "error", err)
	}
	return res
}

// Subscribe returns a channel for receiving job results and an unsubscribe function.
func (p *Pipeline) Subscribe() (<-chan Result, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Result, 8)
	p.subs[id] = ch
	unsub := func() {
		p.mu.Lock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}
	return ch, unsub
}

// RunAndWait submits job and blocks until its result arrives.
func (p *Pipeline) RunAndWait(ctx context.Context, job Job) (Result, error) {
	resCh, unsubscribe := p.Subscribe()
	defer unsubscribe()
	if err := p.Submit(job); err != nil {
		return Result{Job: job}, err
	}
	for {
		select {
		case <-ctx.Done():
			return Result{Job: job}, ctx.Err()
		case res, ok := <-resCh:
			if !ok {
				return Result{Job: job}, errors.New("pipeline stopped before completion")
			}
			if res.Job.ID == job.ID {
				return res, res.Error
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (p *Pipeline) broadcast(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- res:
		default:
			p.log.Warn("result channel full", "subscriber", id, "job", res.Job.ID)
		}
	}
}
