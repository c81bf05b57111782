package systems

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/skybox/engine/core"
	"github.com/spaghettifunk/skybox/engine/renderer/metadata"
)

// JobSystem runs jobs on a fixed pool of worker goroutines.
type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	group      *errgroup.Group
	ctx        context.Context
	cancel     context.CancelFunc

	mutex  sync.RWMutex
	closed bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, core.ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, core.ErrNegativeChannelSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan metadata.JobTask, channelSize),
		group:      group,
		ctx:        ctx,
		cancel:     cancel,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.group.Go(func() error {
			for job := range js.jobQueue {
				js.run(job)
			}
			return nil
		})
	}
}

func (js *JobSystem) run(job metadata.JobTask) {
	defer func() {
		// a broken job must not take the worker down with it
		if r := recover(); r != nil {
			core.LogError("job panicked: %v", r)
			if job.OnFailure != nil {
				job.OnFailure(job.InputParams, core.Wrapf(core.ErrUnknown, "job panicked: %v", r))
			}
		}
	}()

	if job.OnStart == nil {
		core.LogWarn("job submitted without an entry point, ignoring")
		return
	}

	result, err := job.OnStart(js.ctx, job.InputParams)
	if err != nil {
		core.LogError("%s", err)
		if job.OnFailure != nil {
			job.OnFailure(job.InputParams, err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(result)
	}
}

/**
 * @brief Shuts the job system down. The job context is cancelled first, so
 * queued jobs fail fast instead of running to completion.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	js.cancel()
	close(js.jobQueue)
	js.mutex.Unlock()

	return js.group.Wait()
}

/**
 * @brief Queues the provided job for execution. Never blocks: when the queue
 * is full the job is rejected with ErrJobQueueFull.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.closed {
		return core.ErrJobSystemClosed
	}
	select {
	case js.jobQueue <- jt:
		return nil
	default:
		return core.Wrapf(core.ErrJobQueueFull, "%d jobs queued", len(js.jobQueue))
	}
}
