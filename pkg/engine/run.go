package engine

import (
	"context"
	"errors"
	"sync"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/workqueue"
)

func (e *engine) Run(ctx context.Context) error {
	maxDelay := e.backoff.Cap
	if maxDelay <= 0 {
		maxDelay = defaultMaxRequeue
	}
	queue := workqueue.NewNamedRateLimitingQueue(workqueue.NewItemExponentialFailureRateLimiter(e.backoff.Duration, maxDelay), "intents")
	e.lock.Lock()
	if e.queue != nil {
		e.lock.Unlock()
		return errors.New("engine is already running")
	}
	e.queue = queue
	e.lock.Unlock()
	defer func() {
		e.lock.Lock()
		e.queue = nil
		e.lock.Unlock()
	}()

	go func() {
		<-ctx.Done()
		queue.ShutDown()
	}()
	enqueueAll := func(_ context.Context) {
		for _, name := range e.names() {
			queue.Add(name)
		}
	}
	if e.pollInterval > 0 {
		go wait.UntilWithContext(ctx, enqueueAll, e.pollInterval)
	} else {
		enqueueAll(ctx)
	}

	e.log.Info("Starting workers", "workers", e.workers, "pollInterval", e.pollInterval.String())
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e.processNextItem(ctx, queue) {
			}
		}()
	}
	wg.Wait()
	e.log.Info("Workers stopped")
	return nil
}

// processNextItem reconciles the next queued intent. Intents ending in Error are requeued with per intent
// exponential backoff; the key is never processed by two workers at once.
func (e *engine) processNextItem(ctx context.Context, queue workqueue.RateLimitingInterface) bool {
	item, shutdown := queue.Get()
	if shutdown {
		return false
	}
	defer queue.Done(item)
	name := item.(string)

	res, err := e.ReconcileIntent(ctx, name)
	switch {
	case errors.Is(err, ErrSuperseded):
		queue.Forget(item)
	case err != nil:
		if ctx.Err() == nil {
			e.log.Error(err, "Failed to reconcile intent", "intent", name)
			queue.AddRateLimited(item)
		}
	case res.Status == StatusError:
		queue.AddRateLimited(item)
	default:
		queue.Forget(item)
	}
	return true
}
