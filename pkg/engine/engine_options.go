package engine

import (
	"math"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/cache"
	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/metrics"
	"github.com/namix-io/hierarchy-engine/pkg/utils/tracing"
)

const (
	defaultApplyTimeout = 30 * time.Second
	defaultMaxRetries   = 5
	defaultPollInterval = 3 * time.Minute
	defaultWorkers      = 4
	defaultMaxRequeue   = 5 * time.Minute
)

type Option func(*options)

type options struct {
	log          logr.Logger
	store        cache.Store
	workers      int
	parallelism  int
	applyTimeout time.Duration
	backoff      wait.Backoff
	maxRetries   int
	pollInterval time.Duration
	tracer       tracing.Tracer
	metrics      *metrics.Metrics
	diffOpts     []diff.Option
	now          func() time.Time
}

func applyOptions(opts []Option) options {
	o := options{
		log:          klogr.New(),
		workers:      defaultWorkers,
		parallelism:  runtime.NumCPU(),
		applyTimeout: defaultApplyTimeout,
		backoff: wait.Backoff{
			Duration: time.Second,
			Factor:   2,
			Jitter:   0.1,
			Steps:    math.MaxInt32,
			Cap:      time.Minute,
		},
		maxRetries:   defaultMaxRetries,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = cache.NewMemoryStore(cache.WithLogr(o.log))
	}
	if o.tracer == nil {
		o.tracer = tracing.NewTracerFromEnv(o.log)
	}
	return o
}

func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithStore sets the store of observed state, an in-memory store is used by default
func WithStore(store cache.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithWorkers sets the number of intents reconciled concurrently by Run
func WithWorkers(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

// WithParallelism limits the number of targets of one intent processed concurrently
func WithParallelism(parallelism int) Option {
	return func(o *options) {
		if parallelism > 0 {
			o.parallelism = parallelism
		}
	}
}

// WithApplyTimeout bounds every single apply attempt
func WithApplyTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.applyTimeout = timeout
	}
}

// WithBackoff sets the delays between apply retries. Cap also bounds the requeue delay of failed intents in Run.
func WithBackoff(backoff wait.Backoff) Option {
	return func(o *options) {
		o.backoff = backoff
	}
}

// WithMaxRetries sets how many times a transient apply failure is retried
func WithMaxRetries(retries int) Option {
	return func(o *options) {
		o.maxRetries = retries
	}
}

// WithPollInterval sets how often Run re-evaluates every intent; zero disables polling
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.pollInterval = interval
	}
}

func WithTracer(tracer tracing.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithDiffOptions sets options passed to every diff
func WithDiffOptions(opts ...diff.Option) Option {
	return func(o *options) {
		o.diffOpts = opts
	}
}
