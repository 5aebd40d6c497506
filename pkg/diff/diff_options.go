package diff

import (
	"github.com/go-logr/logr"
	"k8s.io/klog/v2/klogr"
)

type Option func(*options)

// Holds diffing settings
type options struct {
	normalizer Normalizer
	log        logr.Logger
	// If set to true then observed objects are read from the cluster and need to be sanitized
	liveBaseline bool
}

func applyOptions(opts []Option) options {
	o := options{
		normalizer: GetNoopNormalizer(),
		log:        klogr.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithNormalizer(normalizer Normalizer) Option {
	return func(o *options) {
		o.normalizer = normalizer
	}
}

func WithLogr(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithLiveBaseline marks observed objects as live cluster objects. Server populated fields and fields absent in
// the desired object are ignored.
func WithLiveBaseline(live bool) Option {
	return func(o *options) {
		o.liveBaseline = live
	}
}
