package render

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/source"
	"github.com/namix-io/hierarchy-engine/pkg/utils/hash"
)

// Strategy turns an intent into an ApplySet. Evaluate always returns a non-nil ApplySet; the returned error is
// non-nil exactly when the ApplySet is Failed.
type Strategy interface {
	Mode() Mode
	Evaluate(ctx context.Context, intent manifest.Intent) (*ApplySet, error)
}

type Option func(*options)

type options struct {
	log         logr.Logger
	parallelism int
}

func applyOptions(opts []Option) options {
	o := options{
		log:         klogr.New(),
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogr(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithParallelism limits the number of children rendered concurrently by the generator strategy
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// NewStrategy returns the strategy configured by mode
func NewStrategy(mode Mode, reader source.Reader, opts ...Option) (Strategy, error) {
	r := renderer{reader: reader, options: applyOptions(opts)}
	switch mode {
	case ModeAggregator:
		return &aggregator{renderer: r}, nil
	case ModeGenerator:
		return &generator{renderer: r}, nil
	}
	return nil, fmt.Errorf("unknown render mode %q", mode)
}

type renderer struct {
	options
	reader source.Reader
}

// loadParent reads and parses the hierarchy document of the intent
func (r *renderer) loadParent(ctx context.Context, files *fileCache, intent manifest.Intent) (*manifest.Hierarchy, error) {
	data, err := files.read(ctx, intent.Source)
	if err != nil {
		return nil, err
	}
	return manifest.ParseHierarchy(intent.Source.String(), data)
}

func (r *renderer) newSet(mode Mode, intent manifest.Intent) *ApplySet {
	return &ApplySet{Intent: intent, Mode: mode, Policy: intent.SyncPolicy}
}

// target returns an empty target for the child with its identity resolved
func (r *renderer) target(intent manifest.Intent, h *manifest.Hierarchy, child manifest.ChildSpec) *RenderedTarget {
	dest := child.Destination.Or(h.Destination(intent.Destination))
	return &RenderedTarget{
		Identity: Identity{Name: child.Name, Destination: dest},
		Index:    child.Index,
		Source:   child.Origin(),
	}
}

// renderChild materialises the objects of a single child
func (r *renderer) renderChild(ctx context.Context, files *fileCache, child manifest.ChildSpec) (*manifest.Document, error) {
	content := []byte(child.Inline)
	if child.Inline == "" {
		data, err := files.read(ctx, child.Source)
		if err != nil {
			return nil, err
		}
		content = data
	}
	if child.Params != nil {
		data, err := executeTemplate(child.Origin(), string(content), child.Params)
		if err != nil {
			return nil, err
		}
		content = data
	}
	return manifest.Parse(child.Origin(), content)
}

// complete fills the target with the rendered objects
func complete(target *RenderedTarget, doc *manifest.Document) {
	target.Objects = doc.Objects
	objs := make([]map[string]interface{}, len(doc.Objects))
	for i := range doc.Objects {
		objs[i] = doc.Objects[i].Object
	}
	target.Revision = hash.Digest(objs)
	target.Valid = true
}
