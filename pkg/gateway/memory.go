package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	synctasks "github.com/namix-io/hierarchy-engine/pkg/sync"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// Call records a single Apply invocation of the memory gateway
type Call struct {
	Identity render.Identity
	Revision string
	Tasks    []string
	Err      error
}

type MemoryOption func(*MemoryGateway)

func WithMemoryLogr(log logr.Logger) MemoryOption {
	return func(g *MemoryGateway) {
		g.log = log
	}
}

// WithLatency delays every apply
func WithLatency(latency time.Duration) MemoryOption {
	return func(g *MemoryGateway) {
		g.latency = latency
	}
}

// WithClock overrides the time source of applied revisions
func WithClock(now func() time.Time) MemoryOption {
	return func(g *MemoryGateway) {
		g.now = now
	}
}

// MemoryGateway simulates clusters in memory. Objects are stored per destination.
type MemoryGateway struct {
	log     logr.Logger
	latency time.Duration
	now     func() time.Time

	lock    sync.Mutex
	objects map[manifest.Destination]map[kube.ResourceKey]*unstructured.Unstructured
	faults  map[string][]error
	calls   []Call
}

func NewMemoryGateway(opts ...MemoryOption) *MemoryGateway {
	g := &MemoryGateway{
		log:     klogr.New(),
		now:     time.Now,
		objects: map[manifest.Destination]map[kube.ResourceKey]*unstructured.Unstructured{},
		faults:  map[string][]error{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FailNext makes the next len(errs) applies of the named identity fail with the given errors
func (g *MemoryGateway) FailNext(name string, errs ...error) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.faults[name] = append(g.faults[name], errs...)
}

func (g *MemoryGateway) Apply(ctx context.Context, target *render.RenderedTarget, changes diff.ChangeSet) (AppliedRevision, error) {
	if g.latency > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(g.latency):
		}
	}
	if err := ctx.Err(); err != nil {
		g.record(Call{Identity: target.Identity, Revision: target.Revision, Err: err})
		return AppliedRevision{}, NewTransientError(target.Identity, err)
	}

	g.lock.Lock()
	defer g.lock.Unlock()
	call := Call{Identity: target.Identity, Revision: target.Revision}
	if faults := g.faults[target.Name]; len(faults) > 0 {
		g.faults[target.Name] = faults[1:]
		call.Err = faults[0]
		g.calls = append(g.calls, call)
		return AppliedRevision{}, faults[0]
	}

	objects, ok := g.objects[target.Destination]
	if !ok {
		objects = map[kube.ResourceKey]*unstructured.Unstructured{}
		g.objects[target.Destination] = objects
	}
	for _, task := range synctasks.Plan(changes) {
		call.Tasks = append(call.Tasks, task.String())
		switch task.Type {
		case common.TaskTypeCreate:
			objects[task.Key] = task.Object.DeepCopy()
		case common.TaskTypeUpdate:
			updated, err := patchObject(objects[task.Key], task)
			if err != nil {
				call.Err = err
				g.calls = append(g.calls, call)
				return AppliedRevision{}, NewPermanentError(target.Identity, err)
			}
			objects[task.Key] = updated
		case common.TaskTypePrune:
			delete(objects, task.Key)
		}
	}
	g.calls = append(g.calls, call)
	g.log.V(1).Info("Applied change set", "identity", target.Identity.String(), "tasks", len(call.Tasks))
	return AppliedRevision{Revision: target.Revision, AppliedAt: g.now()}, nil
}

// patchObject applies the merge patch of the task to the live object, or stores the desired object if it is missing
func patchObject(live *unstructured.Unstructured, task *synctasks.Task) (*unstructured.Unstructured, error) {
	if live == nil {
		return task.Object.DeepCopy(), nil
	}
	data, err := json.Marshal(live.Object)
	if err != nil {
		return nil, err
	}
	patched, err := jsonpatch.MergePatch(data, task.Patch)
	if err != nil {
		return nil, fmt.Errorf("failed to patch %s: %w", task.Key, err)
	}
	res := &unstructured.Unstructured{}
	if err := res.UnmarshalJSON(patched); err != nil {
		return nil, err
	}
	return res, nil
}

func (g *MemoryGateway) Observe(ctx context.Context, id render.Identity, keys []kube.ResourceKey) ([]*unstructured.Unstructured, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	var res []*unstructured.Unstructured
	for _, key := range keys {
		if obj, ok := g.objects[id.Destination][key]; ok {
			res = append(res, obj.DeepCopy())
		}
	}
	return res, nil
}

// Mutate changes a live object in place, simulating drift
func (g *MemoryGateway) Mutate(dest manifest.Destination, key kube.ResourceKey, mutate func(obj *unstructured.Unstructured)) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	obj, ok := g.objects[dest][key]
	if ok {
		mutate(obj)
	}
	return ok
}

// Objects returns copies of the live objects of the destination sorted by key
func (g *MemoryGateway) Objects(dest manifest.Destination) []*unstructured.Unstructured {
	g.lock.Lock()
	defer g.lock.Unlock()
	var res []*unstructured.Unstructured
	for _, key := range kube.SortedKeys(g.objects[dest]) {
		res = append(res, g.objects[dest][key].DeepCopy())
	}
	return res
}

// Calls returns every recorded apply
func (g *MemoryGateway) Calls() []Call {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallsFor returns the recorded applies of the named identity
func (g *MemoryGateway) CallsFor(name string) []Call {
	var res []Call
	for _, call := range g.Calls() {
		if call.Identity.Name == name {
			res = append(res, call)
		}
	}
	return res
}

func (g *MemoryGateway) record(call Call) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.calls = append(g.calls, call)
}
