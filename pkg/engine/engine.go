/*
The package provides high-level interface that leverages "pkg/render", "pkg/diff", "pkg/cache" and "pkg/gateway"
packages and reconciles intents.

Example

	strategy, err := render.NewStrategy(render.ModeGenerator, source.NewFSReader("/srv/gitops"))
	if err != nil {
		return err
	}
	e := engine.NewEngine(strategy, gateway.NewKubeGateway(client, mapper))
	e.Submit(manifest.Intent{Name: "guestbook", Revision: 1, Source: manifest.ManifestSource{Path: "guestbook.yaml"}})
	return e.Run(ctx)
*/
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/util/workqueue"

	"github.com/namix-io/hierarchy-engine/pkg/gateway"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/render"
)

type Engine interface {
	// Submit registers an intent or replaces it with a newer revision, cancelling the in-flight cycle of an older
	// revision. It returns false and ignores the intent if the same or a higher revision is known.
	Submit(intent manifest.Intent) bool
	// Refresh schedules the reconciliation of the named intent if Run is active
	Refresh(name string) bool
	// ReconcileIntent runs one reconciliation cycle of the named intent
	ReconcileIntent(ctx context.Context, name string) (*IntentResult, error)
	// Run reconciles submitted intents until ctx is done
	Run(ctx context.Context) error
	// Status returns the current state of the named intent
	Status(name string) (IntentStatus, bool)
	// OnIntentReconciled registers a handler executed after every completed cycle
	OnIntentReconciled(handler OnIntentReconciledHandler) Unsubscribe
}

type intentState struct {
	// cycleLock serializes reconciliation cycles of the intent
	cycleLock sync.Mutex

	lock          sync.Mutex
	intent        manifest.Intent
	status        Status
	last          *IntentResult
	cancel        context.CancelFunc
	cycleRevision int64
}

type engine struct {
	options
	strategy render.Strategy
	gateway  gateway.Gateway
	observer gateway.Observer

	lock    sync.RWMutex
	intents map[string]*intentState
	queue   workqueue.RateLimitingInterface

	identityLocks sync.Map

	handlersLock sync.Mutex
	handlerKey   uint64
	handlers     map[uint64]OnIntentReconciledHandler
}

// NewEngine creates new instances of the reconciliation engine. Live state is observed for self-healing intents if
// the gateway implements gateway.Observer.
func NewEngine(strategy render.Strategy, gw gateway.Gateway, opts ...Option) Engine {
	e := &engine{
		options:  applyOptions(opts),
		strategy: strategy,
		gateway:  gw,
		intents:  map[string]*intentState{},
		handlers: map[uint64]OnIntentReconciledHandler{},
	}
	if observer, ok := gw.(gateway.Observer); ok {
		e.observer = observer
	}
	return e
}

func (e *engine) Submit(intent manifest.Intent) bool {
	e.lock.Lock()
	st, ok := e.intents[intent.Name]
	if !ok {
		e.intents[intent.Name] = &intentState{intent: intent, status: StatusPending}
	}
	queue := e.queue
	e.lock.Unlock()

	if ok {
		st.lock.Lock()
		if intent.Revision <= st.intent.Revision {
			st.lock.Unlock()
			e.log.V(1).Info("Ignoring intent revision", "intent", intent.Name, "revision", intent.Revision, "known", st.intent.Revision)
			return false
		}
		st.intent = intent
		st.status = StatusPending
		if st.cancel != nil && st.cycleRevision < intent.Revision {
			e.log.Info("Cancelling superseded cycle", "intent", intent.Name, "revision", st.cycleRevision, "newRevision", intent.Revision)
			st.cancel()
		}
		st.lock.Unlock()
	}
	if queue != nil {
		queue.Add(intent.Name)
	}
	return true
}

func (e *engine) Refresh(name string) bool {
	e.lock.RLock()
	_, ok := e.intents[name]
	queue := e.queue
	e.lock.RUnlock()
	if !ok || queue == nil {
		return false
	}
	queue.Add(name)
	return true
}

func (e *engine) Status(name string) (IntentStatus, bool) {
	st, ok := e.getIntent(name)
	if !ok {
		return IntentStatus{}, false
	}
	st.lock.Lock()
	defer st.lock.Unlock()
	return IntentStatus{Intent: st.intent, Status: st.status, Last: st.last}, true
}

func (e *engine) getIntent(name string) (*intentState, bool) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	st, ok := e.intents[name]
	return st, ok
}

func (e *engine) names() []string {
	e.lock.RLock()
	defer e.lock.RUnlock()
	var res []string
	for name := range e.intents {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func (e *engine) ReconcileIntent(ctx context.Context, name string) (*IntentResult, error) {
	st, ok := e.getIntent(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, name)
	}
	st.cycleLock.Lock()
	defer st.cycleLock.Unlock()

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	st.lock.Lock()
	intent := st.intent
	st.cancel = cancel
	st.cycleRevision = intent.Revision
	st.status = StatusRendering
	st.lock.Unlock()

	res, err := e.reconcile(cycleCtx, intent)

	st.lock.Lock()
	st.cancel = nil
	if st.intent.Revision != intent.Revision {
		st.lock.Unlock()
		e.metrics.ObserveSuperseded()
		e.log.Info("Dropping result of superseded cycle", "intent", name, "revision", intent.Revision)
		return nil, ErrSuperseded
	}
	if err != nil {
		if st.last != nil {
			st.status = st.last.Status
		} else {
			st.status = StatusPending
		}
		st.lock.Unlock()
		return nil, err
	}
	st.status = res.Status
	st.last = res
	st.lock.Unlock()

	e.metrics.ObserveReconcile(string(res.Mode), string(res.Status))
	counts := map[string]int{}
	for status, count := range res.Count() {
		counts[string(status)] = count
	}
	e.metrics.SetTargets(name, counts)
	for _, handler := range e.getIntentReconciledHandlers() {
		handler(res)
	}
	return res, nil
}

// reconcile runs one cycle. It returns an error only if ctx is done before the cycle completes.
func (e *engine) reconcile(ctx context.Context, intent manifest.Intent) (*IntentResult, error) {
	opID := uuid.New().String()
	log := e.log.WithValues("intent", intent.Name, "revision", intent.Revision, "operation", opID)
	ctx, span := e.tracer.StartSpan(ctx, "reconcile")
	span.SetBaggageItem("intent", intent.Name)
	span.SetBaggageItem("operation", opID)
	defer span.Finish()

	res := &IntentResult{
		Intent:      intent,
		Mode:        e.strategy.Mode(),
		OperationID: opID,
		Parent:      SyncResult{Identity: render.ParentIdentity(intent)},
	}

	renderCtx, renderSpan := e.tracer.StartSpan(ctx, "render")
	start := time.Now()
	set, err := e.strategy.Evaluate(renderCtx, intent)
	renderSpan.SetBaggageItem("members", len(set.Members))
	renderSpan.Finish()
	e.metrics.ObserveRender(string(res.Mode), set.Failed, time.Since(start))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	res.Size = set.Size()

	if set.Failed {
		if err == nil {
			err = set.Err
		}
		log.Info("Evaluation failed", "error", err.Error())
		e.evaluationFailed(res, set, err)
	} else {
		res.Parent.Revision = intent.Source.TargetRevision
		if err := e.reconcileTargets(ctx, log, res, set); err != nil {
			return nil, err
		}
		res.Parent.Status = parentStatus(res.Children, set)
		res.Parent.Message = summarize(res.Count())
	}
	res.Status = res.Parent.Status
	res.Message = res.Parent.Message
	res.ReconciledAt = e.now()
	log.Info("Reconciled intent", "mode", res.Mode, "status", res.Status, "size", res.Size, "children", len(res.Children))
	return res, nil
}

// parentStatus aggregates the children of a successful evaluation. Members that could not be rendered are reported
// on their own identity only and do not affect the parent.
func parentStatus(children []SyncResult, set *render.ApplySet) Status {
	invalid := map[render.Identity]bool{}
	for _, m := range set.Members {
		if !m.Valid {
			invalid[m.Identity] = true
		}
	}
	statuses := make([]Status, 0, len(children))
	for _, child := range children {
		if !child.Orphan && invalid[child.Identity] {
			continue
		}
		statuses = append(statuses, child.Status)
	}
	return Worst(statuses...)
}

// evaluationFailed reports the parent, every member and every previously applied identity of the intent as Unknown.
// Observed state is left untouched.
func (e *engine) evaluationFailed(res *IntentResult, set *render.ApplySet, err error) {
	res.Err = err
	msg := err.Error()
	members := map[render.Identity]bool{}
	for _, m := range set.Members {
		members[m.Identity] = true
		res.Children = append(res.Children, SyncResult{Identity: m.Identity, Status: StatusUnknown, Message: msg, Err: err})
	}
	for _, state := range e.store.List(res.Intent.Name) {
		if !members[state.Identity] {
			res.Children = append(res.Children, SyncResult{Identity: state.Identity, Status: StatusUnknown, Message: msg, Revision: state.Revision, Err: err})
		}
	}
	res.Parent.Status = StatusUnknown
	res.Parent.Message = msg
	res.Parent.Err = err
}

func (e *engine) reconcileTargets(ctx context.Context, log logr.Logger, res *IntentResult, set *render.ApplySet) error {
	members := set.Forwardable()
	results := make([]SyncResult, len(members))
	g := e.newGroup()
	for i := range members {
		i := i
		g.Go(func() error {
			results[i] = e.reconcileTarget(ctx, log, res.Intent.Name, set.Policy, members[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	orphans := e.orphans(res.Intent.Name, set)
	orphanResults := make([]SyncResult, len(orphans))
	g = e.newGroup()
	for i := range orphans {
		i := i
		g.Go(func() error {
			orphanResults[i] = e.reconcileOrphan(ctx, log, set.Policy, orphans[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	res.Children = append(results, orphanResults...)
	return nil
}

func (e *engine) newGroup() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(e.parallelism)
	return g
}

// orphans returns identities applied by the intent that are not members of the set
func (e *engine) orphans(owner string, set *render.ApplySet) []render.Identity {
	members := map[render.Identity]bool{}
	for _, id := range set.Identities() {
		members[id] = true
	}
	var res []render.Identity
	for _, state := range e.store.List(owner) {
		if !members[state.Identity] {
			res = append(res, state.Identity)
		}
	}
	return res
}

// lockIdentity serializes render, diff and apply of one identity
func (e *engine) lockIdentity(id render.Identity) func() {
	l, _ := e.identityLocks.LoadOrStore(id, &sync.Mutex{})
	lock := l.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}

func (e *engine) OnIntentReconciled(handler OnIntentReconciledHandler) Unsubscribe {
	e.handlersLock.Lock()
	defer e.handlersLock.Unlock()
	key := e.handlerKey
	e.handlerKey++
	e.handlers[key] = handler
	return func() {
		e.handlersLock.Lock()
		defer e.handlersLock.Unlock()
		delete(e.handlers, key)
	}
}

func (e *engine) getIntentReconciledHandlers() []OnIntentReconciledHandler {
	e.handlersLock.Lock()
	defer e.handlersLock.Unlock()
	var handlers []OnIntentReconciledHandler
	for _, h := range e.handlers {
		handlers = append(handlers, h)
	}
	return handlers
}
