package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/cache"
	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/gateway"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/metrics"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// reconcileTarget diffs the target against its observed state and applies the changes the sync policy allows.
// Invalid targets are never diffed or applied.
func (e *engine) reconcileTarget(ctx context.Context, log logr.Logger, owner string, policy manifest.SyncPolicy, target *render.RenderedTarget) SyncResult {
	unlock := e.lockIdentity(target.Identity)
	defer unlock()
	log = log.WithValues("identity", target.Identity.String())
	res := SyncResult{Identity: target.Identity, Revision: target.Revision}
	if !target.Valid {
		res.Status = StatusUnknown
		res.Err = target.Err
		res.Message = "target could not be rendered"
		if target.Err != nil {
			res.Message = target.Err.Error()
		}
		log.Info("Skipping invalid target", "reason", res.Message)
		return res
	}

	observed, _ := e.store.Get(target.Identity)
	baseline, diffOpts := observed, e.diffOpts
	if policy.SelfHeal && e.observer != nil {
		live, err := e.observeLive(ctx, target, observed)
		if err != nil {
			log.Info("Failed to observe live state, comparing with last applied state", "error", err.Error())
		} else {
			baseline = live
			diffOpts = append(append([]diff.Option{}, e.diffOpts...), diff.WithLiveBaseline(true))
		}
	}

	_, span := e.tracer.StartSpan(ctx, "diff")
	span.SetBaggageItem("identity", target.Identity.String())
	d, err := diff.Diff(target, baseline, diffOpts...)
	span.Finish()
	if err != nil {
		return failed(res, err)
	}
	res.Diff = d
	switch d.Kind {
	case diff.Indeterminate:
		res.Status = StatusUnknown
		res.Message = d.Reason
		return res
	case diff.NoChange:
		res.Status = StatusSynced
		return res
	}

	if !policy.Automated {
		res.Status = StatusOutOfSync
		res.Message = fmt.Sprintf("%d changes pending, automated sync is disabled", d.Changes.Len())
		return res
	}
	changes := d.Changes
	var retained []*unstructured.Unstructured
	if !policy.Prune {
		retained = changes.Removals
		changes = changes.WithoutRemovals()
	}
	if changes.IsEmpty() {
		res.Status = StatusOutOfSync
		res.Message = fmt.Sprintf("%d resources require pruning", len(retained))
		return res
	}

	applied, err := e.apply(ctx, log, target, changes)
	if err != nil {
		return failed(res, err)
	}
	state := &cache.ObservedState{
		Identity:  target.Identity,
		Owner:     owner,
		Objects:   append(kube.DeepCopyObjects(target.Objects), kube.DeepCopyObjects(retained)...),
		Revision:  applied.Revision,
		AppliedAt: applied.AppliedAt,
	}
	if err := e.store.Put(state); err != nil {
		return failed(res, fmt.Errorf("failed to record observed state: %w", err))
	}
	res.Status = StatusSynced
	res.Message = fmt.Sprintf("applied %d changes", changes.Len())
	if len(retained) > 0 {
		res.Status = StatusOutOfSync
		res.Message = fmt.Sprintf("%s, %d resources require pruning", res.Message, len(retained))
	}
	log.Info("Target reconciled", "status", res.Status, "message", res.Message)
	return res
}

// observeLive returns the live objects of the target and of its last applied state
func (e *engine) observeLive(ctx context.Context, target *render.RenderedTarget, observed *cache.ObservedState) (*cache.ObservedState, error) {
	objs := kube.ObjectsByKey(target.Objects)
	if observed != nil {
		for key, obj := range kube.ObjectsByKey(observed.Objects) {
			objs[key] = obj
		}
	}
	live, err := e.observer.Observe(ctx, target.Identity, kube.SortedKeys(objs))
	if err != nil {
		return nil, err
	}
	return &cache.ObservedState{Identity: target.Identity, Objects: live}, nil
}

// reconcileOrphan prunes the last applied state of an identity that is no longer rendered
func (e *engine) reconcileOrphan(ctx context.Context, log logr.Logger, policy manifest.SyncPolicy, id render.Identity) SyncResult {
	unlock := e.lockIdentity(id)
	defer unlock()
	log = log.WithValues("identity", id.String())
	res := SyncResult{Identity: id, Orphan: true}
	state, ok := e.store.Get(id)
	if !ok {
		res.Status = StatusSynced
		res.Message = "already pruned"
		return res
	}
	res.Revision = state.Revision
	if !policy.Automated || !policy.Prune {
		res.Status = StatusOutOfSync
		res.Message = "no longer rendered, pruning is disabled"
		return res
	}
	if len(state.Objects) > 0 {
		target := &render.RenderedTarget{Identity: id, Valid: true}
		if _, err := e.apply(ctx, log, target, diff.ChangeSet{Removals: state.Objects}); err != nil {
			return failed(res, err)
		}
	}
	if err := e.store.Delete(id); err != nil {
		return failed(res, fmt.Errorf("failed to delete observed state: %w", err))
	}
	res.Status = StatusSynced
	res.Message = fmt.Sprintf("pruned %d resources", len(state.Objects))
	log.Info("Orphan pruned", "resources", len(state.Objects))
	return res
}

// apply calls the gateway with a timeout per attempt and retries transient failures with exponential backoff
func (e *engine) apply(ctx context.Context, log logr.Logger, target *render.RenderedTarget, changes diff.ChangeSet) (gateway.AppliedRevision, error) {
	backoff := e.backoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return gateway.AppliedRevision{}, err
		}
		attemptCtx, span := e.tracer.StartSpan(ctx, "apply")
		span.SetBaggageItem("identity", target.Identity.String())
		span.SetBaggageItem("attempt", attempt)
		start := time.Now()
		attemptCtx, cancel := e.withApplyTimeout(attemptCtx)
		applied, err := e.gateway.Apply(attemptCtx, target, changes)
		cancel()
		span.Finish()
		if err == nil {
			e.metrics.ObserveApply(metrics.ResultSuccess, time.Since(start))
			return applied, nil
		}
		if ctx.Err() != nil {
			return gateway.AppliedRevision{}, ctx.Err()
		}
		var applyErr *gateway.ApplyError
		if !errors.As(err, &applyErr) {
			err = gateway.NewTransientError(target.Identity, err)
		}
		if gateway.IsPermanent(err) {
			e.metrics.ObserveApply(metrics.ResultPermanent, time.Since(start))
			log.Info("Apply failed permanently", "error", err.Error())
			return gateway.AppliedRevision{}, err
		}
		e.metrics.ObserveApply(metrics.ResultTransient, time.Since(start))
		if attempt >= e.maxRetries {
			return gateway.AppliedRevision{}, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}
		delay := backoff.Step()
		log.Info("Apply failed, retrying", "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return gateway.AppliedRevision{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (e *engine) withApplyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.applyTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.applyTimeout)
}

func failed(res SyncResult, err error) SyncResult {
	res.Status = StatusError
	res.Err = err
	res.Message = err.Error()
	return res
}
