package render

import (
	"context"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
)

// aggregator renders the hierarchy as a single unit. The first failing child fails the whole ApplySet and every
// declared child is reported as invalid.
type aggregator struct {
	renderer
}

func (a *aggregator) Mode() Mode {
	return ModeAggregator
}

func (a *aggregator) Evaluate(ctx context.Context, intent manifest.Intent) (*ApplySet, error) {
	set := a.newSet(ModeAggregator, intent)
	files := newFileCache(a.reader)

	h, err := a.loadParent(ctx, files, intent)
	if err != nil {
		return a.fail(set, nil, &AggregateRenderError{Intent: intent.Name, Cause: err})
	}
	set.Policy = h.SyncPolicy(intent.SyncPolicy)

	children := h.Children(intent.Source)
	members := make([]*RenderedTarget, 0, len(children))
	for _, child := range children {
		target := a.target(intent, h, child)
		members = append(members, target)
	}
	for i, child := range children {
		if err := ctx.Err(); err != nil {
			return a.fail(set, members, &AggregateRenderError{Intent: intent.Name, Cause: err})
		}
		doc, err := a.renderChild(ctx, files, child)
		if err != nil {
			a.log.Info("Hierarchy render failed", "intent", intent.Name, "child", child.Name, "source", child.Origin(), "error", err.Error())
			return a.fail(set, members, &AggregateRenderError{Intent: intent.Name, FailedChild: child.Name, Cause: err})
		}
		complete(members[i], doc)
	}
	set.Members = members
	a.log.V(1).Info("Hierarchy rendered", "intent", intent.Name, "children", len(members))
	return set, nil
}

// fail marks the set and every member invalid; no rendered objects are kept
func (a *aggregator) fail(set *ApplySet, members []*RenderedTarget, err error) (*ApplySet, error) {
	for _, m := range members {
		m.Objects = nil
		m.Revision = ""
		m.Valid = false
		m.Err = err
	}
	set.Members = members
	set.Failed = true
	set.Err = err
	return set, err
}
