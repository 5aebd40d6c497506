package render

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
)

// generator renders every child independently. A failing child is kept as an invalid member and does not affect
// its siblings.
type generator struct {
	renderer
}

func (g *generator) Mode() Mode {
	return ModeGenerator
}

func (g *generator) Evaluate(ctx context.Context, intent manifest.Intent) (*ApplySet, error) {
	set := g.newSet(ModeGenerator, intent)
	files := newFileCache(g.reader)

	h, err := g.loadParent(ctx, files, intent)
	if err != nil {
		set.Failed = true
		set.Err = fmt.Errorf("failed to render %s: %w", intent.Name, err)
		return set, set.Err
	}
	set.Policy = h.SyncPolicy(intent.SyncPolicy)

	children := h.Children(intent.Source)
	members := make([]*RenderedTarget, len(children))
	var eg errgroup.Group
	eg.SetLimit(g.parallelism)
	for i := range children {
		child := children[i]
		target := g.target(intent, h, child)
		members[i] = target
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := g.renderChild(ctx, files, child)
			if err != nil {
				target.Err = &RenderError{Child: child.Name, Index: child.Index, Cause: err}
				g.log.Info("Child render failed", "intent", intent.Name, "child", child.Name, "source", child.Origin(), "error", err.Error())
				return nil
			}
			complete(target, doc)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		set.Members = members
		set.Failed = true
		set.Err = fmt.Errorf("failed to render %s: %w", intent.Name, err)
		return set, set.Err
	}
	set.Members = members
	g.log.V(1).Info("Children rendered", "intent", intent.Name, "children", len(members))
	return set, nil
}
