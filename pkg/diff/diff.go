/*
Package diff compares a rendered target with the observed state of its last apply and produces the ChangeSet that
converges them.
*/
package diff

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/cache"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	jsonutil "github.com/namix-io/hierarchy-engine/pkg/utils/json"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

type ResultKind string

const (
	NoChange ResultKind = "NoChange"
	Changed  ResultKind = "Changed"
	// Indeterminate means no diff could be computed because the target is invalid
	Indeterminate ResultKind = "Indeterminate"
)

// Modification is an object present on both sides with different content
type Modification struct {
	Key      kube.ResourceKey
	Observed *unstructured.Unstructured
	Desired  *unstructured.Unstructured
	// Patch is the JSON merge patch converting Observed into Desired
	Patch []byte
}

// ChangeSet holds the operations converging observed state to a target
type ChangeSet struct {
	Additions     []*unstructured.Unstructured
	Modifications []Modification
	Removals      []*unstructured.Unstructured
}

func (c ChangeSet) IsEmpty() bool {
	return c.Len() == 0
}

func (c ChangeSet) Len() int {
	return len(c.Additions) + len(c.Modifications) + len(c.Removals)
}

// WithoutRemovals returns the change set without removals
func (c ChangeSet) WithoutRemovals() ChangeSet {
	return ChangeSet{Additions: c.Additions, Modifications: c.Modifications}
}

type Result struct {
	Kind     ResultKind
	Identity render.Identity
	Changes  ChangeSet
	// Revision is the revision of the compared target
	Revision string
	// Reason explains an Indeterminate result
	Reason string
}

// Diff computes the changes required to converge observed to target. A nil observed state means nothing was
// applied yet. Invalid targets always produce Indeterminate results and never removals.
func Diff(target *render.RenderedTarget, observed *cache.ObservedState, opts ...Option) (*Result, error) {
	o := applyOptions(opts)
	if target == nil {
		return &Result{Kind: Indeterminate, Reason: "target is missing"}, nil
	}
	res := &Result{Identity: target.Identity, Revision: target.Revision}
	if !target.Valid {
		res.Kind = Indeterminate
		res.Reason = "target could not be rendered"
		if target.Err != nil {
			res.Reason = target.Err.Error()
		}
		o.log.V(1).Info("Skipping diff of invalid target", "identity", target.Identity.String(), "reason", res.Reason)
		return res, nil
	}

	desired := kube.ObjectsByKey(kube.DeepCopyObjects(target.Objects))
	var observedObjs []*unstructured.Unstructured
	if observed != nil {
		observedObjs = kube.DeepCopyObjects(observed.Objects)
	}
	current := kube.ObjectsByKey(observedObjs)

	for _, key := range kube.SortedKeys(desired) {
		desiredObj := desired[key]
		if err := o.normalizer.Normalize(desiredObj); err != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", key, err)
		}
		currentObj, ok := current[key]
		if !ok {
			res.Changes.Additions = append(res.Changes.Additions, desiredObj)
			continue
		}
		if o.liveBaseline {
			currentObj = sanitizeObjByKind(currentObj)
			currentObj = &unstructured.Unstructured{Object: jsonutil.RemoveFields(desiredObj.Object, currentObj.Object)}
		}
		if err := o.normalizer.Normalize(currentObj); err != nil {
			return nil, fmt.Errorf("failed to normalize %s: %w", key, err)
		}
		if equality.Semantic.DeepEqual(desiredObj.Object, currentObj.Object) {
			continue
		}
		patch, err := mergePatch(currentObj, desiredObj)
		if err != nil {
			return nil, fmt.Errorf("failed to compute patch of %s: %w", key, err)
		}
		res.Changes.Modifications = append(res.Changes.Modifications, Modification{Key: key, Observed: currentObj, Desired: desiredObj, Patch: patch})
	}
	for _, key := range kube.SortedKeys(current) {
		if _, ok := desired[key]; !ok {
			res.Changes.Removals = append(res.Changes.Removals, current[key])
		}
	}

	res.Kind = NoChange
	if !res.Changes.IsEmpty() {
		res.Kind = Changed
	}
	o.log.V(1).Info("Diff computed", "identity", target.Identity.String(), "result", res.Kind,
		"additions", len(res.Changes.Additions), "modifications", len(res.Changes.Modifications), "removals", len(res.Changes.Removals))
	return res, nil
}

func mergePatch(observed, desired *unstructured.Unstructured) ([]byte, error) {
	observedJSON, err := json.Marshal(observed.Object)
	if err != nil {
		return nil, err
	}
	desiredJSON, err := json.Marshal(desired.Object)
	if err != nil {
		return nil, err
	}
	return jsonpatch.CreateMergePatch(observedJSON, desiredJSON)
}
