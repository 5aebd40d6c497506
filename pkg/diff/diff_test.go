package diff

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/cache"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	testingutils "github.com/namix-io/hierarchy-engine/pkg/utils/testing"
)

var identity = render.Identity{Name: "guestbook-1", Destination: manifest.Destination{Server: testingutils.DefaultServer, Namespace: "default"}}

func newTarget(objs ...*unstructured.Unstructured) *render.RenderedTarget {
	return &render.RenderedTarget{Identity: identity, Objects: objs, Revision: "rev", Valid: true}
}

func observedFrom(target *render.RenderedTarget) *cache.ObservedState {
	return &cache.ObservedState{Identity: target.Identity, Owner: "guestbook", Objects: target.Objects, Revision: target.Revision}
}

func configMap(name string, value string) *unstructured.Unstructured {
	return testingutils.NewConfigMap(name, "default", map[string]interface{}{"key": value})
}

func TestDiff_NothingApplied(t *testing.T) {
	res, err := Diff(newTarget(configMap("a", "1"), configMap("b", "1")), nil, WithLogr(testr.New(t)))
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Kind)
	require.Len(t, res.Changes.Additions, 2)
	assert.Equal(t, "a", res.Changes.Additions[0].GetName())
	assert.Empty(t, res.Changes.Modifications)
	assert.Empty(t, res.Changes.Removals)
}

func TestDiff_RoundTrip(t *testing.T) {
	target := newTarget(configMap("a", "1"), configMap("b", "2"))
	res, err := Diff(target, observedFrom(target))
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Kind)
	assert.True(t, res.Changes.IsEmpty())
	assert.Equal(t, identity, res.Identity)
}

func TestDiff_Changes(t *testing.T) {
	observed := observedFrom(newTarget(configMap("a", "1"), configMap("b", "1")))
	res, err := Diff(newTarget(configMap("a", "2"), configMap("c", "1")), observed)
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Kind)
	assert.Equal(t, 3, res.Changes.Len())

	require.Len(t, res.Changes.Additions, 1)
	assert.Equal(t, "c", res.Changes.Additions[0].GetName())

	require.Len(t, res.Changes.Modifications, 1)
	mod := res.Changes.Modifications[0]
	assert.Equal(t, "a", mod.Key.Name)
	var patch map[string]interface{}
	require.NoError(t, json.Unmarshal(mod.Patch, &patch))
	assert.Equal(t, map[string]interface{}{"data": map[string]interface{}{"key": "2"}}, patch)

	require.Len(t, res.Changes.Removals, 1)
	assert.Equal(t, "b", res.Changes.Removals[0].GetName())

	assert.Len(t, res.Changes.WithoutRemovals().Removals, 0)
	assert.Equal(t, 2, res.Changes.WithoutRemovals().Len())
}

func TestDiff_InvalidTargetIsIndeterminate(t *testing.T) {
	observed := observedFrom(newTarget(configMap("a", "1"), configMap("b", "1")))
	invalid := &render.RenderedTarget{Identity: identity, Err: errors.New("line 7: did not find expected node content")}

	res, err := Diff(invalid, observed)
	require.NoError(t, err)
	assert.Equal(t, Indeterminate, res.Kind)
	assert.Contains(t, res.Reason, "did not find expected node content")
	assert.Empty(t, res.Changes.Removals)
	assert.True(t, res.Changes.IsEmpty())

	res, err = Diff(nil, observed)
	require.NoError(t, err)
	assert.Equal(t, Indeterminate, res.Kind)
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	target := newTarget(configMap("a", "1"))
	observed := observedFrom(newTarget(configMap("a", "2")))
	_, err := Diff(target, observed, WithLiveBaseline(true))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"key": "1"}, target.Objects[0].Object["data"])
	assert.Equal(t, map[string]interface{}{"key": "2"}, observed.Objects[0].Object["data"])
}

func TestDiff_LiveBaseline(t *testing.T) {
	live := configMap("a", "1")
	live.SetUID("4f7f6e5a")
	live.SetResourceVersion("123")
	live.SetAnnotations(map[string]string{lastAppliedConfigAnnotation: "{}"})
	live.Object["status"] = map[string]interface{}{"phase": "Active"}
	live.Object["data"].(map[string]interface{})["extra"] = "set by controller"
	observed := &cache.ObservedState{Identity: identity, Objects: []*unstructured.Unstructured{live}}

	res, err := Diff(newTarget(configMap("a", "1")), observed, WithLiveBaseline(true))
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Kind)

	live.Object["data"].(map[string]interface{})["key"] = "drifted"
	res, err = Diff(newTarget(configMap("a", "1")), observed, WithLiveBaseline(true))
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Kind)
	require.Len(t, res.Changes.Modifications, 1)

	res, err = Diff(newTarget(configMap("a", "1")), observed)
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Kind)
}

func TestDiff_Normalizer(t *testing.T) {
	deployment := func(cpu string) *unstructured.Unstructured {
		return &unstructured.Unstructured{Object: map[string]interface{}{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"metadata":   map[string]interface{}{"name": "guestbook-ui", "namespace": "default"},
			"spec": map[string]interface{}{
				"template": map[string]interface{}{
					"spec": map[string]interface{}{
						"containers": []interface{}{map[string]interface{}{
							"name":      "guestbook-ui",
							"resources": map[string]interface{}{"requests": map[string]interface{}{"cpu": cpu}},
						}},
					},
				},
			},
		}}
	}
	observed := observedFrom(newTarget(deployment("1")))

	res, err := Diff(newTarget(deployment("1000m")), observed)
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Kind)

	res, err = Diff(newTarget(deployment("1000m")), observed, WithNormalizer(GetKnownTypesNormalizer()))
	require.NoError(t, err)
	assert.Equal(t, NoChange, res.Kind)
}

func TestSanitizeObjByKind(t *testing.T) {
	svc := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata":   map[string]interface{}{"name": "guestbook-ui", "uid": "1", "annotations": map[string]interface{}{"a": "b"}},
		"spec":       map[string]interface{}{"clusterIP": "10.0.0.1", "clusterIPs": []interface{}{"10.0.0.1"}, "type": "ClusterIP"},
		"status":     map[string]interface{}{},
	}}
	res := sanitizeObjByKind(svc)
	assert.Equal(t, map[string]interface{}{"type": "ClusterIP"}, res.Object["spec"])
	assert.Empty(t, res.GetUID())
	assert.Equal(t, map[string]string{"a": "b"}, res.GetAnnotations())
	_, ok := res.Object["status"]
	assert.False(t, ok)
	assert.Equal(t, "1", string(svc.GetUID()))

	sa := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ServiceAccount",
		"metadata":   map[string]interface{}{"name": "default"},
		"secrets":    []interface{}{map[string]interface{}{"name": "default-token"}},
	}}
	_, ok = sanitizeObjByKind(sa).Object["secrets"]
	assert.False(t, ok)
}

func TestTextDiff(t *testing.T) {
	observed := observedFrom(newTarget(configMap("a", "1"), configMap("b", "1")))
	res, err := Diff(newTarget(configMap("a", "2"), configMap("c", "1")), observed)
	require.NoError(t, err)

	text, err := TextDiff(res)
	require.NoError(t, err)
	assert.Contains(t, text, "===== added ConfigMap/c default")
	assert.Contains(t, text, "===== modified ConfigMap/a default")
	assert.Contains(t, text, "===== removed ConfigMap/b default")
	assert.Contains(t, text, "-   key: \"1\"")
	assert.Contains(t, text, "+   key: \"2\"")

	text, err = TextDiff(&Result{Kind: NoChange})
	require.NoError(t, err)
	assert.Empty(t, text)
}
