package kube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func newObj(apiVersion, kind, namespace, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetAPIVersion(apiVersion)
	obj.SetKind(kind)
	obj.SetNamespace(namespace)
	obj.SetName(name)
	return obj
}

func TestGetResourceKey(t *testing.T) {
	key := GetResourceKey(newObj("argoproj.io/v1alpha1", "Application", "argocd", "guestbook-1"))
	assert.Equal(t, ResourceKey{Group: "argoproj.io", Kind: "Application", Namespace: "argocd", Name: "guestbook-1"}, key)
	assert.Equal(t, "argoproj.io/Application/argocd/guestbook-1", key.String())

	key = GetResourceKey(newObj("v1", "ConfigMap", "", "cm"))
	assert.Equal(t, "", key.Group)
}

func TestIsCRD(t *testing.T) {
	assert.True(t, IsCRD(newObj("apiextensions.k8s.io/v1", "CustomResourceDefinition", "", "foos.example.com")))
	assert.False(t, IsCRD(newObj("v1", "CustomResourceDefinition", "", "foo")))
}

func TestObjectsByKey(t *testing.T) {
	a := newObj("v1", "ConfigMap", "ns", "a")
	b := newObj("v1", "ConfigMap", "ns", "b")
	byKey := ObjectsByKey([]*unstructured.Unstructured{b, nil, a})
	assert.Len(t, byKey, 2)
	keys := SortedKeys(byKey)
	assert.Equal(t, "a", keys[0].Name)
	assert.Equal(t, "b", keys[1].Name)
}

func TestDeepCopyObjects(t *testing.T) {
	assert.Nil(t, DeepCopyObjects(nil))
	orig := newObj("v1", "ConfigMap", "ns", "a")
	copies := DeepCopyObjects([]*unstructured.Unstructured{orig})
	copies[0].SetName("changed")
	assert.Equal(t, "a", orig.GetName())
}
