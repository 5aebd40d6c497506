package kube

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	NamespaceKind                = "Namespace"
	CustomResourceDefinitionKind = "CustomResourceDefinition"
)

// ResourceKey uniquely identifies a resource within one destination
type ResourceKey struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Group, k.Kind, k.Namespace, k.Name)
}

func (k ResourceKey) GroupKind() schema.GroupKind {
	return schema.GroupKind{Group: k.Group, Kind: k.Kind}
}

func NewResourceKey(group string, kind string, namespace string, name string) ResourceKey {
	return ResourceKey{Group: group, Kind: kind, Namespace: namespace, Name: name}
}

func GetResourceKey(obj *unstructured.Unstructured) ResourceKey {
	gvk := obj.GroupVersionKind()
	return NewResourceKey(gvk.Group, gvk.Kind, obj.GetNamespace(), obj.GetName())
}

func IsCRD(obj *unstructured.Unstructured) bool {
	return obj.GroupVersionKind().GroupKind() == schema.GroupKind{Group: "apiextensions.k8s.io", Kind: CustomResourceDefinitionKind}
}

// ObjectsByKey indexes objects by resource key. Later duplicates win.
func ObjectsByKey(objs []*unstructured.Unstructured) map[ResourceKey]*unstructured.Unstructured {
	res := make(map[ResourceKey]*unstructured.Unstructured, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		res[GetResourceKey(obj)] = obj
	}
	return res
}

// SortedKeys returns map keys in a stable order
func SortedKeys(objs map[ResourceKey]*unstructured.Unstructured) []ResourceKey {
	keys := make([]ResourceKey, 0, len(objs))
	for k := range objs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// DeepCopyObjects copies every object of the list
func DeepCopyObjects(objs []*unstructured.Unstructured) []*unstructured.Unstructured {
	if objs == nil {
		return nil
	}
	res := make([]*unstructured.Unstructured, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		res = append(res, obj.DeepCopy())
	}
	return res
}
