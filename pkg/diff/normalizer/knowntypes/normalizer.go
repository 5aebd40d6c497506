package knowntypes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var knownTypes = map[string]func() interface{}{}

type KnownTypeField struct {
	fieldPath  []string
	newFieldFn func() interface{}
}

type KnownTypesNormalizer struct {
	typeFields map[schema.GroupKind][]KnownTypeField
}

// NewKnownTypesNormalizer returns a normalizer converting fields to known built-in types. The fields argument maps a
// group kind to field paths and their type names, e.g. "spec.template.spec": "core/v1/PodSpec".
func NewKnownTypesNormalizer(fields map[schema.GroupKind]map[string]string) (*KnownTypesNormalizer, error) {
	n := &KnownTypesNormalizer{typeFields: map[schema.GroupKind][]KnownTypeField{}}
	for gk, paths := range fields {
		for fieldPath, typePath := range paths {
			if err := n.addKnownField(gk, fieldPath, typePath); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

// NewDefaultKnownTypesNormalizer normalizes pod templates of built-in workload kinds
func NewDefaultKnownTypesNormalizer() *KnownTypesNormalizer {
	fields := map[schema.GroupKind]map[string]string{}
	for _, gk := range []schema.GroupKind{
		{Group: "apps", Kind: "Deployment"},
		{Group: "apps", Kind: "StatefulSet"},
		{Group: "apps", Kind: "DaemonSet"},
		{Group: "apps", Kind: "ReplicaSet"},
		{Group: "batch", Kind: "Job"},
	} {
		fields[gk] = map[string]string{"spec.template.spec": "core/v1/PodSpec"}
	}
	n, err := NewKnownTypesNormalizer(fields)
	if err != nil {
		panic(err)
	}
	return n
}

// KnownTypes returns the names of supported types
func KnownTypes() []string {
	res := make([]string, 0, len(knownTypes))
	for name := range knownTypes {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func init() {
	knownTypes["core/v1/PodSpec"] = func() interface{} {
		return &v1.PodSpec{}
	}
	knownTypes["core/v1/Container"] = func() interface{} {
		return &v1.Container{}
	}
	knownTypes["core/Quantity"] = func() interface{} {
		return &resource.Quantity{}
	}

}

func (n *KnownTypesNormalizer) addKnownField(gk schema.GroupKind, fieldPath string, typePath string) error {
	newFieldFn, ok := knownTypes[typePath]
	if !ok {
		return fmt.Errorf("type '%s' is not supported", typePath)
	}
	n.typeFields[gk] = append(n.typeFields[gk], KnownTypeField{
		fieldPath:  strings.Split(fieldPath, "."),
		newFieldFn: newFieldFn,
	})
	return nil
}

func normalize(obj map[string]interface{}, field KnownTypeField, fieldPath []string) error {
	for i := range fieldPath {
		if nestedField, ok, err := unstructured.NestedFieldNoCopy(obj, fieldPath[:i+1]...); err == nil && ok {
			items, ok := nestedField.([]interface{})
			if !ok {
				continue
			}
			for j := range items {
				item, ok := items[j].(map[string]interface{})
				if !ok {
					continue
				}

				subPath := fieldPath[i+1:]
				if len(subPath) == 0 {
					newItem, err := remarshal(item, field)
					if err != nil {
						return err
					}
					items[j] = newItem
				} else {
					if err = normalize(item, field, subPath); err != nil {
						return err
					}
				}
			}
			return unstructured.SetNestedSlice(obj, items, fieldPath[:i+1]...)
		}
	}

	if fieldVal, ok, err := unstructured.NestedFieldNoCopy(obj, fieldPath...); ok && err == nil {
		newFieldVal, err := remarshal(fieldVal, field)
		if err != nil {
			return err
		}
		err = unstructured.SetNestedField(obj, newFieldVal, fieldPath...)
		if err != nil {
			return err
		}
	}

	return nil
}

func remarshal(fieldVal interface{}, field KnownTypeField) (interface{}, error) {
	data, err := json.Marshal(fieldVal)
	if err != nil {
		return nil, err
	}
	typedValue := field.newFieldFn()
	err = json.Unmarshal(data, typedValue)
	if err != nil {
		return nil, err
	}
	data, err = json.Marshal(typedValue)
	if err != nil {
		return nil, err
	}
	var newFieldVal interface{}
	err = json.Unmarshal(data, &newFieldVal)
	if err != nil {
		return nil, err
	}
	return newFieldVal, nil
}

func (n *KnownTypesNormalizer) Normalize(un *unstructured.Unstructured) error {
	if fields, ok := n.typeFields[un.GroupVersionKind().GroupKind()]; ok {
		for _, field := range fields {
			err := normalize(un.Object, field, field.fieldPath)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
