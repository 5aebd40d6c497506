package sync

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
)

type taskDependency struct {
	Namespace string
	Name      string
	Kind      string
	Group     string
}

// match returns true if the given object matches the dependency
func (d taskDependency) match(obj *unstructured.Unstructured) bool {
	return (obj.GetKind() == d.Kind || d.Kind == "") &&
		(strings.HasPrefix(obj.GetAPIVersion(), d.Group+"/") || d.Group == "") &&
		(obj.GetNamespace() == d.Namespace || d.Namespace == "") &&
		(obj.GetGenerateName() == d.Name || obj.GetName() == d.Name || d.Name == "")
}

// parseDependencies parses the comma separated "[group/]kind/name" references of the depends-on annotation.
// Dependencies are looked up in the namespace of the dependent object.
func parseDependencies(obj *unstructured.Unstructured) []taskDependency {
	text, ok := obj.GetAnnotations()[common.AnnotationDependsOn]
	if !ok {
		return nil
	}
	var res []taskDependency
	for _, item := range strings.Split(text, ",") {
		parts := strings.Split(strings.TrimSpace(item), "/")
		dep := taskDependency{Namespace: obj.GetNamespace()}
		switch len(parts) {
		case 2:
			dep.Kind, dep.Name = parts[0], parts[1]
		case 3:
			dep.Group, dep.Kind, dep.Name = parts[0], parts[1], parts[2]
		default:
			continue
		}
		res = append(res, dep)
	}
	return res
}
