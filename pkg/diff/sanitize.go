package diff

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const lastAppliedConfigAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// sanitizeObjByKind returns a copy of a live object without fields populated by the API server
func sanitizeObjByKind(obj *unstructured.Unstructured) *unstructured.Unstructured {
	dc := obj.DeepCopy()
	switch obj.GetKind() {
	case "Service":
		sanitizeService(dc)
	case "ServiceAccount":
		sanitizeServiceAccount(dc)
	}
	sanitizeObj(dc)
	return dc
}

func sanitizeObj(obj *unstructured.Unstructured) {
	obj.SetUID("")
	obj.SetGeneration(0)
	obj.SetResourceVersion("")
	obj.SetSelfLink("")
	obj.SetDeletionTimestamp(nil)
	obj.SetCreationTimestamp(metav1.Time{})
	obj.SetManagedFields(nil)
	unstructured.RemoveNestedField(obj.Object, "status")
	if annotations := obj.GetAnnotations(); annotations != nil {
		delete(annotations, lastAppliedConfigAnnotation)
		if len(annotations) == 0 {
			annotations = nil
		}
		obj.SetAnnotations(annotations)
	}
}

func sanitizeService(obj *unstructured.Unstructured) {
	unstructured.RemoveNestedField(obj.Object, "spec", "clusterIP")
	unstructured.RemoveNestedField(obj.Object, "spec", "clusterIPs")
}

func sanitizeServiceAccount(obj *unstructured.Unstructured) {
	unstructured.RemoveNestedField(obj.Object, "secrets")
}
