package helm

import (
	"strconv"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
)

// Weight returns the helm hook weight of the object, 0 if not set or malformed
func Weight(obj *unstructured.Unstructured) int {
	text, ok := obj.GetAnnotations()[common.AnnotationHelmHookWeight]
	if ok {
		value, err := strconv.Atoi(text)
		if err == nil {
			return value
		}
	}
	return 0
}
