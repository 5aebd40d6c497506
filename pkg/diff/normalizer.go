package diff

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/diff/normalizer/knowntypes"
)

// Normalizer updates resource before comparing it
type Normalizer interface {
	Normalize(un *unstructured.Unstructured) error
}

var _ Normalizer = &knowntypes.KnownTypesNormalizer{}

type noopNormalizer struct{}

func (noopNormalizer) Normalize(_ *unstructured.Unstructured) error {
	return nil
}

// GetNoopNormalizer returns normalizer that does not apply any resource modifications
func GetNoopNormalizer() Normalizer {
	return noopNormalizer{}
}

// GetKnownTypesNormalizer returns a normalizer that normalizes pod templates of built-in workload kinds
func GetKnownTypesNormalizer() Normalizer {
	return knowntypes.NewDefaultKnownTypesNormalizer()
}
