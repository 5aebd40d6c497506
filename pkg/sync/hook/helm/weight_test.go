package helm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	testingutils "github.com/namix-io/hierarchy-engine/pkg/utils/testing"
)

func TestWeight(t *testing.T) {
	tests := []struct {
		name   string
		weight string
		want   int
	}{
		{"negative", "-5", -5},
		{"positive", "1", 1},
		{"malformed", "heavy", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := testingutils.Annotate(testingutils.NewPod(), common.AnnotationHelmHookWeight, tt.weight)
			assert.Equal(t, tt.want, Weight(obj))
		})
	}
	t.Run("missing", func(t *testing.T) {
		assert.Equal(t, 0, Weight(testingutils.NewPod()))
	})
}
