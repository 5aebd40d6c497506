package syncwaves

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	testingutils "github.com/namix-io/hierarchy-engine/pkg/utils/testing"
)

func TestWave(t *testing.T) {
	tests := []struct {
		name        string
		annotations map[string]string
		wave        int
	}{
		{"none", nil, 0},
		{"sync wave", map[string]string{common.AnnotationSyncWave: "1"}, 1},
		{"hook weight fallback", map[string]string{common.AnnotationHelmHookWeight: "3"}, 3},
		{"sync wave wins", map[string]string{common.AnnotationHelmHookWeight: "1", common.AnnotationSyncWave: "-2"}, -2},
		{"malformed sync wave", map[string]string{common.AnnotationHelmHookWeight: "2", common.AnnotationSyncWave: "first"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := testingutils.NewConfigMap("settings", "guestbook", nil)
			for k, v := range tt.annotations {
				obj = testingutils.Annotate(obj, k, v)
			}
			assert.Equal(t, tt.wave, Wave(obj))
		})
	}
}
