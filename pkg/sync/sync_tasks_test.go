package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	testingutils "github.com/namix-io/hierarchy-engine/pkg/utils/testing"
)

func Test_Tasks_kindOrder(t *testing.T) {
	assert.Equal(t, -35, kindOrder["Namespace"])
	assert.Equal(t, -1, kindOrder["APIService"])
	assert.Equal(t, 0, kindOrder["MyCRD"])
}

func task(obj map[string]any) *Task {
	return &Task{Type: common.TaskTypeCreate, Object: &unstructured.Unstructured{Object: obj}}
}

func TestSortTasks(t *testing.T) {
	pod := task(map[string]any{"apiVersion": corev1.SchemeGroupVersion.String(), "kind": "Pod"})
	svc := task(map[string]any{"apiVersion": corev1.SchemeGroupVersion.String(), "kind": "Service"})
	pv := task(map[string]any{"apiVersion": corev1.SchemeGroupVersion.String(), "kind": "PersistentVolume"})
	wave1 := task(map[string]any{"metadata": map[string]any{"annotations": map[string]any{"argocd.argoproj.io/sync-wave": "1"}}})
	waveMinus1 := task(map[string]any{"metadata": map[string]any{"annotations": map[string]any{"argocd.argoproj.io/sync-wave": "-1"}}})
	weight2 := task(map[string]any{"metadata": map[string]any{"annotations": map[string]any{"helm.sh/hook-weight": "2"}}})
	b := task(map[string]any{"metadata": map[string]any{"name": "b"}})
	a := task(map[string]any{"metadata": map[string]any{"name": "a"}})

	unsorted := Tasks{pod, weight2, svc, pv, wave1, b, a, waveMinus1}
	unsorted.Sort()
	assert.Equal(t, Tasks{waveMinus1, pv, svc, pod, a, b, wave1, weight2}, unsorted)
}

func TestSyncNamespaceAgainstCRD(t *testing.T) {
	crd := task(map[string]any{"kind": "Workflow"})
	namespace := task(map[string]any{"kind": "Namespace"})
	unsorted := Tasks{crd, namespace}
	unsorted.Sort()
	assert.Equal(t, Tasks{namespace, crd}, unsorted)
}

func TestTasksSort_NamespaceAndObjectInNamespace(t *testing.T) {
	job1 := task(map[string]any{"kind": "Job", "metadata": map[string]any{"namespace": "myNamespace1", "name": "myJob1"}})
	job2 := task(map[string]any{"kind": "Job", "metadata": map[string]any{"namespace": "myNamespace2", "name": "myJob2"}})
	namespace1 := &Task{Object: testingutils.Annotate(testingutils.Unstructured(`{"apiVersion": "v1", "kind": "Namespace", "metadata": {"name": "myNamespace1"}}`), common.AnnotationSyncWave, "1")}
	namespace2 := &Task{Object: testingutils.Annotate(testingutils.Unstructured(`{"apiVersion": "v1", "kind": "Namespace", "metadata": {"name": "myNamespace2"}}`), common.AnnotationSyncWave, "2")}

	unsorted := Tasks{job1, job2, namespace1, namespace2}
	unsorted.Sort()
	assert.Equal(t, Tasks{namespace1, namespace2, job1, job2}, unsorted)
	assert.Equal(t, 0, namespace1.wave())
	assert.Equal(t, 0, namespace2.wave())
}

func TestTasksSort_CRDAndCR(t *testing.T) {
	cr := task(map[string]any{"kind": "Workflow", "apiVersion": "argoproj.io/v1"})
	crd := task(map[string]any{
		"apiVersion": "apiextensions.k8s.io/v1",
		"kind":       "CustomResourceDefinition",
		"spec": map[string]any{
			"group": "argoproj.io",
			"names": map[string]any{
				"kind": "Workflow",
			},
		},
	})
	unsorted := Tasks{cr, crd}
	unsorted.Sort()
	assert.Equal(t, Tasks{crd, cr}, unsorted)
}

func TestTasksSort_Dependencies(t *testing.T) {
	app := &Task{Object: testingutils.Annotate(testingutils.Unstructured(`{"apiVersion": "apps/v1", "kind": "Deployment", "metadata": {"name": "app", "namespace": "ns"}}`), common.AnnotationDependsOn, "apps/Deployment/db")}
	db := &Task{Object: testingutils.Annotate(testingutils.Unstructured(`{"apiVersion": "apps/v1", "kind": "Deployment", "metadata": {"name": "db", "namespace": "ns"}}`), common.AnnotationDependsOn, "ConfigMap/settings")}
	settings := &Task{Object: testingutils.Annotate(testingutils.Unstructured(`{"apiVersion": "v1", "kind": "ConfigMap", "metadata": {"name": "settings", "namespace": "ns"}}`), common.AnnotationSyncWave, "5")}

	unsorted := Tasks{app, db, settings}
	unsorted.Sort()
	assert.Equal(t, Tasks{settings, db, app}, unsorted)
	assert.True(t, unsorted.dependsOn(app, settings))
	assert.False(t, unsorted.dependsOn(settings, app))
}

func TestTasks_Helpers(t *testing.T) {
	a := &Task{Type: common.TaskTypeCreate, Object: testingutils.NewConfigMap("a", "ns", nil)}
	b := &Task{Type: common.TaskTypePrune, Object: testingutils.NewConfigMap("b", "ns", nil)}
	tasks := Tasks{a, b}

	prunes, applies := tasks.Split(func(task *Task) bool {
		return task.Type == common.TaskTypePrune
	})
	assert.Equal(t, Tasks{b}, prunes)
	assert.Equal(t, Tasks{a}, applies)
	assert.Equal(t, a, tasks.Find(func(task *Task) bool {
		return task.Object.GetName() == "a"
	}))
	assert.Nil(t, tasks.Find(func(task *Task) bool {
		return task.Type == common.TaskTypeUpdate
	}))
}
