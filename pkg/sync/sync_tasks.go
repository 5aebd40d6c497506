package sync

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	"github.com/namix-io/hierarchy-engine/pkg/sync/syncwaves"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// kindOrder represents the correct order of Kubernetes resources within a manifest
// https://github.com/helm/helm/blob/0361dc85689e3a6d802c444e2540c92cb5842bc9/pkg/releaseutil/kind_sorter.go
var kindOrder = map[string]int{}

func init() {
	kinds := []string{
		"Namespace",
		"NetworkPolicy",
		"ResourceQuota",
		"LimitRange",
		"PodSecurityPolicy",
		"PodDisruptionBudget",
		"ServiceAccount",
		"Secret",
		"SecretList",
		"ConfigMap",
		"StorageClass",
		"PersistentVolume",
		"PersistentVolumeClaim",
		"CustomResourceDefinition",
		"ClusterRole",
		"ClusterRoleList",
		"ClusterRoleBinding",
		"ClusterRoleBindingList",
		"Role",
		"RoleList",
		"RoleBinding",
		"RoleBindingList",
		"Service",
		"DaemonSet",
		"Pod",
		"ReplicationController",
		"ReplicaSet",
		"Deployment",
		"HorizontalPodAutoscaler",
		"StatefulSet",
		"Job",
		"CronJob",
		"IngressClass",
		"Ingress",
		"APIService",
	}
	for i, kind := range kinds {
		// make sure none of the above entries are zero, we need that for custom resources
		kindOrder[kind] = i - len(kinds)
	}
}

// Task is a single gateway operation
type Task struct {
	Type common.TaskType
	Key  kube.ResourceKey
	// Object is the desired object, or the observed one for prune tasks
	Object *unstructured.Unstructured
	// Observed is the previously applied object of update tasks
	Observed *unstructured.Unstructured
	// Patch is the JSON merge patch of update tasks
	Patch []byte

	waveOverride *int
}

func (t *Task) wave() int {
	if t.waveOverride != nil {
		return *t.waveOverride
	}
	return syncwaves.Wave(t.Object)
}

func (t *Task) dependencies() []taskDependency {
	return parseDependencies(t.Object)
}

func (t *Task) String() string {
	return fmt.Sprintf("%s %s", t.Type, t.Key)
}

type Tasks []*Task

func (s Tasks) Len() int {
	return len(s)
}

func (s Tasks) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Less returns true if task i should be sorted before task j
// The order is:
// 1. Namespaces
// 2. CRDs
// 3. Dependencies
// 4. Wave
// 5. Kind
// 6. Name
func (s Tasks) Less(i, j int) bool {

	l := s[i]
	r := s[j]

	a := l.Object
	b := r.Object

	// namespaces must come before objects that depend on them
	if a.GetKind() == kube.NamespaceKind && a.GroupVersionKind().Group == "" && a.GetName() == b.GetNamespace() {
		return true
	}
	if b.GetKind() == kube.NamespaceKind && b.GroupVersionKind().Group == "" && b.GetName() == a.GetNamespace() {
		return false
	}

	// crds must come before objects that depend on them
	if isCRDOfGroupKind(b.GroupVersionKind().Group, b.GetKind(), a) {
		return true
	}
	if isCRDOfGroupKind(a.GroupVersionKind().Group, a.GetKind(), b) {
		return false
	}

	// Order by dependency.
	// We tolerate cycles in the dependency graph, but we will not detect them.
	// We also tolerate missing dependencies, but we will not detect them.
	if s.dependsOn(r, l) {
		return true
	}
	if s.dependsOn(l, r) {
		return false
	}

	d := l.wave() - r.wave()
	if d != 0 {
		return d < 0
	}

	// we take advantage of the fact that if the kind is not in the kindOrder map,
	// then it will return the default int value of zero, which is the highest value
	d = kindOrder[a.GetKind()] - kindOrder[b.GetKind()]
	if d != 0 {
		return d < 0
	}

	return a.GetName() < b.GetName()
}

// dependsOn returns true if task transitively depends on dep
func (s Tasks) dependsOn(task *Task, dep *Task) bool {
	visited := map[*Task]bool{}
	deps := task.dependencies()
	for len(deps) > 0 {
		next := s.taskFor(deps[0])
		deps = deps[1:]
		if next == nil || visited[next] {
			continue
		}
		if next == dep {
			return true
		}
		visited[next] = true
		deps = append(deps, next.dependencies()...)
	}
	return false
}

func (s Tasks) Sort() {
	s.adjustWaves()
	sort.Stable(s)
}

// adjustWaves moves namespaces and CRDs into the earliest wave of the objects that need them
func (s Tasks) adjustWaves() {
	for _, owner := range s {
		obj := owner.Object
		isNamespace := obj.GetKind() == kube.NamespaceKind && obj.GroupVersionKind().Group == ""
		isCRD := kube.IsCRD(obj)
		if !isNamespace && !isCRD {
			continue
		}
		wave := syncwaves.Wave(obj)
		for _, task := range s {
			if task == owner {
				continue
			}
			other := task.Object
			if isNamespace && other.GetNamespace() == obj.GetName() || isCRD && isCRDOfGroupKind(other.GroupVersionKind().Group, other.GetKind(), obj) {
				if w := syncwaves.Wave(other); w < wave {
					wave = w
				}
			}
		}
		owner.waveOverride = &wave
	}
}

func (s Tasks) Split(predicate func(task *Task) bool) (trueTasks, falseTasks Tasks) {
	for _, task := range s {
		if predicate(task) {
			trueTasks = append(trueTasks, task)
		} else {
			falseTasks = append(falseTasks, task)
		}
	}
	return trueTasks, falseTasks
}

func (s Tasks) Find(predicate func(task *Task) bool) *Task {
	for _, task := range s {
		if predicate(task) {
			return task
		}
	}
	return nil
}

func (s Tasks) String() string {
	var values []string
	for _, task := range s {
		values = append(values, task.String())
	}
	return "[" + strings.Join(values, ", ") + "]"
}

func (s Tasks) taskFor(dep taskDependency) *Task {
	return s.Find(func(task *Task) bool {
		return dep.match(task.Object)
	})
}

func isCRDOfGroupKind(group string, kind string, obj *unstructured.Unstructured) bool {
	if !kube.IsCRD(obj) {
		return false
	}
	crdGroup, _, _ := unstructured.NestedString(obj.Object, "spec", "group")
	crdKind, _, _ := unstructured.NestedString(obj.Object, "spec", "names", "kind")
	return group == crdGroup && kind == crdKind
}
