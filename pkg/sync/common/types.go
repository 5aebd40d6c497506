package common

const (
	// AnnotationSyncWave assigns an object to a sync wave
	AnnotationSyncWave = "argocd.argoproj.io/sync-wave"
	// AnnotationHelmHookWeight is used as the wave of objects without AnnotationSyncWave
	AnnotationHelmHookWeight = "helm.sh/hook-weight"
	// AnnotationDependsOn lists objects that must be applied first, e.g. "ConfigMap/settings,apps/Deployment/db"
	AnnotationDependsOn = "hierarchy.namix.io/depends-on"
)

type TaskType string

const (
	TaskTypeCreate TaskType = "Create"
	TaskTypeUpdate TaskType = "Update"
	TaskTypePrune  TaskType = "Prune"
)
