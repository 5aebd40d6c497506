/*
Package sync orders the changes of a diff into gateway tasks and provides the following main features:
  - apply ordering
  - resource pruning order
  - sync waves
  - explicit dependencies

# Apply Ordering

Creates and updates are executed in the predefined order depending of resource type: namespaces, custom resource
definitions first and workload resources last. Namespaces and CRDs are moved into the earliest wave of the objects that
live in them or are instances of them.

# Resource Pruning

Removals are executed after every create and update, in the reverse order, so that namespaces and CRDs are deleted
after their content. Pruning is only requested by the engine when the sync policy allows it.

# Sync Waves

The waves allow to group the apply of resources into batches. Resources are assigned to wave zero by default. The wave
can be negative, so you can create a wave that runs before all other resources. The `argocd.argoproj.io/sync-wave`
annotation assign resource to a wave:

	metadata:
	  annotations:
	    argocd.argoproj.io/sync-wave: "5"

Resources without the annotation fall back to the `helm.sh/hook-weight` annotation.

# Dependencies

The `hierarchy.namix.io/depends-on` annotation lists resources of the same namespace that must be applied first:

	metadata:
	  annotations:
	    hierarchy.namix.io/depends-on: "ConfigMap/settings,apps/Deployment/db"

How Does It Work Together?

Tasks are ordered in the following precedence:

- Namespaces and CRDs before their content
- Dependencies
- The wave they are in (lower values first)
- By kind (e.g. namespaces first)
- By name
*/
package sync
