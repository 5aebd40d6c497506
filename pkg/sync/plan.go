package sync

import (
	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// Plan orders the changes into gateway tasks. Creates and updates are sorted by dependency, wave, kind and name;
// prune tasks run last in the reverse order.
func Plan(changes diff.ChangeSet) Tasks {
	var tasks Tasks
	for _, obj := range changes.Additions {
		tasks = append(tasks, &Task{Type: common.TaskTypeCreate, Key: kube.GetResourceKey(obj), Object: obj})
	}
	for _, m := range changes.Modifications {
		tasks = append(tasks, &Task{Type: common.TaskTypeUpdate, Key: m.Key, Object: m.Desired, Observed: m.Observed, Patch: m.Patch})
	}
	for _, obj := range changes.Removals {
		tasks = append(tasks, &Task{Type: common.TaskTypePrune, Key: kube.GetResourceKey(obj), Object: obj})
	}

	prunes, applies := tasks.Split(func(task *Task) bool {
		return task.Type == common.TaskTypePrune
	})
	applies.Sort()
	prunes.Sort()
	for i, j := 0, len(prunes)-1; i < j; i, j = i+1, j-1 {
		prunes[i], prunes[j] = prunes[j], prunes[i]
	}
	return append(applies, prunes...)
}
