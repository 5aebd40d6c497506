package cache

import (
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// ObservedState is the last successfully applied state of a target
type ObservedState struct {
	render.Identity `json:"identity"`
	// Owner is the name of the intent that applied the state
	Owner     string                       `json:"owner"`
	Objects   []*unstructured.Unstructured `json:"objects"`
	Revision  string                       `json:"revision"`
	AppliedAt time.Time                    `json:"appliedAt"`
}

func (s *ObservedState) DeepCopy() *ObservedState {
	if s == nil {
		return nil
	}
	res := *s
	res.Objects = kube.DeepCopyObjects(s.Objects)
	return &res
}

// OnStateUpdatedHandler handles observed state updates; newState is nil when the state is deleted
type OnStateUpdatedHandler func(newState *ObservedState, oldState *ObservedState)
type Unsubscribe func()

// Store keeps observed state of applied targets
type Store interface {
	// Get returns a copy of the observed state of the given identity
	Get(id render.Identity) (*ObservedState, bool)
	// Put replaces the observed state of state.Identity
	Put(state *ObservedState) error
	// Delete removes the observed state of the given identity
	Delete(id render.Identity) error
	// List returns observed states owned by the given intent, sorted by identity
	List(owner string) []*ObservedState
	// OnStateUpdated register event handler that is executed every time when observed state get's updated
	OnStateUpdated(handler OnStateUpdatedHandler) Unsubscribe
}
