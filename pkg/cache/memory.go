package cache

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/render"
)

type Option func(*memoryStore)

func WithLogr(log logr.Logger) Option {
	return func(s *memoryStore) {
		s.log = log
		s.states.log = log
	}
}

// NewMemoryStore returns a store keeping observed state in memory. Stored and returned states are copies.
func NewMemoryStore(opts ...Option) Store {
	return newMemoryStore(opts...)
}

func newMemoryStore(opts ...Option) *memoryStore {
	log := klogr.New()
	s := &memoryStore{
		log:             log,
		states:          StateMap{log: log},
		updatedHandlers: map[uint64]OnStateUpdatedHandler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type memoryStore struct {
	log    logr.Logger
	states StateMap

	handlersLock    sync.Mutex
	handlerKey      uint64
	updatedHandlers map[uint64]OnStateUpdatedHandler
}

func (s *memoryStore) Get(id render.Identity) (*ObservedState, bool) {
	state, ok := s.states.Load(id)
	if !ok {
		return nil, false
	}
	return state.DeepCopy(), true
}

func (s *memoryStore) Put(state *ObservedState) error {
	state = state.DeepCopy()
	old, _ := s.states.Swap(state.Identity, state)
	s.log.V(1).Info("Observed state updated", "identity", state.Identity.String(), "revision", state.Revision)
	s.notify(state, old)
	return nil
}

func (s *memoryStore) Delete(id render.Identity) error {
	old, ok := s.states.LoadAndDelete(id)
	if !ok {
		return nil
	}
	s.log.V(1).Info("Observed state deleted", "identity", id.String())
	s.notify(nil, old)
	return nil
}

func (s *memoryStore) List(owner string) []*ObservedState {
	var res []*ObservedState
	s.states.Range(func(_ render.Identity, state *ObservedState) bool {
		if state.Owner == owner {
			res = append(res, state.DeepCopy())
		}
		return true
	})
	sort.Slice(res, func(i, j int) bool {
		return res[i].Identity.String() < res[j].Identity.String()
	})
	return res
}

// all returns every stored state sorted by identity
func (s *memoryStore) all() []*ObservedState {
	var res []*ObservedState
	s.states.Range(func(_ render.Identity, state *ObservedState) bool {
		res = append(res, state)
		return true
	})
	sort.Slice(res, func(i, j int) bool {
		return res[i].Identity.String() < res[j].Identity.String()
	})
	return res
}

// OnStateUpdated register event handler that is executed every time when observed state get's updated
func (s *memoryStore) OnStateUpdated(handler OnStateUpdatedHandler) Unsubscribe {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	key := s.handlerKey
	s.handlerKey++
	s.updatedHandlers[key] = handler
	return func() {
		s.handlersLock.Lock()
		defer s.handlersLock.Unlock()
		delete(s.updatedHandlers, key)
	}
}

func (s *memoryStore) getStateUpdatedHandlers() []OnStateUpdatedHandler {
	s.handlersLock.Lock()
	defer s.handlersLock.Unlock()
	handlers := make([]OnStateUpdatedHandler, 0, len(s.updatedHandlers))
	for _, h := range s.updatedHandlers {
		handlers = append(handlers, h)
	}
	return handlers
}

func (s *memoryStore) notify(newState *ObservedState, oldState *ObservedState) {
	for _, h := range s.getStateUpdatedHandlers() {
		h(newState.DeepCopy(), oldState.DeepCopy())
	}
}
