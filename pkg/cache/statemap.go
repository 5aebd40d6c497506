package cache

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/namix-io/hierarchy-engine/pkg/render"
)

// StateMap is thread-safe map of render.Identity to *ObservedState
type StateMap struct {
	log     logr.Logger
	syncMap sync.Map
}

func (m *StateMap) Load(key render.Identity) (*ObservedState, bool) {
	val, ok := m.syncMap.Load(key)
	typedVal, typeOk := val.(*ObservedState)
	if !ok || !typeOk {
		return nil, false
	}
	return typedVal, true
}

func (m *StateMap) LoadAndDelete(key render.Identity) (*ObservedState, bool) {
	val, loaded := m.syncMap.LoadAndDelete(key)
	if !loaded {
		return nil, false
	}
	typedVal, typeOk := val.(*ObservedState)
	if !typeOk {
		m.log.Info("Failed to cast value to *ObservedState")
		return nil, true
	}
	return typedVal, true
}

// Swap stores the state and returns the previous one
func (m *StateMap) Swap(key render.Identity, state *ObservedState) (*ObservedState, bool) {
	val, loaded := m.syncMap.Swap(key, state)
	if !loaded {
		return nil, false
	}
	typedVal, typeOk := val.(*ObservedState)
	if !typeOk {
		m.log.Info("Failed to cast value to *ObservedState")
		return nil, true
	}
	return typedVal, true
}

func (m *StateMap) Store(key render.Identity, state *ObservedState) {
	m.syncMap.Store(key, state)
}

func (m *StateMap) Delete(key render.Identity) {
	m.syncMap.Delete(key)
}

func (m *StateMap) Range(fn func(key render.Identity, value *ObservedState) bool) {
	m.syncMap.Range(func(key, value interface{}) bool {
		typedKey, keyTypeOk := key.(render.Identity)
		typedValue, valueTypeOk := value.(*ObservedState)
		if !keyTypeOk || !valueTypeOk {
			m.log.Info("Failed to cast key and value to render.Identity and *ObservedState")
			return false
		}
		return fn(typedKey, typedValue)
	})
}

func (m *StateMap) Len() int {
	length := 0
	m.syncMap.Range(func(_, _ interface{}) bool {
		length++
		return true
	})
	return length
}
