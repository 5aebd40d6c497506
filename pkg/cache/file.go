package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/namix-io/hierarchy-engine/pkg/render"
	ioutil "github.com/namix-io/hierarchy-engine/pkg/utils/io"
)

const fileStoreVersion = 1

type fileStoreData struct {
	Version int              `json:"version"`
	States  []*ObservedState `json:"states"`
}

// fileStore keeps observed state in memory and persists every change to a JSON file
type fileStore struct {
	*memoryStore
	path string
	lock sync.Mutex
}

// NewFileStore returns a store persisted at path. Existing state is loaded when the file exists.
func NewFileStore(path string, opts ...Option) (Store, error) {
	s := &fileStore{memoryStore: newMemoryStore(opts...), path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}
	var stored fileStoreData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode state file %s: %w", path, err)
	}
	if stored.Version != fileStoreVersion {
		return nil, fmt.Errorf("unsupported state file version %d", stored.Version)
	}
	for _, state := range stored.States {
		s.states.Store(state.Identity, state)
	}
	s.log.V(1).Info("Loaded observed state", "path", path, "states", len(stored.States))
	return s, nil
}

func (s *fileStore) Put(state *ObservedState) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	old, hadOld := s.memoryStore.states.Load(state.Identity)
	copied := state.DeepCopy()
	s.states.Store(copied.Identity, copied)
	if err := s.persist(); err != nil {
		if hadOld {
			s.states.Store(old.Identity, old)
		} else {
			s.states.Delete(copied.Identity)
		}
		return err
	}
	s.notify(copied, old)
	return nil
}

func (s *fileStore) Delete(id render.Identity) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	old, ok := s.states.LoadAndDelete(id)
	if !ok {
		return nil
	}
	if err := s.persist(); err != nil {
		s.states.Store(id, old)
		return err
	}
	s.notify(nil, old)
	return nil
}

func (s *fileStore) persist() error {
	data, err := json.MarshalIndent(fileStoreData{Version: fileStoreVersion, States: s.all()}, "", "  ")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to persist observed state: %w", err)
	}
	return nil
}
