package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/render"
)

var (
	// ErrSuperseded is returned when the result of a cycle is dropped because a newer intent revision arrived
	ErrSuperseded = errors.New("superseded by a newer intent revision")
	// ErrIntentNotFound is returned for intents that were never submitted
	ErrIntentNotFound = errors.New("intent not found")
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusRendering Status = "Rendering"
	StatusSynced    Status = "Synced"
	StatusOutOfSync Status = "OutOfSync"
	// StatusUnknown means the target could not be rendered and no diff was computed
	StatusUnknown Status = "Unknown"
	StatusError   Status = "Error"
)

// Completed returns true if the status is the outcome of a reconciliation cycle
func (s Status) Completed() bool {
	return s.severity() >= 0
}

func (s Status) severity() int {
	switch s {
	case StatusSynced:
		return 0
	case StatusOutOfSync:
		return 1
	case StatusUnknown:
		return 2
	case StatusError:
		return 3
	}
	return -1
}

// Worst returns the most severe of the given completed statuses, Synced if there are none
func Worst(statuses ...Status) Status {
	res := StatusSynced
	for _, s := range statuses {
		if s.severity() > res.severity() {
			res = s
		}
	}
	return res
}

// SyncResult is the outcome of reconciling one identity
type SyncResult struct {
	render.Identity
	Status  Status
	Message string
	// Diff is nil when no diff was computed
	Diff     *diff.Result
	Revision string
	// Orphan is set for identities that were applied before but are no longer rendered
	Orphan bool
	Err    error
}

// IntentResult is the outcome of one reconciliation cycle of an intent
type IntentResult struct {
	Intent      manifest.Intent
	Mode        render.Mode
	OperationID string
	// Status aggregates the statuses of the parent and its children
	Status  Status
	Message string
	Parent  SyncResult
	// Children holds member results in render order followed by orphans sorted by identity
	Children []SyncResult
	// Size is the number of targets forwarded to the diff engine
	Size         int
	ReconciledAt time.Time
	// Err is the evaluation error when the evaluation as a whole failed
	Err error
}

// Child returns the result of the child with the given name
func (r *IntentResult) Child(name string) (SyncResult, bool) {
	for _, child := range r.Children {
		if child.Name == name {
			return child, true
		}
	}
	return SyncResult{}, false
}

// Count returns the number of children per status
func (r *IntentResult) Count() map[Status]int {
	res := map[Status]int{}
	for _, child := range r.Children {
		res[child.Status]++
	}
	return res
}

func summarize(counts map[Status]int) string {
	var statuses []string
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	var parts []string
	for _, s := range statuses {
		parts = append(parts, fmt.Sprintf("%d %s", counts[Status(s)], s))
	}
	return strings.Join(parts, ", ")
}

// IntentStatus is the current state of a tracked intent
type IntentStatus struct {
	Intent manifest.Intent
	Status Status
	// Last is the result of the last completed cycle, nil if none completed yet
	Last *IntentResult
}

type OnIntentReconciledHandler func(result *IntentResult)
type Unsubscribe func()
