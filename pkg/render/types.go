package render

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
)

type Mode string

const (
	// ModeAggregator renders the whole hierarchy as one unit
	ModeAggregator Mode = "aggregator"
	// ModeGenerator renders every child independently
	ModeGenerator Mode = "generator"
)

// ParseMode converts the configured strategy name into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAggregator, ModeGenerator:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown render mode %q, expected %s or %s", s, ModeAggregator, ModeGenerator)
}

// Identity identifies a rendered target and its observed state
type Identity struct {
	Name        string               `json:"name"`
	Destination manifest.Destination `json:"destination"`
}

func (i Identity) String() string {
	if i.Destination.IsZero() {
		return i.Name
	}
	return fmt.Sprintf("%s@%s", i.Name, i.Destination)
}

// ParentIdentity returns the identity of the intent itself
func ParentIdentity(intent manifest.Intent) Identity {
	return Identity{Name: intent.Name, Destination: intent.Destination}
}

// RenderedTarget is a fully resolved unit of desired state
type RenderedTarget struct {
	Identity
	Index int
	// Source is the human readable origin of the target manifest
	Source  string
	Objects []*unstructured.Unstructured
	// Revision is a content digest of Objects
	Revision string
	Valid    bool
	// Err is set when the target could not be rendered
	Err error
}

// ApplySet is the result of evaluating an intent
type ApplySet struct {
	Intent manifest.Intent
	Mode   Mode
	// Policy is the effective sync policy of the intent
	Policy  manifest.SyncPolicy
	Members []*RenderedTarget
	// Failed is set when the evaluation as a whole failed and nothing may be forwarded
	Failed bool
	Err    error
}

// Forwardable returns members that may be passed to the diff engine
func (s *ApplySet) Forwardable() []*RenderedTarget {
	if s == nil || s.Failed {
		return nil
	}
	return s.Members
}

func (s *ApplySet) Size() int {
	return len(s.Forwardable())
}

// Identities returns identities of all members, forwardable or not
func (s *ApplySet) Identities() []Identity {
	var res []Identity
	for _, m := range s.Members {
		res = append(res, m.Identity)
	}
	return res
}
