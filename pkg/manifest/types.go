package manifest

import (
	"fmt"
	"path"
	"strings"
)

// ManifestSource identifies where the content of a manifest originates.
// It is a value type: a changed source is a new ManifestSource.
type ManifestSource struct {
	// RepoURL is the repository location, e.g. file:///srv/gitops or https://github.com/org/repo.git
	RepoURL string `json:"repoURL,omitempty"`
	// TargetRevision is the revision pointer (branch, tag, commit)
	TargetRevision string `json:"targetRevision,omitempty"`
	// Path is the slash separated path of the manifest file relative to the repository root
	Path string `json:"path"`
}

// Join returns the source of a file referenced relative to the directory of this source
func (s ManifestSource) Join(rel string) ManifestSource {
	res := s
	if path.IsAbs(rel) {
		res.Path = path.Clean(strings.TrimPrefix(rel, "/"))
	} else {
		res.Path = path.Join(path.Dir(s.Path), rel)
	}
	return res
}

func (s ManifestSource) String() string {
	var b strings.Builder
	if s.RepoURL != "" {
		b.WriteString(s.RepoURL)
		b.WriteString("/")
	}
	b.WriteString(s.Path)
	if s.TargetRevision != "" {
		b.WriteString("@")
		b.WriteString(s.TargetRevision)
	}
	return b.String()
}

// Destination describes the cluster and namespace the rendered resources are applied to
type Destination struct {
	Server    string `json:"server,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

func (d Destination) String() string {
	return fmt.Sprintf("%s/%s", d.Server, d.Namespace)
}

// IsZero returns true if neither server nor namespace are set
func (d Destination) IsZero() bool {
	return d.Server == "" && d.Namespace == ""
}

// Or returns d with empty fields filled from other
func (d Destination) Or(other Destination) Destination {
	if d.Server == "" {
		d.Server = other.Server
	}
	if d.Namespace == "" {
		d.Namespace = other.Namespace
	}
	return d
}

// SyncPolicy controls how out of sync state is converged
type SyncPolicy struct {
	// Automated enables applying computed change sets; otherwise differences are only reported
	Automated bool `json:"automated,omitempty"`
	// Prune allows deleting resources that are no longer desired
	Prune bool `json:"prune,omitempty"`
	// SelfHeal compares against the live state instead of the last applied state
	SelfHeal bool `json:"selfHeal,omitempty"`
}

// Intent is the declarative description of desired state for one logical unit
type Intent struct {
	Name string
	// Revision orders updates of the same intent, higher revisions supersede lower ones
	Revision    int64
	Source      ManifestSource
	Destination Destination
	SyncPolicy  SyncPolicy
}

func (i Intent) String() string {
	return fmt.Sprintf("%s@%d", i.Name, i.Revision)
}
