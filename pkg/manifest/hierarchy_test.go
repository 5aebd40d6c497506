package manifest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHierarchy_Children(t *testing.T) {
	h, err := ParseHierarchy("root.yaml", []byte(`apiVersion: hierarchy.namix.io/v1alpha1
kind: Hierarchy
metadata:
  name: root
spec:
  destination:
    namespace: argocd
  syncPolicy:
    automated: true
    prune: true
  children:
  - path: apps/guestbook-1.yaml
  - name: inline-app
    manifest: |
      apiVersion: v1
      kind: ConfigMap
      metadata:
        name: inline
    destination:
      namespace: other
  - path: /shared/guestbook-3.yml
`))
	require.NoError(t, err)
	assert.Equal(t, "root", h.Name())
	assert.Equal(t, Destination{Server: "https://kubernetes.default.svc", Namespace: "argocd"}, h.Destination(Destination{Server: "https://kubernetes.default.svc", Namespace: "default"}))
	assert.Equal(t, SyncPolicy{Automated: true, Prune: true}, h.SyncPolicy(SyncPolicy{}))

	parent := ManifestSource{RepoURL: "file:///repo", TargetRevision: "main", Path: "clusters/dev/root.yaml"}
	children := h.Children(parent)
	require.Len(t, children, 3)

	assert.Equal(t, "guestbook-1", children[0].Name)
	assert.Equal(t, ManifestSource{RepoURL: "file:///repo", TargetRevision: "main", Path: "clusters/dev/apps/guestbook-1.yaml"}, children[0].Source)
	assert.Nil(t, children[0].Params)

	assert.Equal(t, "inline-app", children[1].Name)
	assert.Contains(t, children[1].Inline, "kind: ConfigMap")
	assert.Equal(t, Destination{Namespace: "other"}, children[1].Destination)
	assert.Equal(t, "inline-app#1", children[1].Origin())

	assert.Equal(t, "guestbook-3", children[2].Name)
	assert.Equal(t, "shared/guestbook-3.yml", children[2].Source.Path)
}

func TestParseHierarchy_Generator(t *testing.T) {
	h, err := ParseHierarchy("appset.yaml", []byte(`apiVersion: hierarchy.namix.io/v1alpha1
kind: Hierarchy
metadata:
  name: guestbook
spec:
  template:
    path: templates/guestbook.yaml
  parameters:
  - name: guestbook-1
    revision: HEAD
  - revision: v1
    replicas: 3
`))
	require.NoError(t, err)
	children := h.Children(ManifestSource{Path: "appset.yaml"})
	require.Len(t, children, 2)
	assert.Equal(t, "guestbook-1", children[0].Name)
	assert.Equal(t, "templates/guestbook.yaml", children[0].Source.Path)
	assert.Equal(t, "HEAD", children[0].Params["revision"])
	assert.Equal(t, "guestbook-2", children[1].Name)
	assert.Equal(t, int64(3), children[1].Params["replicas"])
	assert.Equal(t, 1, children[1].Index)
}

func TestParseHierarchy_Invalid(t *testing.T) {
	header := "apiVersion: hierarchy.namix.io/v1alpha1\nkind: Hierarchy\nmetadata:\n  name: root\n"
	tests := []struct {
		name       string
		data       string
		wantReason string
	}{
		{"empty spec", header + "spec: {}\n", "either spec.children or spec.template is required"},
		{"both", header + "spec:\n  children:\n  - path: a.yaml\n  template:\n    inline: x\n", "mutually exclusive"},
		{"template without source", header + "spec:\n  template: {}\n", "exactly one of path or inline"},
		{"parameters without template", header + "spec:\n  children:\n  - path: a.yaml\n  parameters:\n  - name: a\n", "requires spec.template"},
		{"child without path", header + "spec:\n  children:\n  - name: a\n", "spec.children[0]"},
		{"duplicate names", header + "spec:\n  children:\n  - path: a.yaml\n  - path: other/a.yaml\n", "same name"},
		{"wrong kind", "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: a\n", "unsupported parent manifest"},
		{"two documents", header + "spec:\n  children:\n  - path: a.yaml\n---\n" + header, "exactly one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHierarchy("root.yaml", []byte(tt.data))
			assert.Nil(t, h)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "unexpected error %v", err)
			assert.Contains(t, parseErr.Reason, tt.wantReason)
		})
	}
}

func TestManifestSource_Join(t *testing.T) {
	src := ManifestSource{RepoURL: "file:///repo", Path: "a/b/root.yaml"}
	assert.Equal(t, "a/b/c.yaml", src.Join("c.yaml").Path)
	assert.Equal(t, "a/c.yaml", src.Join("../c.yaml").Path)
	assert.Equal(t, "x/c.yaml", src.Join("/x/c.yaml").Path)
	assert.Equal(t, "file:///repo/a/b/root.yaml@main", ManifestSource{RepoURL: "file:///repo", Path: "a/b/root.yaml", TargetRevision: "main"}.String())
}

func TestDestination(t *testing.T) {
	assert.True(t, Destination{}.IsZero())
	d := Destination{Namespace: "ns"}.Or(Destination{Server: "s", Namespace: "other"})
	assert.Equal(t, Destination{Server: "s", Namespace: "ns"}, d)
	assert.Equal(t, "s/ns", d.String())
}
