package testing

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"

	"github.com/namix-io/hierarchy-engine/pkg/manifest"
	"github.com/namix-io/hierarchy-engine/pkg/source"
)

const (
	DefaultServer    = "https://kubernetes.default.svc"
	DefaultNamespace = "argocd"

	// GuestbookTemplate renders one Argo CD Application per parameter set
	GuestbookTemplate = `apiVersion: argoproj.io/v1alpha1
kind: Application
metadata:
  name: {{ .name }}
  namespace: argocd
spec:
  project: default
  source:
    repoURL: https://github.com/argoproj/argocd-example-apps.git
    targetRevision: {{ .revision }}
    path: guestbook
  destination:
    server: https://kubernetes.default.svc
    namespace: {{ .name }}
`
)

// GuestbookRevisions are the revisions of guestbook-1..4; the last one is malformed YAML once substituted
var GuestbookRevisions = []string{"HEAD", "HEAD", "HEAD", ",HEAD"}

// GuestbookGenerator returns a hierarchy rendering GuestbookTemplate once per revision
func GuestbookGenerator(revisions ...string) string {
	var b strings.Builder
	b.WriteString(`apiVersion: hierarchy.namix.io/v1alpha1
kind: Hierarchy
metadata:
  name: guestbook
spec:
  syncPolicy:
    automated: true
    prune: true
  template:
    path: templates/guestbook.yaml
  parameters:
`)
	for i, rev := range revisions {
		fmt.Fprintf(&b, "  - name: guestbook-%d\n    revision: %q\n", i+1, rev)
	}
	return b.String()
}

// GuestbookChildren returns a hierarchy enumerating apps/guestbook-<i>.yaml for every revision
func GuestbookChildren(revisions ...string) (string, map[string]string) {
	var b strings.Builder
	b.WriteString(`apiVersion: hierarchy.namix.io/v1alpha1
kind: Hierarchy
metadata:
  name: guestbook
spec:
  syncPolicy:
    automated: true
    prune: true
  children:
`)
	files := map[string]string{}
	for i, rev := range revisions {
		name := fmt.Sprintf("guestbook-%d", i+1)
		fmt.Fprintf(&b, "  - path: apps/%s.yaml\n", name)
		files["apps/"+name+".yaml"] = Guestbook(name, rev)
	}
	return b.String(), files
}

// WithoutSyncPolicy removes the sync policy override from a hierarchy built by GuestbookGenerator or
// GuestbookChildren so that the sync policy of the intent applies
func WithoutSyncPolicy(hierarchy string) string {
	return strings.Replace(hierarchy, "  syncPolicy:\n    automated: true\n    prune: true\n", "", 1)
}

// Guestbook returns the guestbook Application manifest with the given name and revision substituted verbatim
func Guestbook(name string, revision string) string {
	res := strings.ReplaceAll(GuestbookTemplate, "{{ .name }}", name)
	return strings.ReplaceAll(res, "{{ .revision }}", revision)
}

// NewGuestbookReader returns a reader serving the generator hierarchy at generator.yaml and the children
// hierarchy at children.yaml
func NewGuestbookReader(revisions ...string) *source.MemoryReader {
	children, files := GuestbookChildren(revisions...)
	files["generator.yaml"] = GuestbookGenerator(revisions...)
	files["children.yaml"] = children
	files["templates/guestbook.yaml"] = GuestbookTemplate
	return source.NewMemoryReader(files)
}

// NewIntent returns an automated intent pointing to the parent manifest at path
func NewIntent(name string, path string) manifest.Intent {
	return manifest.Intent{
		Name:        name,
		Revision:    1,
		Source:      manifest.ManifestSource{RepoURL: "file:///repo", TargetRevision: "HEAD", Path: path},
		Destination: manifest.Destination{Server: DefaultServer, Namespace: DefaultNamespace},
		SyncPolicy:  manifest.SyncPolicy{Automated: true, Prune: true},
	}
}

func NewConfigMap(name string, namespace string, data map[string]interface{}) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name": name,
		},
		"data": data,
	}}
	if namespace != "" {
		obj.SetNamespace(namespace)
	}
	return obj
}

func NewPod() *unstructured.Unstructured {
	return Unstructured(`apiVersion: v1
kind: Pod
metadata:
  name: guestbook-ui
  namespace: guestbook
spec:
  containers:
  - image: gcr.io/heptio-images/ks-guestbook-demo:0.2
    name: guestbook-ui
`)
}

// Unstructured parses a single YAML or JSON object and panics on failure
func Unstructured(text string) *unstructured.Unstructured {
	un := &unstructured.Unstructured{}
	if err := yaml.Unmarshal([]byte(text), &un.Object); err != nil {
		panic(err)
	}
	return un
}

// Annotate sets the annotation on the object and returns it
func Annotate(obj *unstructured.Unstructured, key, val string) *unstructured.Unstructured {
	annotations := obj.GetAnnotations()
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[key] = val
	obj.SetAnnotations(annotations)
	return obj
}
