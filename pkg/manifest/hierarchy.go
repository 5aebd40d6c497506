package manifest

import (
	"fmt"
	"path"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
)

const (
	HierarchyAPIVersion = "hierarchy.namix.io/v1alpha1"
	HierarchyKind       = "Hierarchy"
)

// Hierarchy is the parent manifest of an intent. It either enumerates children or declares a template that is
// rendered once per parameter set.
type Hierarchy struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Metadata   struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Spec HierarchySpec `json:"spec"`
}

type HierarchySpec struct {
	// Destination overrides the intent destination for every child
	Destination *Destination `json:"destination,omitempty"`
	// SyncPolicy overrides the intent sync policy
	SyncPolicy *SyncPolicy `json:"syncPolicy,omitempty"`
	// Children enumerates child manifests (app-of-apps)
	Children []ChildRef `json:"children,omitempty"`
	// Template and Parameters declare a list generator
	Template   *TemplateRef             `json:"template,omitempty"`
	Parameters []map[string]interface{} `json:"parameters,omitempty"`
}

// ChildRef references a child manifest by path or embeds it
type ChildRef struct {
	Name        string                 `json:"name,omitempty"`
	Path        string                 `json:"path,omitempty"`
	Manifest    string                 `json:"manifest,omitempty"`
	Destination *Destination           `json:"destination,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type TemplateRef struct {
	Path   string `json:"path,omitempty"`
	Inline string `json:"inline,omitempty"`
}

// ChildSpec is one expanded child of a hierarchy
type ChildSpec struct {
	Index int
	Name  string
	// Source points to the file holding the child manifest or its template; zero when Inline is set
	Source ManifestSource
	Inline string
	// Params are substituted into the manifest text; nil means the text is used verbatim
	Params      map[string]interface{}
	Destination Destination
}

// Origin returns a human readable location of the child manifest
func (c ChildSpec) Origin() string {
	if c.Inline != "" {
		return fmt.Sprintf("%s#%d", c.Name, c.Index)
	}
	return c.Source.String()
}

// ParseHierarchy parses and validates the parent manifest of an intent
func ParseHierarchy(source string, data []byte) (*Hierarchy, error) {
	doc, err := Parse(source, data)
	if err != nil {
		return nil, err
	}
	if len(doc.Objects) != 1 {
		return nil, &ParseError{Source: source, Reason: fmt.Sprintf("expected exactly one %s document, found %d", HierarchyKind, len(doc.Objects))}
	}
	obj := doc.Objects[0]
	if obj.GetKind() != HierarchyKind || obj.GetAPIVersion() != HierarchyAPIVersion {
		return nil, &ParseError{Source: source, Reason: fmt.Sprintf("unsupported parent manifest %s, %s expected", obj.GroupVersionKind(), HierarchyKind)}
	}
	var h Hierarchy
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, &h); err != nil {
		return nil, &ParseError{Source: source, Reason: err.Error()}
	}
	if err := h.validate(); err != nil {
		return nil, &ParseError{Source: source, Reason: err.Error()}
	}
	return &h, nil
}

func (h *Hierarchy) validate() error {
	spec := h.Spec
	hasTemplate := spec.Template != nil
	switch {
	case len(spec.Children) > 0 && hasTemplate:
		return fmt.Errorf("spec.children and spec.template are mutually exclusive")
	case len(spec.Children) == 0 && !hasTemplate:
		return fmt.Errorf("either spec.children or spec.template is required")
	case hasTemplate && (spec.Template.Path == "") == (spec.Template.Inline == ""):
		return fmt.Errorf("spec.template requires exactly one of path or inline")
	case !hasTemplate && len(spec.Parameters) > 0:
		return fmt.Errorf("spec.parameters requires spec.template")
	}
	for i, child := range spec.Children {
		if (child.Path == "") == (child.Manifest == "") {
			return fmt.Errorf("spec.children[%d] requires exactly one of path or manifest", i)
		}
	}
	names := map[string]int{}
	for _, child := range h.Children(ManifestSource{}) {
		if prev, ok := names[child.Name]; ok {
			return fmt.Errorf("children %d and %d have the same name %q", prev, child.Index, child.Name)
		}
		names[child.Name] = child.Index
	}
	return nil
}

// Name returns metadata.name of the hierarchy
func (h *Hierarchy) Name() string {
	return h.Metadata.Name
}

// Destination returns the hierarchy destination override merged over the given default
func (h *Hierarchy) Destination(def Destination) Destination {
	if h.Spec.Destination == nil {
		return def
	}
	return h.Spec.Destination.Or(def)
}

// SyncPolicy returns the hierarchy sync policy override or the given default
func (h *Hierarchy) SyncPolicy(def SyncPolicy) SyncPolicy {
	if h.Spec.SyncPolicy == nil {
		return def
	}
	return *h.Spec.SyncPolicy
}

// Children expands children in declaration order. Paths are resolved relative to the parent source.
func (h *Hierarchy) Children(parent ManifestSource) []ChildSpec {
	var res []ChildSpec
	if t := h.Spec.Template; t != nil {
		for i, params := range h.Spec.Parameters {
			child := ChildSpec{Index: i, Params: params, Inline: t.Inline}
			if t.Path != "" {
				child.Source = parent.Join(t.Path)
			}
			if name, ok := params["name"]; ok {
				child.Name = fmt.Sprint(name)
			}
			if child.Name == "" {
				child.Name = fmt.Sprintf("%s-%d", h.Name(), i+1)
			}
			res = append(res, child)
		}
		return res
	}
	for i, ref := range h.Spec.Children {
		child := ChildSpec{Index: i, Name: ref.Name, Inline: ref.Manifest, Params: ref.Parameters}
		if ref.Path != "" {
			child.Source = parent.Join(ref.Path)
		}
		if ref.Destination != nil {
			child.Destination = *ref.Destination
		}
		if child.Name == "" && ref.Path != "" {
			base := path.Base(ref.Path)
			child.Name = strings.TrimSuffix(base, path.Ext(base))
		}
		if child.Name == "" {
			child.Name = fmt.Sprintf("%s-%d", h.Name(), i+1)
		}
		res = append(res, child)
	}
	return res
}
