package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

// Document is the structured result of parsing one manifest file
type Document struct {
	Source  string
	Objects []*unstructured.Unstructured
}

// objectHeader holds the fields every manifest document must declare
type objectHeader struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	Metadata   struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

// Parse parses multi-document YAML manifest text. Either every document is parsed and validated or
// a *ParseError is returned and no document at all. A resource may be declared only once per text.
func Parse(source string, data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var objs []*unstructured.Unstructured
	seen := map[kube.ResourceKey]int{}
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, newYAMLParseError(source, err)
		}
		obj, line, err := nodeToUnstructured(source, &node)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			continue
		}
		key := kube.GetResourceKey(obj)
		if first, ok := seen[key]; ok {
			return nil, &ParseError{Source: source, Line: line, Reason: fmt.Sprintf("duplicate resource %s, first declared on line %d", key, first)}
		}
		seen[key] = line
		objs = append(objs, obj)
	}
	return &Document{Source: source, Objects: objs}, nil
}

// nodeToUnstructured converts a document node and returns the line the resource starts on
func nodeToUnstructured(source string, doc *yaml.Node) (*unstructured.Unstructured, int, error) {
	content := doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil, 0, nil
		}
		content = doc.Content[0]
	}
	if content.Kind == yaml.ScalarNode && content.ShortTag() == "!!null" {
		return nil, 0, nil
	}
	if content.Kind != yaml.MappingNode {
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: "manifest document must be a mapping"}
	}

	var header objectHeader
	if err := content.Decode(&header); err != nil {
		return nil, 0, newYAMLParseError(source, err)
	}
	switch {
	case header.APIVersion == "":
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: "apiVersion is required"}
	case header.Kind == "":
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: "kind is required"}
	case header.Metadata.Name == "":
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: "metadata.name is required"}
	}

	data, err := yaml.Marshal(content)
	if err != nil {
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: err.Error()}
	}
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: err.Error()}
	}
	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(jsonData); err != nil {
		return nil, 0, &ParseError{Source: source, Line: content.Line, Reason: err.Error()}
	}
	return obj, content.Line, nil
}
