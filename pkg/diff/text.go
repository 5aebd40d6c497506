package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

// TextDiff renders the changes of the result as YAML with +/- prefixed lines
func TextDiff(res *Result) (string, error) {
	if res == nil || res.Kind != Changed {
		return "", nil
	}
	var buff bytes.Buffer
	for _, obj := range res.Changes.Additions {
		if err := writeObjectDiff(&buff, "added", nil, obj); err != nil {
			return "", err
		}
	}
	for _, m := range res.Changes.Modifications {
		if err := writeObjectDiff(&buff, "modified", m.Observed, m.Desired); err != nil {
			return "", err
		}
	}
	for _, obj := range res.Changes.Removals {
		if err := writeObjectDiff(&buff, "removed", obj, nil); err != nil {
			return "", err
		}
	}
	return buff.String(), nil
}

func writeObjectDiff(buff *bytes.Buffer, action string, observed, desired *unstructured.Unstructured) error {
	ref := desired
	if ref == nil {
		ref = observed
	}
	current, err := toYAML(observed)
	if err != nil {
		return err
	}
	target, err := toYAML(desired)
	if err != nil {
		return err
	}
	fmt.Fprintf(buff, "===== %s %s/%s %s\n", action, ref.GroupVersionKind().GroupKind(), ref.GetName(), ref.GetNamespace())
	buff.WriteString(lineDiff(current, target))
	return nil
}

func toYAML(obj *unstructured.Unstructured) (string, error) {
	if obj == nil {
		return "", nil
	}
	data, err := yaml.Marshal(obj.Object)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lineDiff(current, desired string) string {
	dmp := diffmatchpatch.New()
	a, b, c := dmp.DiffLinesToChars(current, desired)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), c)

	var buff bytes.Buffer
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(d.Text, "\n") {
			if line == "" {
				continue
			}
			buff.WriteString(prefix + line + "\n")
		}
	}
	return buff.String()
}
