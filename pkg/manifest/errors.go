package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError is returned when manifest text is malformed or fails validation.
// It is never retried without a source change.
type ParseError struct {
	// Source identifies the manifest, usually ManifestSource.String()
	Source string
	// Line is the 1-based line of the fault, 0 if unknown
	Line int
	// Reason is the parser or validation message without location prefix
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s: line %d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Source, e.Reason)
}

var (
	yamlLineRe     = regexp.MustCompile(`^yaml: (?:line (\d+): )?(.*)$`)
	yamlTypeLineRe = regexp.MustCompile(`^line (\d+): (.*)$`)
)

// newYAMLParseError converts yaml.v3 error messages like "yaml: line 4: did not find expected key"
func newYAMLParseError(source string, err error) *ParseError {
	msg := err.Error()
	// type errors are multi line: "yaml: unmarshal errors:\n  line 3: ..."
	if lines := strings.Split(msg, "\n"); len(lines) > 1 {
		msg = strings.TrimSpace(lines[1])
		if m := yamlTypeLineRe.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return &ParseError{Source: source, Line: line, Reason: m[2]}
		}
		return &ParseError{Source: source, Reason: msg}
	}
	if m := yamlLineRe.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return &ParseError{Source: source, Line: line, Reason: m[2]}
	}
	return &ParseError{Source: source, Reason: msg}
}
