package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_removeFields(t *testing.T) {
	tests := []struct {
		name   string
		config any
		live   any
		want   any
	}{
		{
			name: "map",
			config: map[string]any{
				"foo": "bar",
			},
			live: map[string]any{
				"foo": "baz",
				"bar": "baz",
			},
			want: map[string]any{
				"foo": "baz",
			},
		},
		{
			name: "nested map",
			config: map[string]any{
				"foo": map[string]any{
					"bar": "baz",
				},
				"bar": "baz",
			},
			live: map[string]any{
				"foo": map[string]any{
					"bar": "qux",
					"baz": "qux",
				},
				"bar": "baz",
			},
			want: map[string]any{
				"foo": map[string]any{
					"bar": "qux",
				},
				"bar": "baz",
			},
		},
		{
			name: "list",
			config: []any{
				map[string]any{
					"foo": "bar",
				},
			},
			live: []any{
				map[string]any{
					"foo": "baz",
					"bar": "baz",
				},
			},
			want: []any{
				map[string]any{
					"foo": "baz",
				},
			},
		},
		{
			name: "longer live list",
			config: []any{
				map[string]any{
					"foo": "bar",
				},
			},
			live: []any{
				map[string]any{
					"foo": "bar",
				},
				"extra",
			},
			want: []any{
				map[string]any{
					"foo": "bar",
				},
				"extra",
			},
		},
		{
			name:   "type mismatch",
			config: map[string]any{"foo": "bar"},
			live:   "scalar",
			want:   "scalar",
		},
		{
			name: "nested list",
			config: []any{
				map[string]any{
					"foo": map[string]any{
						"bar": "baz",
					},
					"bar": "baz",
				},
			},
			live: []any{
				map[string]any{
					"foo": map[string]any{
						"bar": "qux",
						"baz": "qux",
					},
					"bar": "baz",
				},
			},
			want: []any{
				map[string]any{
					"foo": map[string]any{
						"bar": "qux",
					},
					"bar": "baz",
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeFields(tt.config, tt.live))
		})
	}
}

func TestRemoveFields(t *testing.T) {
	config := map[string]any{"metadata": map[string]any{"name": "a"}, "data": map[string]any{"k": "v"}}
	live := map[string]any{
		"metadata": map[string]any{"name": "a", "uid": "123"},
		"data":     map[string]any{"k": "changed"},
		"status":   map[string]any{},
	}
	assert.Equal(t, map[string]any{
		"metadata": map[string]any{"name": "a"},
		"data":     map[string]any{"k": "changed"},
	}, RemoveFields(config, live))
}
