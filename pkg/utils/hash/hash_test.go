package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": []string{"x"}}
	b := map[string]interface{}{"a": []string{"x"}, "b": 1}
	assert.Equal(t, Digest(a), Digest(b))
	assert.Len(t, Digest(a), 64)

	b["b"] = 2
	assert.NotEqual(t, Digest(a), Digest(b))
}

func TestDigest_FollowsPointers(t *testing.T) {
	type obj struct{ Name *string }
	n1, n2 := "guestbook", "guestbook"
	assert.Equal(t, Digest(obj{&n1}), Digest(obj{&n2}))
}
