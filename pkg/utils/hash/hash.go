package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/davecgh/go-spew/spew"
)

// DeepHashObject writes specified object to hash using the spew library
// which follows pointers and prints actual values of the nested objects
// ensuring the hash does not change when a pointer changes.
func DeepHashObject(hasher hash.Hash, objectToWrite any) {
	hasher.Reset()
	printer := spew.ConfigState{
		Indent:         " ",
		SortKeys:       true,
		DisableMethods: true,
		SpewKeys:       true,
	}
	printer.Fprintf(hasher, "%#v", objectToWrite)
}

// Digest returns the hex encoded sha256 deep hash of the given object
func Digest(obj any) string {
	hasher := sha256.New()
	DeepHashObject(hasher, obj)
	return hex.EncodeToString(hasher.Sum(nil))
}
