package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/gateway.go -package mocks . Gateway,Observer

// AppliedRevision describes a successful apply
type AppliedRevision struct {
	Revision  string
	AppliedAt time.Time
}

// Gateway applies change sets to the cluster. Apply is idempotent for the same target and changes.
type Gateway interface {
	Apply(ctx context.Context, target *render.RenderedTarget, changes diff.ChangeSet) (AppliedRevision, error)
}

// Observer exposes the live objects of a target. Objects that do not exist are omitted; returned objects carry the
// namespace of the requested key.
type Observer interface {
	Observe(ctx context.Context, id render.Identity, keys []kube.ResourceKey) ([]*unstructured.Unstructured, error)
}

// ApplyError is returned by gateways when a change set could not be applied
type ApplyError struct {
	Identity render.Identity
	// Permanent errors are not retried
	Permanent bool
	Err       error
}

func (e *ApplyError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("failed to apply %s (%s): %v", e.Identity, kind, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsPermanent returns true if err must not be retried
func IsPermanent(err error) bool {
	var applyErr *ApplyError
	return errors.As(err, &applyErr) && applyErr.Permanent
}

func NewTransientError(id render.Identity, err error) *ApplyError {
	return &ApplyError{Identity: id, Err: err}
}

func NewPermanentError(id render.Identity, err error) *ApplyError {
	return &ApplyError{Identity: id, Permanent: true, Err: err}
}
