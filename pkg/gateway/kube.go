package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/klog/v2/klogr"

	"github.com/namix-io/hierarchy-engine/pkg/diff"
	"github.com/namix-io/hierarchy-engine/pkg/render"
	"github.com/namix-io/hierarchy-engine/pkg/sync/common"
	synctasks "github.com/namix-io/hierarchy-engine/pkg/sync"
	"github.com/namix-io/hierarchy-engine/pkg/utils/kube"
)

const defaultFieldManager = "hierarchy-engine"

type KubeOption func(*KubeGateway)

func WithKubeLogr(log logr.Logger) KubeOption {
	return func(g *KubeGateway) {
		g.log = log
	}
}

func WithFieldManager(manager string) KubeOption {
	return func(g *KubeGateway) {
		g.fieldManager = manager
	}
}

// KubeGateway applies change sets through the dynamic client. Namespaced objects without namespace are created in
// the destination namespace.
type KubeGateway struct {
	client       dynamic.Interface
	mapper       meta.RESTMapper
	log          logr.Logger
	fieldManager string
}

func NewKubeGateway(client dynamic.Interface, mapper meta.RESTMapper, opts ...KubeOption) *KubeGateway {
	g := &KubeGateway{
		client:       client,
		mapper:       mapper,
		log:          klogr.New(),
		fieldManager: defaultFieldManager,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *KubeGateway) Apply(ctx context.Context, target *render.RenderedTarget, changes diff.ChangeSet) (AppliedRevision, error) {
	for _, task := range synctasks.Plan(changes) {
		if err := g.applyTask(ctx, target.Destination.Namespace, task); err != nil {
			g.log.Info("Apply task failed", "identity", target.Identity.String(), "task", task.String(), "error", err.Error())
			return AppliedRevision{}, g.classify(target.Identity, err)
		}
		g.log.V(1).Info("Applied task", "identity", target.Identity.String(), "task", task.String())
	}
	return AppliedRevision{Revision: target.Revision, AppliedAt: time.Now()}, nil
}

func (g *KubeGateway) applyTask(ctx context.Context, namespace string, task *synctasks.Task) error {
	gvk := task.Object.GroupVersionKind()
	ri, namespaced, err := g.resourceInterface(gvk.GroupKind(), gvk.Version, task.Object.GetNamespace(), namespace)
	if err != nil {
		return err
	}
	obj := task.Object.DeepCopy()
	if namespaced && obj.GetNamespace() == "" {
		obj.SetNamespace(namespace)
	}
	switch task.Type {
	case common.TaskTypeCreate:
		return g.create(ctx, ri, obj)
	case common.TaskTypeUpdate:
		_, err := ri.Patch(ctx, obj.GetName(), types.MergePatchType, task.Patch, metav1.PatchOptions{FieldManager: g.fieldManager})
		if apierrors.IsNotFound(err) {
			return g.create(ctx, ri, obj)
		}
		return err
	case common.TaskTypePrune:
		propagation := metav1.DeletePropagationBackground
		err := ri.Delete(ctx, obj.GetName(), metav1.DeleteOptions{PropagationPolicy: &propagation})
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown task type %s", task.Type)
}

// create creates the object or merges it into the existing one
func (g *KubeGateway) create(ctx context.Context, ri dynamic.ResourceInterface, obj *unstructured.Unstructured) error {
	_, err := ri.Create(ctx, obj, metav1.CreateOptions{FieldManager: g.fieldManager})
	if !apierrors.IsAlreadyExists(err) {
		return err
	}
	data, err := json.Marshal(obj.Object)
	if err != nil {
		return err
	}
	_, err = ri.Patch(ctx, obj.GetName(), types.MergePatchType, data, metav1.PatchOptions{FieldManager: g.fieldManager})
	return err
}

func (g *KubeGateway) resourceInterface(gk schema.GroupKind, version string, objNamespace string, defaultNamespace string) (dynamic.ResourceInterface, bool, error) {
	var versions []string
	if version != "" {
		versions = append(versions, version)
	}
	mapping, err := g.mapper.RESTMapping(gk, versions...)
	if err != nil {
		return nil, false, err
	}
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return g.client.Resource(mapping.Resource), false, nil
	}
	namespace := objNamespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	return g.client.Resource(mapping.Resource).Namespace(namespace), true, nil
}

func (g *KubeGateway) Observe(ctx context.Context, id render.Identity, keys []kube.ResourceKey) ([]*unstructured.Unstructured, error) {
	var res []*unstructured.Unstructured
	for _, key := range keys {
		ri, namespaced, err := g.resourceInterface(schema.GroupKind{Group: key.Group, Kind: key.Kind}, "", key.Namespace, id.Destination.Namespace)
		if err != nil {
			return nil, g.classify(id, err)
		}
		obj, err := ri.Get(ctx, key.Name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, g.classify(id, err)
		}
		if namespaced && key.Namespace == "" {
			obj.SetNamespace("")
		}
		res = append(res, obj)
	}
	return res, nil
}

// classify wraps err into ApplyError. Errors caused by the request itself are permanent.
func (g *KubeGateway) classify(id render.Identity, err error) *ApplyError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewTransientError(id, err)
	}
	switch {
	case meta.IsNoMatchError(err),
		apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err),
		apierrors.IsForbidden(err),
		apierrors.IsUnauthorized(err),
		apierrors.IsMethodNotSupported(err),
		apierrors.IsNotAcceptable(err),
		apierrors.IsUnsupportedMediaType(err),
		apierrors.IsRequestEntityTooLargeError(err):
		return NewPermanentError(id, err)
	}
	return NewTransientError(id, err)
}
