package cnpg

import (
	"context"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// upsert creates obj with spec and labels, or updates the existing object
// when one of the owned fields drifted. Paths listed in optional are
// removed from the existing spec when spec does not set them.
func upsert(ctx context.Context, c client.Client, obj *unstructured.Unstructured, spec map[string]interface{}, labels map[string]string, optional [][]string) error {
	kind := obj.GetKind()
	key := client.ObjectKeyFromObject(obj)

	existing := &unstructured.Unstructured{}
	existing.SetGroupVersionKind(obj.GroupVersionKind())
	if err := c.Get(ctx, key, existing); err != nil {
		if !apierrors.IsNotFound(err) {
			return errors.Wrapf(err, "failed to get %s %s", kind, key)
		}
		u := obj.DeepCopy()
		u.SetLabels(labels)
		if err := unstructured.SetNestedField(u.Object, spec, "spec"); err != nil {
			return errors.Wrapf(err, "failed to set spec of %s %s", kind, key)
		}
		if err := c.Create(ctx, u); err != nil {
			return errors.Wrapf(err, "failed to create %s %s", kind, key)
		}
		return nil
	}

	changed := mergeLabels(existing, labels)

	current, _, err := unstructured.NestedMap(existing.Object, "spec")
	if err != nil {
		return errors.Wrapf(err, "failed to read spec of %s %s", kind, key)
	}
	if current == nil {
		current = map[string]interface{}{}
	}
	if mergeInto(current, spec) {
		changed = true
	}
	for _, path := range optional {
		if removeUnset(current, spec, path) {
			changed = true
		}
	}

	if !changed {
		return nil
	}
	if err := unstructured.SetNestedField(existing.Object, current, "spec"); err != nil {
		return errors.Wrapf(err, "failed to set spec of %s %s", kind, key)
	}
	if err := c.Update(ctx, existing); err != nil {
		return errors.Wrapf(err, "failed to update %s %s", kind, key)
	}
	return nil
}

// deleteIfManaged removes obj when it exists and carries our managed-by
// label. Objects created by someone else are left alone.
func deleteIfManaged(ctx context.Context, c client.Client, obj *unstructured.Unstructured) error {
	kind := obj.GetKind()
	key := client.ObjectKeyFromObject(obj)

	existing := &unstructured.Unstructured{}
	existing.SetGroupVersionKind(obj.GroupVersionKind())
	if err := c.Get(ctx, key, existing); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to get %s %s", kind, key)
	}
	if existing.GetLabels()[ManagedByLabel] != ManagedByValue {
		return nil
	}
	if err := c.Delete(ctx, existing); err != nil && !apierrors.IsNotFound(err) {
		return errors.Wrapf(err, "failed to delete %s %s", kind, key)
	}
	return nil
}

func mergeLabels(u *unstructured.Unstructured, labels map[string]string) bool {
	current := u.GetLabels()
	if current == nil {
		current = map[string]string{}
	}
	changed := false
	for k, v := range labels {
		if current[k] != v {
			current[k] = v
			changed = true
		}
	}
	if changed {
		u.SetLabels(current)
	}
	return changed
}

// mergeInto writes every leaf of desired into current and reports whether
// anything changed. Maps are merged recursively so fields not in desired
// survive.
func mergeInto(current, desired map[string]interface{}) bool {
	changed := false
	for k, want := range desired {
		wantMap, wantIsMap := want.(map[string]interface{})
		haveMap, haveIsMap := current[k].(map[string]interface{})
		if wantIsMap && haveIsMap {
			if mergeInto(haveMap, wantMap) {
				changed = true
			}
			continue
		}
		if have, ok := current[k]; ok && cmp.Equal(have, want) {
			continue
		}
		current[k] = runtime.DeepCopyJSONValue(want)
		changed = true
	}
	return changed
}

// removeUnset deletes path from current when desired does not set it.
func removeUnset(current, desired map[string]interface{}, path []string) bool {
	if _, found, _ := unstructured.NestedFieldNoCopy(desired, path...); found {
		return false
	}
	if _, found, _ := unstructured.NestedFieldNoCopy(current, path...); !found {
		return false
	}
	unstructured.RemoveNestedField(current, path...)
	return true
}
