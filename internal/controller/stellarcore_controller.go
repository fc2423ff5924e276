/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	cnpgv1 "github.com/cloudnative-pg/cloudnative-pg/api/v1"
	"github.com/pkg/errors"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
	"github.com/stellarcore/stellarcore-operator/internal/controller/common"
	"github.com/stellarcore/stellarcore-operator/pkg/database/conditions"
	dbreconcile "github.com/stellarcore/stellarcore-operator/pkg/database/reconcile"
	"github.com/stellarcore/stellarcore-operator/pkg/metrics"
)

const stellarCoreKind = "StellarCore"

// Condition reasons
const (
	ReasonConverged        = "Converged"
	ReasonDatabaseReady    = "DatabaseReady"
	ReasonDatabasePending  = "DatabasePending"
	ReasonDatabaseFailed   = "DatabaseFailed"
	ReasonStatusUnknown    = "StatusUnavailable"
	ReasonUnsupportedType  = "UnsupportedType"
	ReasonInvalidSpec      = "InvalidSpec"
	ReasonInvalidObject    = "InvalidObject"
	ReasonReconcileFailed  = "ReconcileFailed"
	ReasonDatabaseNotReady = "DatabaseNotReady"
	ReasonReady            = "Ready"
)

// StellarCoreReconciler reconciles a StellarCore object
type StellarCoreReconciler struct {
	client.Client
	Scheme *runtime.Scheme
	Engine *dbreconcile.Engine

	// MaxConcurrentReconciles defaults to 1
	MaxConcurrentReconciles int

	// WatchClusters enables the CNPG Cluster watch. Leave false when the
	// CNPG CRDs are not installed or the manager fails to start.
	WatchClusters bool
}

// +kubebuilder:rbac:groups=stellar.org,resources=stellarcores,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=stellar.org,resources=stellarcores/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=postgresql.cnpg.io,resources=clusters;scheduledbackups;poolers,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch

// Reconcile runs one convergence pass for a StellarCore and records the
// outcome on its status. The returned result is the decision of the engine:
// a converged object is checked again after dbreconcile.RequeueInterval.
func (r *StellarCoreReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	metrics.ReconcileCounters.With(metrics.GetPrometheusLabels(req, stellarCoreKind)).Inc()
	defer metrics.RecordDuration(req, stellarCoreKind, "controller", "Reconcile", time.Now())

	reqLogger := log.FromContext(ctx)
	reqLogger = reqLogger.WithValues("stellarcore", req.NamespacedName)

	// Fetch the StellarCore
	instance := &v1alpha1.StellarCore{}
	err := r.Get(ctx, req.NamespacedName, instance)
	if err != nil {
		if k8serrors.IsNotFound(err) {
			metrics.SetUnsupportedType(req, false)
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, errors.Wrap(err, "could not load stellarcore data")
	}

	// If the reconciliation is paused, requeue
	if _, ok := instance.GetAnnotations()[v1alpha1.StellarCorePausedAnnotation]; ok {
		reqLogger.Info("reconciliation paused", "annotation", v1alpha1.StellarCorePausedAnnotation)
		return ctrl.Result{RequeueAfter: dbreconcile.RequeueInterval}, nil
	}

	reqLogger.Info("start", "CR version", instance.GetResourceVersion())

	out, err := r.Engine.Run(ctx, instance)
	kind := dbreconcile.Classify(err)
	r.recordOutcome(req, out, kind)

	if kind == dbreconcile.ErrorKindCanceled {
		return out.Result, err
	}

	statusErr := r.updateStatus(ctx, instance, out, err)
	if statusErr != nil {
		reqLogger.Error(statusErr, "failed to update status")
	}

	if err != nil {
		reqLogger.Error(err, "reconcile pass failed", "errorKind", kind)
		return out.Result, err
	}
	if statusErr != nil {
		return ctrl.Result{}, statusErr
	}

	reqLogger.Info("Requeued", "period(seconds)", int(out.Result.RequeueAfter/time.Second))
	return out.Result, nil
}

func (r *StellarCoreReconciler) recordOutcome(req ctrl.Request, out dbreconcile.Outcome, kind dbreconcile.ErrorKind) {
	if kind != dbreconcile.ErrorKindNone {
		metrics.ReconcileErrorCounter.Inc()
		metrics.ActionFailureCounters.WithLabelValues(string(kind)).Inc()
	}
	if out.Manager != nil {
		result := "success"
		if kind != dbreconcile.ErrorKindNone {
			result = string(kind)
		}
		metrics.RecordManagerCall(out.Manager.Name(), result)
	}
	metrics.SetUnsupportedType(req, out.Unsupported)
}

// updateStatus writes the conditions, phase and database status of instance
// for a pass that ended with passErr.
func (r *StellarCoreReconciler) updateStatus(ctx context.Context, instance *v1alpha1.StellarCore, out dbreconcile.Outcome, passErr error) error {
	gen := instance.GetGeneration()
	status := &instance.Status
	status.ObservedGeneration = gen

	switch kind := dbreconcile.Classify(passErr); {
	case kind == dbreconcile.ErrorKindValidation:
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonInvalidSpec, passErr.Error(), gen)
	case kind == dbreconcile.ErrorKindIdentity:
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonInvalidObject, passErr.Error(), gen)
	case passErr != nil:
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonReconcileFailed, passErr.Error(), gen)
	case instance.Spec.Database == nil:
		conditions.Remove(&status.Conditions, v1alpha1.ConditionDatabaseReady)
		status.Database = nil
	case out.Unsupported:
		msg := fmt.Sprintf("no database manager for type %q (supported: %s)",
			out.DatabaseType, strings.Join(r.Engine.Managers.Types(), ", "))
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonUnsupportedType, msg, gen)
		status.Database = nil
	default:
		r.setDatabaseStatus(ctx, instance, out)
	}

	switch {
	case passErr != nil:
		status.Phase = v1alpha1.PhaseError
		conditions.Set(&status.Conditions, v1alpha1.ConditionReady, metav1.ConditionFalse, ReasonReconcileFailed, passErr.Error(), gen)
	case instance.Spec.Database != nil && !conditions.IsTrue(status.Conditions, v1alpha1.ConditionDatabaseReady):
		status.Phase = v1alpha1.PhaseProgressing
		conditions.Set(&status.Conditions, v1alpha1.ConditionReady, metav1.ConditionFalse, ReasonDatabaseNotReady, "database is not ready", gen)
	default:
		status.Phase = v1alpha1.PhaseReady
		conditions.Set(&status.Conditions, v1alpha1.ConditionReady, metav1.ConditionTrue, ReasonReady, "", gen)
	}

	if err := r.Status().Update(ctx, instance); err != nil {
		return errors.Wrapf(err, "failed to update status of stellarcore %s/%s", instance.Namespace, instance.Name)
	}
	return nil
}

func (r *StellarCoreReconciler) setDatabaseStatus(ctx context.Context, instance *v1alpha1.StellarCore, out dbreconcile.Outcome) {
	gen := instance.GetGeneration()
	status := &instance.Status

	st, ok, err := r.Engine.DatabaseStatus(ctx, instance)
	switch {
	case err != nil:
		log.FromContext(ctx).Error(err, "failed to read database status")
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionUnknown, ReasonStatusUnknown, err.Error(), gen)
		return
	case !ok:
		// manager cannot report health, a successful call is all we know
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionTrue, ReasonConverged, "", gen)
		status.Database = &v1alpha1.DatabaseStatus{Type: out.DatabaseType}
		return
	}

	status.Database = &v1alpha1.DatabaseStatus{
		Type:           out.DatabaseType,
		Phase:          st.Phase,
		ReadyInstances: st.ReadyInstances,
	}
	switch st.Phase {
	case "Ready":
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionTrue, ReasonDatabaseReady, st.Message, gen)
	case "Failed":
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonDatabaseFailed, st.Message, gen)
	default:
		conditions.Set(&status.Conditions, v1alpha1.ConditionDatabaseReady, metav1.ConditionFalse, ReasonDatabasePending, st.Message, gen)
	}
}

// clusterToStellarCore maps a CloudNativePG Cluster to the StellarCore named
// by its stellar.org/stellarcore label.
func clusterToStellarCore(_ context.Context, obj client.Object) []reconcile.Request {
	name, ok := obj.GetLabels()[v1alpha1.StellarCoreLabel]
	if !ok || name == "" {
		return nil
	}
	return []reconcile.Request{{
		NamespacedName: types.NamespacedName{Name: name, Namespace: obj.GetNamespace()},
	}}
}

// SetupWithManager sets up the controller with the Manager.
func (r *StellarCoreReconciler) SetupWithManager(mgr ctrl.Manager) error {
	workers := r.MaxConcurrentReconciles
	if workers < 1 {
		workers = 1
	}
	b := ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.StellarCore{}).
		WithEventFilter(predicate.Or(
			common.GenerationChangedPredicate(),
			common.AnnotationChangedPredicate(),
			common.LabelChangedPredicate(),
			common.ClusterStatusChangedPredicate(),
		)).
		WithOptions(controller.Options{
			MaxConcurrentReconciles: workers,
		})
	if r.WatchClusters {
		b = b.Watches(&cnpgv1.Cluster{},
			handler.EnqueueRequestsFromMapFunc(clusterToStellarCore),
		)
	}
	return b.Complete(r)
}
