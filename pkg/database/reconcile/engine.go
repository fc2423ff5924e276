// Package reconcile runs one convergence pass of a StellarCore: it resolves
// the database spec and hands the result to the database manager
// registered for its type.
package reconcile

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider"
)

// RequeueInterval is the delay after which a converged StellarCore is checked
// again. Database health is not watched, so it has to be polled.
const RequeueInterval = 300 * time.Second

// Engine performs reconcile passes. It keeps no state between passes and is
// safe for concurrent use on different objects.
type Engine struct {
	Client   client.Client
	Managers *provider.Registry
}

// Outcome describes what a pass did with the database of a StellarCore
type Outcome struct {
	Result reconcile.Result

	// DatabaseType is the type discriminator of spec.database, empty when
	// the object has no database block.
	DatabaseType string

	// Unsupported is set when no manager handles DatabaseType
	Unsupported bool

	// Manager is the manager that was called, nil when none was
	Manager provider.Manager
}

// Reconcile performs one pass and returns the scheduling decision.
func (e *Engine) Reconcile(ctx context.Context, sc *v1alpha1.StellarCore) (reconcile.Result, error) {
	out, err := e.Run(ctx, sc)
	return out.Result, err
}

// Run performs one pass for sc.
//
// Errors returned by the database manager are passed through unchanged.
// Identity and validation errors are terminal: the runtime does not requeue
// them and only a change of the object triggers a new pass.
func (e *Engine) Run(ctx context.Context, sc *v1alpha1.StellarCore) (Outcome, error) {
	var out Outcome

	if sc == nil {
		return out, reconcile.TerminalError(&IdentityError{Reason: "object is nil"})
	}
	if sc.GetNamespace() == "" {
		return out, reconcile.TerminalError(&IdentityError{Reason: "namespace is required"})
	}
	if sc.GetName() == "" {
		return out, reconcile.TerminalError(&IdentityError{Reason: "name is required"})
	}

	name, namespace := sc.GetName(), sc.GetNamespace()
	reqLogger := log.FromContext(ctx)
	scopedLog := reqLogger.WithName("Engine.Run").WithValues("stellarcore", name, "namespace", namespace)

	if err := e.reconcileDatabase(ctx, name, namespace, sc.Spec.Database, &out); err != nil {
		return out, err
	}

	// Further StellarCore resources reconcile after the database step. A
	// database error returns above and is retried by the workqueue.

	scopedLog.V(1).Info("reconcile pass complete", "requeueAfter", RequeueInterval)
	out.Result = reconcile.Result{RequeueAfter: RequeueInterval}
	return out, nil
}

func (e *Engine) reconcileDatabase(ctx context.Context, name, namespace string, spec *v1alpha1.DatabaseSpec, out *Outcome) error {
	scopedLog := log.FromContext(ctx).WithName("Engine.reconcileDatabase").WithValues("stellarcore", name, "namespace", namespace)

	if spec == nil {
		scopedLog.V(1).Info("no database block, skipping")
		return nil
	}
	out.DatabaseType = spec.Type

	mgr, ok := e.Managers.ManagerFor(e.Client, spec.Type)
	if !ok {
		out.Unsupported = true
		scopedLog.Info("unsupported database type, skipping", "type", spec.Type, "supported", e.Managers.Types())
		return nil
	}

	cfg, err := config.Resolve(spec)
	if err != nil {
		scopedLog.Error(err, "invalid database spec", "type", spec.Type)
		return reconcile.TerminalError(err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	out.Manager = mgr
	return mgr.ReconcileDatabase(ctx, name, namespace, cfg)
}

// DatabaseStatus returns the observed database status of sc when its manager
// can report one. ok is false otherwise.
func (e *Engine) DatabaseStatus(ctx context.Context, sc *v1alpha1.StellarCore) (st provider.Status, ok bool, err error) {
	if sc == nil || sc.Spec.Database == nil {
		return st, false, nil
	}
	mgr, found := e.Managers.ManagerFor(e.Client, sc.Spec.Database.Type)
	if !found {
		return st, false, nil
	}
	reader, isReader := mgr.(provider.StatusReader)
	if !isReader {
		return st, false, nil
	}
	st, err = reader.DatabaseStatus(ctx, sc.GetName(), sc.GetNamespace())
	if err != nil {
		return st, false, err
	}
	return st, true, nil
}
