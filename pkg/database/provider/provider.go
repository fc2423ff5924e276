package provider

import (
	"context"
	"sort"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
)

// Manager converges the actual database cluster of a StellarCore towards a
// resolved configuration.
//
// ReconcileDatabase must be idempotent: calling it again with the same
// config does not duplicate resources, and calling it with a changed config
// converges to the new shape without an explicit teardown of the old one.
type Manager interface {
	// Name returns the manager name (e.g., "CNPG")
	Name() string

	// ReconcileDatabase creates or updates the database cluster named name in namespace
	ReconcileDatabase(ctx context.Context, name, namespace string, cfg *config.DatabaseConfig) error
}

// Status contains high-level status information of a managed database
type Status struct {
	Phase          string // "Pending" | "Provisioning" | "Ready" | "Failed"
	ReadyInstances int32
	Message        string
}

// StatusReader is implemented by managers that can report the observed
// state of the database they converge.
type StatusReader interface {
	DatabaseStatus(ctx context.Context, name, namespace string) (Status, error)
}

// Factory builds a Manager bound to a Kubernetes client
type Factory func(c client.Client) Manager

// Registry maps a database type discriminator to the Factory of its Manager.
// It is populated at startup and only read afterwards.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty Registry
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds dbType to f, replacing any previous binding
func (r *Registry) Register(dbType string, f Factory) {
	r.factories[dbType] = f
}

// ManagerFor returns the Manager for dbType, or false when no manager handles it.
func (r *Registry) ManagerFor(c client.Client, dbType string) (Manager, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.factories[dbType]
	if !ok {
		return nil, false
	}
	return f(c), true
}

// Types returns the registered type discriminators in sorted order
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
