// Package cnpg converges StellarCore databases onto CloudNativePG.
//
// The manager writes postgresql.cnpg.io objects as unstructured content so
// that only the fields it owns are compared and updated; everything else,
// including the fields defaulted by the CloudNativePG webhooks, is left
// untouched.
package cnpg

import (
	"context"

	cnpgv1 "github.com/cloudnative-pg/cloudnative-pg/api/v1"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
	"github.com/stellarcore/stellarcore-operator/pkg/database/objectstore"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider"
)

var (
	gvkCluster     = cnpgv1.SchemeGroupVersion.WithKind("Cluster")
	gvkSchedBackup = cnpgv1.SchemeGroupVersion.WithKind("ScheduledBackup")
	gvkPooler      = cnpgv1.SchemeGroupVersion.WithKind("Pooler")
)

const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "stellarcore-operator"

	// keys expected in the S3 credentials secret
	AccessKeyIDKey     = "ACCESS_KEY_ID"
	SecretAccessKeyKey = "ACCESS_SECRET_KEY"
)

// BackupVerifier probes an S3 backup target
type BackupVerifier interface {
	Verify(ctx context.Context, t objectstore.Target) error
}

// Manager implements provider.Manager and provider.StatusReader for
// CloudNativePG.
type Manager struct {
	Client client.Client

	// Verifier, when set, checks that the S3 bucket of the backup target
	// exists before the Cluster is written.
	Verifier BackupVerifier
}

var (
	_ provider.Manager      = &Manager{}
	_ provider.StatusReader = &Manager{}
)

// Register binds the cloudnativepg database type to this manager.
// verifier may be nil.
func Register(r *provider.Registry, verifier BackupVerifier) {
	r.Register(v1alpha1.DatabaseTypeCloudNativePG, func(c client.Client) provider.Manager {
		return &Manager{Client: c, Verifier: verifier}
	})
}

func (m *Manager) Name() string { return "CNPG" }

// ReconcileDatabase converges the Cluster, ScheduledBackup and Pooler of the
// database name in namespace towards cfg.
func (m *Manager) ReconcileDatabase(ctx context.Context, name, namespace string, cfg *config.DatabaseConfig) error {
	reqLogger := log.FromContext(ctx)
	scopedLog := reqLogger.WithName("cnpg.ReconcileDatabase").WithValues("name", name, "namespace", namespace)

	if cfg == nil {
		return errors.New("database config is nil")
	}

	if m.Verifier != nil && cfg.Backup.Enabled && cfg.Backup.S3 != nil {
		if err := m.verifyBackupTarget(ctx, namespace, cfg.Backup.S3); err != nil {
			return err
		}
	}

	labels := managedLabels(name)

	// 1) Cluster
	cluster := newObject(gvkCluster, clusterName(name), namespace)
	if err := upsert(ctx, m.Client, cluster, clusterSpec(cfg), labels, clusterOptionalPaths); err != nil {
		return err
	}

	// 2) ScheduledBackup
	sb := newObject(gvkSchedBackup, scheduledBackupName(name), namespace)
	if cfg.Backup.Enabled {
		if err := upsert(ctx, m.Client, sb, scheduledBackupSpec(name, cfg.Backup), labels, nil); err != nil {
			return err
		}
	} else if err := deleteIfManaged(ctx, m.Client, sb); err != nil {
		return err
	}

	// 3) Pooler
	pl := newObject(gvkPooler, poolerName(name), namespace)
	if cfg.Pooler.Enabled {
		if err := upsert(ctx, m.Client, pl, poolerSpec(name, cfg.Pooler), labels, nil); err != nil {
			return err
		}
	} else if err := deleteIfManaged(ctx, m.Client, pl); err != nil {
		return err
	}

	scopedLog.V(1).Info("database converged", "instances", cfg.Instances, "backup", cfg.Backup.Enabled, "pooler", cfg.Pooler.Enabled)
	return nil
}

// DatabaseStatus reads the phase of the CloudNativePG Cluster
func (m *Manager) DatabaseStatus(ctx context.Context, name, namespace string) (provider.Status, error) {
	u := newObject(gvkCluster, clusterName(name), namespace)
	if err := m.Client.Get(ctx, client.ObjectKeyFromObject(u), u); err != nil {
		if apierrors.IsNotFound(err) {
			return provider.Status{Phase: "Pending", Message: "waiting for CNPG cluster to be created"}, nil
		}
		return provider.Status{}, errors.Wrapf(err, "failed to get Cluster %s/%s", namespace, name)
	}

	phase, _, _ := unstructured.NestedString(u.Object, "status", "phase")
	ready, _, _ := unstructured.NestedInt64(u.Object, "status", "readyInstances")
	reason, _, _ := unstructured.NestedString(u.Object, "status", "phaseReason")

	st := provider.Status{ReadyInstances: int32(ready), Message: phase}
	switch phase {
	case cnpgv1.PhaseHealthy:
		st.Phase = "Ready"
	case cnpgv1.PhaseUnrecoverable:
		st.Phase = "Failed"
	case "":
		st.Phase = "Pending"
		st.Message = "waiting for CNPG cluster to start"
	default:
		st.Phase = "Provisioning"
	}
	if reason != "" {
		st.Message += ": " + reason
	}
	return st, nil
}

func (m *Manager) verifyBackupTarget(ctx context.Context, namespace string, s3 *config.S3Config) error {
	secret := &corev1.Secret{}
	key := client.ObjectKey{Namespace: namespace, Name: s3.Credentials.SecretName}
	if err := m.Client.Get(ctx, key, secret); err != nil {
		return errors.Wrapf(err, "failed to read S3 credentials secret %s/%s", namespace, s3.Credentials.SecretName)
	}

	target := objectstore.Target{
		Bucket:          s3.Bucket,
		Region:          s3.Region,
		EndpointURL:     s3.EndpointURL,
		AccessKeyID:     string(secret.Data[AccessKeyIDKey]),
		SecretAccessKey: string(secret.Data[SecretAccessKeyKey]),
	}
	return m.Verifier.Verify(ctx, target)
}

func newObject(gvk schema.GroupVersionKind, name, namespace string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(gvk)
	u.SetName(name)
	u.SetNamespace(namespace)
	return u
}

func managedLabels(name string) map[string]string {
	return map[string]string{
		ManagedByLabel:            ManagedByValue,
		v1alpha1.StellarCoreLabel: name,
	}
}

func clusterName(name string) string         { return name }
func scheduledBackupName(name string) string { return name + "-scheduled" }
func poolerName(name string) string          { return name + "-pooler-rw" }
