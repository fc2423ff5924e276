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
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
	"github.com/stellarcore/stellarcore-operator/internal/controller/testutils"
	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider/cnpg"
	dbreconcile "github.com/stellarcore/stellarcore-operator/pkg/database/reconcile"
)

// stubManager is a database manager that reports a fixed status
type stubManager struct {
	err    error
	status provider.Status
	calls  int
}

func (s *stubManager) Name() string { return "stub" }

func (s *stubManager) ReconcileDatabase(context.Context, string, string, *config.DatabaseConfig) error {
	s.calls++
	return s.err
}

func (s *stubManager) DatabaseStatus(context.Context, string, string) (provider.Status, error) {
	return s.status, nil
}

var _ = Describe("StellarCore Controller", func() {
	var (
		ctx context.Context
		ns  = "stellar"
		req = reconcile.Request{NamespacedName: types.NamespacedName{Name: "core", Namespace: ns}}
	)

	newReconciler := func(m provider.Manager, objs ...client.Object) (*StellarCoreReconciler, client.Client) {
		c := fake.NewClientBuilder().
			WithScheme(testScheme).
			WithObjects(objs...).
			WithStatusSubresource(&v1alpha1.StellarCore{}).
			Build()
		registry := provider.NewRegistry()
		if m != nil {
			registry.Register(v1alpha1.DatabaseTypeCloudNativePG, func(client.Client) provider.Manager { return m })
		}
		return &StellarCoreReconciler{
			Client: c,
			Scheme: testScheme,
			Engine: &dbreconcile.Engine{Client: c, Managers: registry},
		}, c
	}

	fetch := func(c client.Client) *v1alpha1.StellarCore {
		sc := &v1alpha1.StellarCore{}
		Expect(c.Get(ctx, req.NamespacedName, sc)).To(Succeed())
		return sc
	}

	BeforeEach(func() {
		ctx = context.TODO()
	})

	It("Reconcile ignores a StellarCore that does not exist", func() {
		m := &stubManager{}
		r, _ := newReconciler(m)
		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result).To(Equal(reconcile.Result{}))
		Expect(m.calls).To(Equal(0))
	})

	It("Reconcile requeues a paused StellarCore without a pass", func() {
		sc := testutils.NewStellarCore("core", ns, testutils.NewCloudNativePGDatabase())
		sc.Annotations = map[string]string{v1alpha1.StellarCorePausedAnnotation: ""}
		m := &stubManager{}
		r, _ := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))
		Expect(m.calls).To(Equal(0))
	})

	It("Reconcile marks a converged and healthy database Ready", func() {
		sc := testutils.NewStellarCore("core", ns, testutils.NewCloudNativePGDatabase())
		m := &stubManager{status: provider.Status{Phase: "Ready", ReadyInstances: 3}}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter.Seconds()).To(Equal(float64(300)))
		Expect(m.calls).To(Equal(1))

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseReady))
		Expect(got.Status.ObservedGeneration).To(Equal(got.Generation))
		Expect(got.Status.Database).To(Equal(&v1alpha1.DatabaseStatus{
			Type: v1alpha1.DatabaseTypeCloudNativePG, Phase: "Ready", ReadyInstances: 3,
		}))
		Expect(meta.IsStatusConditionTrue(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)).To(BeTrue())
		Expect(meta.IsStatusConditionTrue(got.Status.Conditions, v1alpha1.ConditionReady)).To(BeTrue())
	})

	It("Reconcile reports a provisioning database as Progressing", func() {
		sc := testutils.NewStellarCore("core", ns, testutils.NewCloudNativePGDatabase())
		m := &stubManager{status: provider.Status{Phase: "Provisioning", ReadyInstances: 1, Message: "Creating a new replica"}}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseProgressing))
		cond := meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Status).To(Equal(metav1.ConditionFalse))
		Expect(cond.Reason).To(Equal(ReasonDatabasePending))
		Expect(cond.Message).To(Equal("Creating a new replica"))
		Expect(meta.IsStatusConditionFalse(got.Status.Conditions, v1alpha1.ConditionReady)).To(BeTrue())
	})

	It("Reconcile skips an unsupported database type and reports it", func() {
		sc := testutils.NewStellarCore("core", ns, &v1alpha1.DatabaseSpec{Type: "mysql"})
		m := &stubManager{}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))
		Expect(m.calls).To(Equal(0))

		got := fetch(c)
		cond := meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Reason).To(Equal(ReasonUnsupportedType))
		Expect(cond.Message).To(ContainSubstring(`"mysql"`))
		Expect(cond.Message).To(ContainSubstring(v1alpha1.DatabaseTypeCloudNativePG))
		Expect(got.Status.Database).To(BeNil())
	})

	It("Reconcile reports an unsupported type when no managers are registered", func() {
		sc := testutils.NewStellarCore("core", ns, &v1alpha1.DatabaseSpec{Type: "mysql"})
		r, c := newReconciler(nil, sc)
		r.Engine.Managers = nil

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))

		got := fetch(c)
		cond := meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Reason).To(Equal(ReasonUnsupportedType))
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseProgressing))
	})

	It("Reconcile stops on an invalid database spec", func() {
		sc := testutils.NewStellarCore("core", ns, &v1alpha1.DatabaseSpec{
			Type:   v1alpha1.DatabaseTypeCloudNativePG,
			Backup: &v1alpha1.BackupSpec{S3: &v1alpha1.S3Spec{Region: "us-east-1"}},
		})
		m := &stubManager{}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, reconcile.TerminalError(nil))).To(BeTrue())
		Expect(config.IsValidationError(err)).To(BeTrue())
		Expect(result.RequeueAfter).To(BeZero())
		Expect(m.calls).To(Equal(0))

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseError))
		cond := meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Reason).To(Equal(ReasonInvalidSpec))
		Expect(cond.Message).To(ContainSubstring("s3.bucket"))
	})

	It("Reconcile returns the database manager error unchanged", func() {
		boom := errors.New("cnpg webhook unavailable")
		sc := testutils.NewStellarCore("core", ns, testutils.NewCloudNativePGDatabase())
		m := &stubManager{err: boom}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeIdenticalTo(boom))
		Expect(result.RequeueAfter).To(BeZero())

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseError))
		cond := meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionReady)
		Expect(cond).NotTo(BeNil())
		Expect(cond.Reason).To(Equal(ReasonReconcileFailed))
		Expect(cond.Message).To(Equal(boom.Error()))
	})

	It("Reconcile without a database block is Ready", func() {
		sc := testutils.NewStellarCore("core", ns, nil)
		m := &stubManager{}
		r, c := newReconciler(m, sc)

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))
		Expect(m.calls).To(Equal(0))

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseReady))
		Expect(meta.FindStatusCondition(got.Status.Conditions, v1alpha1.ConditionDatabaseReady)).To(BeNil())
	})

	It("Reconcile converges CloudNativePG objects through the registered manager", func() {
		sc := testutils.NewStellarCore("core", ns, &v1alpha1.DatabaseSpec{
			Type:      v1alpha1.DatabaseTypeCloudNativePG,
			Instances: ptr.To(int32(1)),
			Pooler:    &v1alpha1.PoolerSpec{Enabled: ptr.To(false)},
		})
		c := fake.NewClientBuilder().
			WithScheme(testScheme).
			WithObjects(sc).
			WithStatusSubresource(&v1alpha1.StellarCore{}).
			Build()
		registry := provider.NewRegistry()
		cnpg.Register(registry, nil)
		r := &StellarCoreReconciler{Client: c, Scheme: testScheme, Engine: &dbreconcile.Engine{Client: c, Managers: registry}}

		result, err := r.Reconcile(ctx, req)
		Expect(err).To(BeNil())
		Expect(result.RequeueAfter).To(Equal(dbreconcile.RequeueInterval))

		cluster := &unstructured.Unstructured{}
		cluster.SetAPIVersion("postgresql.cnpg.io/v1")
		cluster.SetKind("Cluster")
		Expect(c.Get(ctx, req.NamespacedName, cluster)).To(Succeed())
		instances, _, _ := unstructured.NestedInt64(cluster.Object, "spec", "instances")
		Expect(instances).To(Equal(int64(1)))
		Expect(cluster.GetLabels()).To(HaveKeyWithValue(v1alpha1.StellarCoreLabel, "core"))

		got := fetch(c)
		Expect(got.Status.Phase).To(Equal(v1alpha1.PhaseProgressing))
		Expect(got.Status.Database.Phase).To(Equal("Pending"))
	})

	It("clusterToStellarCore maps a labelled Cluster to its StellarCore", func() {
		cluster := &unstructured.Unstructured{}
		cluster.SetNamespace(ns)
		cluster.SetName("core")
		Expect(clusterToStellarCore(ctx, cluster)).To(BeEmpty())

		cluster.SetLabels(map[string]string{v1alpha1.StellarCoreLabel: "core"})
		Expect(clusterToStellarCore(ctx, cluster)).To(ConsistOf(req))
	})
})
