package testutils

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
)

// NewStellarCore returns a StellarCore with the given database block
func NewStellarCore(name, ns string, db *v1alpha1.DatabaseSpec) *v1alpha1.StellarCore {
	return &v1alpha1.StellarCore{
		TypeMeta: metav1.TypeMeta{
			APIVersion: v1alpha1.GroupVersion.String(),
			Kind:       "StellarCore",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:       name,
			Namespace:  ns,
			Generation: 1,
		},
		Spec: v1alpha1.StellarCoreSpec{Database: db},
	}
}

// NewCloudNativePGDatabase returns a database block of type cloudnativepg
// with every optional field left for the resolver to default.
func NewCloudNativePGDatabase() *v1alpha1.DatabaseSpec {
	return &v1alpha1.DatabaseSpec{Type: v1alpha1.DatabaseTypeCloudNativePG}
}
