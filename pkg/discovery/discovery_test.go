package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	fakediscovery "k8s.io/client-go/discovery/fake"
	clienttesting "k8s.io/client-go/testing"
)

func TestAPIAvailable(t *testing.T) {
	disc := &fakediscovery.FakeDiscovery{Fake: &clienttesting.Fake{}}
	disc.Resources = []*metav1.APIResourceList{
		{
			GroupVersion: "postgresql.cnpg.io/v1",
			APIResources: []metav1.APIResource{
				{Name: "clusters", Kind: "Cluster"},
				{Name: "poolers", Kind: "Pooler"},
			},
		},
	}

	cluster := schema.GroupVersionKind{Group: "postgresql.cnpg.io", Version: "v1", Kind: "Cluster"}
	assert.True(t, APIAvailable(disc, cluster))

	backup := cluster
	backup.Kind = "ScheduledBackup"
	assert.False(t, APIAvailable(disc, backup))

	other := schema.GroupVersionKind{Group: "example.com", Version: "v1", Kind: "Cluster"}
	assert.False(t, APIAvailable(disc, other))

	assert.False(t, APIAvailable(nil, cluster))
}
