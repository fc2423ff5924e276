package discovery

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/rest"
)

// APIAvailable reports whether the server serves gvk. Any discovery error,
// including the group version not being registered, reads as absent.
func APIAvailable(disc discovery.DiscoveryInterface, gvk schema.GroupVersionKind) bool {
	if disc == nil {
		return false
	}
	list, err := disc.ServerResourcesForGroupVersion(gvk.GroupVersion().String())
	if err != nil || list == nil {
		return false
	}
	for _, r := range list.APIResources {
		if r.Kind == gvk.Kind {
			return true
		}
	}
	return false
}

// APIAvailableForConfig builds a discovery client from cfg and calls APIAvailable.
func APIAvailableForConfig(cfg *rest.Config, gvk schema.GroupVersionKind) bool {
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return false
	}
	return APIAvailable(disc, gvk)
}
