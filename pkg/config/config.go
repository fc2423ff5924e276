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

package config

import (
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
)

const (
	// WatchNamespaceEnvVar is the constant for env variable WATCH_NAMESPACE
	// which specifies the Namespace to watch.
	// An empty value means the operator is running with cluster scope.
	WatchNamespaceEnvVar = "WATCH_NAMESPACE"
)

// GetWatchNamespaces returns the Namespaces the operator should be watching for changes.
// Entries of a comma separated list are trimmed and empty entries dropped.
func GetWatchNamespaces() []string {
	ns, found := os.LookupEnv(WatchNamespaceEnvVar)
	if !found {
		return nil
	}

	var namespaces []string
	for _, n := range strings.Split(ns, ",") {
		if n = strings.TrimSpace(n); n != "" {
			namespaces = append(namespaces, n)
		}
	}
	return namespaces
}

// ManagerOptionsWithNamespaces returns an updated Options with namespaces information.
func ManagerOptionsWithNamespaces(logger logr.Logger, opt ctrl.Options) ctrl.Options {
	namespaces := GetWatchNamespaces()
	nsMap := map[string]cache.Config{}
	switch {
	case len(namespaces) == 0:
		logger.Info("Manager will watch and manage resources in all namespaces")
		nsMap[cache.AllNamespaces] = cache.Config{}
	case len(namespaces) == 1:
		logger.Info("Manager will be watching namespace", "namespace", namespaces[0])
		nsMap[namespaces[0]] = cache.Config{}
	default:
		for _, ns := range namespaces {
			nsMap[ns] = cache.Config{}
		}
		logger.Info("Manager will be watching multiple namespaces", "namespaces", namespaces)
	}

	opt.Cache = cache.Options{DefaultNamespaces: nsMap}
	return opt
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overridden. An empty path is a no-op.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}
