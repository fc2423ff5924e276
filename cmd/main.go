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

package main

import (
	"crypto/tls"
	"flag"
	"os"
	"path/filepath"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that exec-entrypoint and run can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	cnpgv1 "github.com/cloudnative-pg/cloudnative-pg/api/v1"
	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/stellarcore/stellarcore-operator/api/v1alpha1"
	intController "github.com/stellarcore/stellarcore-operator/internal/controller"
	"github.com/stellarcore/stellarcore-operator/pkg/config"
	"github.com/stellarcore/stellarcore-operator/pkg/database/objectstore"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider"
	"github.com/stellarcore/stellarcore-operator/pkg/database/provider/cnpg"
	dbreconcile "github.com/stellarcore/stellarcore-operator/pkg/database/reconcile"
	"github.com/stellarcore/stellarcore-operator/pkg/discovery"
	"github.com/stellarcore/stellarcore-operator/pkg/logging"
	//+kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
	utilruntime.Must(cnpgv1.AddToScheme(scheme))
	//+kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var secureMetrics bool
	var enableLeaderElection bool
	var probeAddr string
	var logBackend string
	var logLevel string
	var logFormat string
	var envFile string
	var maxConcurrentReconciles int
	var verifyBackupTarget bool

	var leaseDuration time.Duration
	var renewDeadline time.Duration
	var leaseDurationSecond int
	var renewDeadlineSecond int

	var tlsOpts []func(*tls.Config)
	var metricsCertPath, metricsCertName, metricsCertKey string

	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	flag.StringVar(&logBackend, "log-backend", "zap", "logging backend ('zap' or 'slog')")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); LOG_LEVEL is used when empty")
	flag.StringVar(&logFormat, "log-format", "", "log format ('json' or 'text'); LOG_FORMAT is used when empty")
	flag.StringVar(&envFile, "env-file", "", "optional file of KEY=VALUE pairs loaded into the environment before startup")
	flag.IntVar(&maxConcurrentReconciles, "max-concurrent-reconciles", 1, "number of StellarCore objects reconciled in parallel")
	flag.BoolVar(&verifyBackupTarget, "verify-backup-target", false, "check that the S3 bucket of a backup target exists before configuring backups")
	flag.IntVar(&leaseDurationSecond, "lease-duration", leaseDurationSecond, "manager lease duration in seconds")
	flag.IntVar(&renewDeadlineSecond, "renew-duration", renewDeadlineSecond, "manager renew duration in seconds")
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to. "+
		"Use :8443 for HTTPS or :8080 for HTTP, or leave as 0 to disable the metrics service.")
	flag.BoolVar(&secureMetrics, "metrics-secure", false,
		"If set, the metrics endpoint is served securely via HTTPS. Use --metrics-secure=false to use HTTP instead.")
	flag.StringVar(&metricsCertPath, "metrics-cert-path", "", "The directory that contains the metrics server certificate.")
	flag.StringVar(&metricsCertName, "metrics-cert-name", "tls.crt", "The name of the metrics server certificate file.")
	flag.StringVar(&metricsCertKey, "metrics-cert-key", "tls.key", "The name of the metrics server key file.")

	opts := zap.Options{
		Development: true,
		TimeEncoder: zapcore.RFC3339NanoTimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	if err := config.LoadEnvFile(envFile); err != nil {
		// the logger is not configured yet
		ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
		setupLog.Error(err, "unable to load env file")
		os.Exit(1)
	}

	// Logging setup
	ctrl.SetLogger(newLogger(logBackend, logLevel, logFormat, &opts))

	metricsServerOptions := metricsserver.Options{
		BindAddress:   metricsAddr,
		SecureServing: secureMetrics,
		TLSOpts:       tlsOpts,
	}
	if secureMetrics {
		// FilterProvider is used to protect the metrics endpoint with authn/authz.
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	// see https://github.com/operator-framework/operator-sdk/issues/1813
	if leaseDurationSecond < 30 {
		leaseDuration = 30 * time.Second
	} else {
		leaseDuration = time.Duration(leaseDurationSecond) * time.Second
	}

	if renewDeadlineSecond < 20 {
		renewDeadline = 20 * time.Second
	} else {
		renewDeadline = time.Duration(renewDeadlineSecond) * time.Second
	}

	var metricsCertWatcher *certwatcher.CertWatcher
	if len(metricsCertPath) > 0 {
		setupLog.Info("Initializing metrics certificate watcher using provided certificates",
			"metrics-cert-path", metricsCertPath, "metrics-cert-name", metricsCertName, "metrics-cert-key", metricsCertKey)

		var err error
		metricsCertWatcher, err = certwatcher.New(
			filepath.Join(metricsCertPath, metricsCertName),
			filepath.Join(metricsCertPath, metricsCertKey),
		)
		if err != nil {
			setupLog.Error(err, "Failed to initialize metrics certificate watcher")
			os.Exit(1)
		}

		metricsServerOptions.TLSOpts = append(metricsServerOptions.TLSOpts, func(config *tls.Config) {
			config.GetCertificate = metricsCertWatcher.GetCertificate
		})
	}

	baseOptions := ctrl.Options{
		Metrics:                metricsServerOptions,
		Scheme:                 scheme,
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "5c1e7a2b.stellar.org",
		LeaseDuration:          &leaseDuration,
		RenewDeadline:          &renewDeadline,
	}

	// Apply namespace-specific configuration
	managerOptions := config.ManagerOptionsWithNamespaces(setupLog, baseOptions)

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), managerOptions)
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	registry := provider.NewRegistry()
	if verifyBackupTarget {
		cnpg.Register(registry, &objectstore.Verifier{})
	} else {
		cnpg.Register(registry, nil)
	}
	setupLog.Info("database managers registered", "types", registry.Types())

	watchClusters := discovery.APIAvailableForConfig(mgr.GetConfig(), cnpgv1.SchemeGroupVersion.WithKind("Cluster"))
	if !watchClusters {
		setupLog.Info("CloudNativePG Cluster API not served; cluster status changes will not trigger reconciles")
	}

	if err = (&intController.StellarCoreReconciler{
		Client: mgr.GetClient(),
		Scheme: mgr.GetScheme(),
		Engine: &dbreconcile.Engine{
			Client:   mgr.GetClient(),
			Managers: registry,
		},
		MaxConcurrentReconciles: maxConcurrentReconciles,
		WatchClusters:           watchClusters,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "StellarCore")
		os.Exit(1)
	}
	//+kubebuilder:scaffold:builder

	if metricsCertWatcher != nil {
		setupLog.Info("Adding metrics certificate watcher to manager")
		if err := mgr.Add(metricsCertWatcher); err != nil {
			setupLog.Error(err, "Unable to add metrics certificate watcher to manager")
			os.Exit(1)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

// newLogger builds the controller-runtime logger for the selected backend.
// The zap backend keeps the --zap-* flags; --log-level and --log-format
// override them when set.
func newLogger(backend, level, format string, opts *zap.Options) logr.Logger {
	if backend == "slog" {
		return logging.NewLogr(logging.LoadConfigWithFlags(level, format, nil))
	}

	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			opts.Level = lvl
		}
	}
	switch format {
	case logging.FormatJSON:
		opts.Development = false
	case logging.FormatText:
		opts.Development = true
	}
	return zap.New(zap.UseFlagOptions(opts))
}
