package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

const (
	LabelNamespace  = "namespace"
	LabelName       = "name"
	LabelKind       = "kind"
	LabelErrorType  = "error_type"
	LabelMethodName = "api"
	LabelModuleName = "module"
	LabelManager    = "manager"
	LabelResult     = "result"
)

var ReconcileCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stellarcore_operator_reconcile_total",
	Help: "The number of times reconciled by this controller",
}, []string{LabelNamespace, LabelName, LabelKind})

var ReconcileErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "stellarcore_operator_reconcile_error_total",
	Help: "The number of times the operator has failed to reconcile",
})

var ActionFailureCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stellarcore_operator_error_total",
	Help: "The number of times operator has entered an error state",
}, []string{LabelErrorType})

var ApiTotalTimeMetricEvents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "stellarcore_operator_module_duration_in_milliseconds",
	Help: "The time it takes to complete each call (in milliseconds)",
}, []string{LabelNamespace, LabelName, LabelKind, LabelModuleName, LabelMethodName})

var DatabaseManagerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "stellarcore_operator_database_manager_calls_total",
	Help: "The number of calls to a database manager, by result",
}, []string{LabelManager, LabelResult})

var UnsupportedDatabaseTypes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "stellarcore_operator_unsupported_database_type",
	Help: "Set to 1 while a StellarCore requests a database type no manager handles",
}, []string{LabelNamespace, LabelName})

func GetPrometheusLabels(request reconcile.Request, kind string) prometheus.Labels {
	return prometheus.Labels{
		LabelNamespace: request.Namespace,
		LabelName:      request.Name,
		LabelKind:      kind,
	}
}

// RecordDuration sets the duration gauge of one module/api pair since start
func RecordDuration(request reconcile.Request, kind, module, api string, start time.Time) {
	labels := GetPrometheusLabels(request, kind)
	labels[LabelModuleName] = module
	labels[LabelMethodName] = api
	ApiTotalTimeMetricEvents.With(labels).Set(float64(time.Since(start) / time.Millisecond))
}

// RecordManagerCall counts a database manager call; result is "success" or
// the error kind.
func RecordManagerCall(manager, result string) {
	DatabaseManagerCalls.With(prometheus.Labels{LabelManager: manager, LabelResult: result}).Inc()
}

// SetUnsupportedType flags or clears the unsupported type gauge of a StellarCore
func SetUnsupportedType(request reconcile.Request, unsupported bool) {
	labels := prometheus.Labels{LabelNamespace: request.Namespace, LabelName: request.Name}
	if unsupported {
		UnsupportedDatabaseTypes.With(labels).Set(1)
		return
	}
	UnsupportedDatabaseTypes.Delete(labels)
}

func init() {
	metrics.Registry.MustRegister(
		ReconcileCounters,
		ReconcileErrorCounter,
		ActionFailureCounters,
		ApiTotalTimeMetricEvents,
		DatabaseManagerCalls,
		UnsupportedDatabaseTypes,
	)
}
