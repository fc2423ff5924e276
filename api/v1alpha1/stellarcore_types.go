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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

const (
	// StellarCorePausedAnnotation is the annotation that pauses the reconciliation (triggers
	// a requeue without running a pass)
	StellarCorePausedAnnotation = "stellar.org/paused"

	// StellarCoreLabel is set on every object the operator creates on behalf
	// of a StellarCore and holds the StellarCore name.
	StellarCoreLabel = "stellar.org/stellarcore"
)

// Condition types
const (
	ConditionReady         = "Ready"
	ConditionDatabaseReady = "DatabaseReady"
)

// Phase of a StellarCore
type Phase string

const (
	PhasePending     Phase = "Pending"
	PhaseReady       Phase = "Ready"
	PhaseProgressing Phase = "Progressing"
	PhaseError       Phase = "Error"
)

// StellarCoreSpec defines the desired state of StellarCore
type StellarCoreSpec struct {
	// +optional
	// Managed database backing this StellarCore. When omitted no database
	// is managed by the operator.
	Database *DatabaseSpec `json:"database,omitempty"`
}

// DatabaseStatus is the last observed state of the managed database
type DatabaseStatus struct {
	// Database manager type that handled the last pass
	Type string `json:"type,omitempty"`

	// Phase reported by the database manager
	Phase string `json:"phase,omitempty"`

	// Number of database instances reported ready
	ReadyInstances int32 `json:"readyInstances,omitempty"`
}

// StellarCoreStatus defines the observed state of StellarCore
type StellarCoreStatus struct {
	// Phase of the StellarCore
	Phase Phase `json:"phase,omitempty"`

	// Generation observed by the last completed reconcile pass
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// +optional
	Database *DatabaseStatus `json:"database,omitempty"`

	// +listType=map
	// +listMapKey=type
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=stellarcores,scope=Namespaced,shortName=stc
// +kubebuilder:printcolumn:name="Database",type="string",JSONPath=".spec.database.type"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase",description="Status of the StellarCore"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// StellarCore is the Schema for the stellarcores API
type StellarCore struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   StellarCoreSpec   `json:"spec,omitempty"`
	Status StellarCoreStatus `json:"status,omitempty"`
}

// DeepCopyObject implements runtime.Object
func (in *StellarCore) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// +kubebuilder:object:root=true

// StellarCoreList contains a list of StellarCore
type StellarCoreList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []StellarCore `json:"items"`
}

// DeepCopyObject implements runtime.Object
func (in *StellarCoreList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func init() {
	SchemeBuilder.Register(&StellarCore{}, &StellarCoreList{})
}
