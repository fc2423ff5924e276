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

// DatabaseTypeCloudNativePG selects the CloudNativePG database manager.
const DatabaseTypeCloudNativePG = "cloudnativepg"

// +kubebuilder:validation:Optional

// DatabaseSpec is the user-authored database block of a StellarCore.
// Every field except Type may be omitted; the operator fills in defaults.
type DatabaseSpec struct {
	// +kubebuilder:validation:Required
	// Database manager handling this block, e.g. cloudnativepg
	Type string `json:"type"`

	// +kubebuilder:validation:Minimum=1
	// Number of database instances
	Instances *int32 `json:"instances,omitempty"`

	Storage *StorageSpec `json:"storage,omitempty"`
	Backup  *BackupSpec  `json:"backup,omitempty"`
	Pooler  *PoolerSpec  `json:"pooler,omitempty"`
}

type StorageSpec struct {
	// Volume size in Kubernetes quantity syntax, e.g. 10Gi
	Size *string `json:"size,omitempty"`

	// Storage class for the data volumes; platform default when omitted
	StorageClass *string `json:"storageClass,omitempty"`
}

type BackupSpec struct {
	Enabled *bool `json:"enabled,omitempty"`

	// +kubebuilder:validation:Pattern=`^[1-9][0-9]*[dwm]$`
	RetentionPolicy *string `json:"retentionPolicy,omitempty"`

	// Cron expression for scheduled backups
	Schedule *string `json:"schedule,omitempty"`

	// Off-cluster backup target
	S3 *S3Spec `json:"s3,omitempty"`
}

type S3Spec struct {
	Bucket string `json:"bucket"`
	Region string `json:"region"`

	// +kubebuilder:validation:Pattern=`^https?://[^\s/$.?#].[^\s]*$`
	// S3 compatible endpoint; provider default when omitted
	EndpointURL *string `json:"endpointURL,omitempty"`

	Credentials *S3CredentialsSpec `json:"credentials,omitempty"`
}

type S3CredentialsSpec struct {
	// Secret holding ACCESS_KEY_ID and ACCESS_SECRET_KEY
	SecretName *string `json:"secretName,omitempty"`
}

type PoolerSpec struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	Instances *int32 `json:"instances,omitempty"`

	// +kubebuilder:validation:Enum=session;transaction
	PoolMode      *string `json:"poolMode,omitempty"`
	MaxClientConn *int32  `json:"maxClientConn,omitempty"`
}
