// Package config holds the fully resolved database configuration handed to
// database managers, and the resolver that builds it from a StellarCore spec.
package config

// Defaults applied by Resolve.
const (
	DefaultInstances       int32 = 3
	DefaultStorageSize           = "10Gi"
	DefaultBackupEnabled         = true
	DefaultRetentionPolicy       = "30d"
	DefaultBackupSchedule        = "0 0 * * *"
	DefaultS3EndpointURL         = ""
	DefaultS3SecretName          = "s3-credentials"
	DefaultPoolerEnabled         = true
	DefaultPoolerInstances int32 = 2
	DefaultPoolMode              = "transaction"
	DefaultMaxClientConn   int32 = 1000
)

// DatabaseConfig is the resolved configuration of a managed database.
// It only lives for the duration of one reconcile pass.
type DatabaseConfig struct {
	Instances int32
	Storage   StorageConfig
	Backup    BackupConfig
	Pooler    PoolerConfig
}

type StorageConfig struct {
	Size string
	// StorageClass is nil when the platform default class should be used.
	StorageClass *string
}

type BackupConfig struct {
	Enabled         bool
	RetentionPolicy string
	Schedule        string
	// S3 is nil when backups are not replicated off-cluster.
	S3 *S3Config
}

type S3Config struct {
	Bucket      string
	Region      string
	EndpointURL string
	Credentials S3CredentialsConfig
}

type S3CredentialsConfig struct {
	SecretName string
}

type PoolerConfig struct {
	Enabled       bool
	Instances     int32
	PoolMode      string
	MaxClientConn int32
}
