package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	v1alpha1 "github.com/stellarcore/stellarcore-operator/api/v1alpha1"
)

func defaultConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Instances: 3,
		Storage:   StorageConfig{Size: "10Gi"},
		Backup: BackupConfig{
			Enabled:         true,
			RetentionPolicy: "30d",
			Schedule:        "0 0 * * *",
		},
		Pooler: PoolerConfig{
			Enabled:       true,
			Instances:     2,
			PoolMode:      "transaction",
			MaxClientConn: 1000,
		},
	}
}

func TestResolve_EmptySpec(t *testing.T) {
	cfg, err := Resolve(&v1alpha1.DatabaseSpec{Type: v1alpha1.DatabaseTypeCloudNativePG})
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
	assert.Nil(t, cfg.Storage.StorageClass)
	assert.Nil(t, cfg.Backup.S3)
}

func TestResolve_NilSpec(t *testing.T) {
	cfg, err := Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestResolve_PresentBlocksWithoutFields(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type:    v1alpha1.DatabaseTypeCloudNativePG,
		Storage: &v1alpha1.StorageSpec{},
		Backup:  &v1alpha1.BackupSpec{},
		Pooler:  &v1alpha1.PoolerSpec{},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestResolve_ExplicitValues(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type:      v1alpha1.DatabaseTypeCloudNativePG,
		Instances: ptr.To[int32](5),
		Storage: &v1alpha1.StorageSpec{
			Size:         ptr.To("50Gi"),
			StorageClass: ptr.To("gp3"),
		},
		Backup: &v1alpha1.BackupSpec{
			Enabled:         ptr.To(false),
			RetentionPolicy: ptr.To("7d"),
			Schedule:        ptr.To("30 2 * * 0"),
		},
		Pooler: &v1alpha1.PoolerSpec{
			Enabled:       ptr.To(false),
			Instances:     ptr.To[int32](4),
			PoolMode:      ptr.To("session"),
			MaxClientConn: ptr.To[int32](250),
		},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)

	assert.Equal(t, int32(5), cfg.Instances)
	assert.Equal(t, "50Gi", cfg.Storage.Size)
	require.NotNil(t, cfg.Storage.StorageClass)
	assert.Equal(t, "gp3", *cfg.Storage.StorageClass)
	assert.Equal(t, BackupConfig{Enabled: false, RetentionPolicy: "7d", Schedule: "30 2 * * 0"}, cfg.Backup)
	assert.Equal(t, PoolerConfig{Enabled: false, Instances: 4, PoolMode: "session", MaxClientConn: 250}, cfg.Pooler)
}

func TestResolve_PartialBlocks(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type:    v1alpha1.DatabaseTypeCloudNativePG,
		Storage: &v1alpha1.StorageSpec{StorageClass: ptr.To("standard")},
		Backup:  &v1alpha1.BackupSpec{Schedule: ptr.To("0 3 * * *")},
		Pooler:  &v1alpha1.PoolerSpec{PoolMode: ptr.To("session")},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)

	assert.Equal(t, "10Gi", cfg.Storage.Size)
	assert.Equal(t, "standard", *cfg.Storage.StorageClass)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, "30d", cfg.Backup.RetentionPolicy)
	assert.Equal(t, "0 3 * * *", cfg.Backup.Schedule)
	assert.True(t, cfg.Pooler.Enabled)
	assert.Equal(t, int32(2), cfg.Pooler.Instances)
	assert.Equal(t, "session", cfg.Pooler.PoolMode)
	assert.Equal(t, int32(1000), cfg.Pooler.MaxClientConn)
}

func TestResolve_S3Defaults(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type: v1alpha1.DatabaseTypeCloudNativePG,
		Backup: &v1alpha1.BackupSpec{
			S3: &v1alpha1.S3Spec{Bucket: "b", Region: "us-east-1"},
		},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)
	require.NotNil(t, cfg.Backup.S3)
	assert.Equal(t, &S3Config{
		Bucket:      "b",
		Region:      "us-east-1",
		EndpointURL: "",
		Credentials: S3CredentialsConfig{SecretName: "s3-credentials"},
	}, cfg.Backup.S3)
}

func TestResolve_S3CredentialsBlockWithoutSecretName(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type: v1alpha1.DatabaseTypeCloudNativePG,
		Backup: &v1alpha1.BackupSpec{
			S3: &v1alpha1.S3Spec{
				Bucket:      "b",
				Region:      "eu-west-1",
				EndpointURL: ptr.To("https://minio.example.com"),
				Credentials: &v1alpha1.S3CredentialsSpec{},
			},
		},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)
	assert.Equal(t, "https://minio.example.com", cfg.Backup.S3.EndpointURL)
	assert.Equal(t, "s3-credentials", cfg.Backup.S3.Credentials.SecretName)
}

func TestResolve_S3ExplicitSecret(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type: v1alpha1.DatabaseTypeCloudNativePG,
		Backup: &v1alpha1.BackupSpec{
			S3: &v1alpha1.S3Spec{
				Bucket:      "b",
				Region:      "eu-west-1",
				Credentials: &v1alpha1.S3CredentialsSpec{SecretName: ptr.To("backup-creds")},
			},
		},
	}

	cfg, err := Resolve(spec)
	require.NoError(t, err)
	assert.Equal(t, "backup-creds", cfg.Backup.S3.Credentials.SecretName)
}

func TestResolve_S3RequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		s3    *v1alpha1.S3Spec
		field string
	}{
		{name: "empty bucket", s3: &v1alpha1.S3Spec{Bucket: "", Region: "us-east-1"}, field: "s3.bucket"},
		{name: "empty region", s3: &v1alpha1.S3Spec{Bucket: "b", Region: ""}, field: "s3.region"},
		{name: "both empty reports bucket", s3: &v1alpha1.S3Spec{}, field: "s3.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &v1alpha1.DatabaseSpec{
				Type:   v1alpha1.DatabaseTypeCloudNativePG,
				Backup: &v1alpha1.BackupSpec{S3: tt.s3},
			}

			cfg, err := Resolve(spec)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, IsValidationError(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	spec := &v1alpha1.DatabaseSpec{
		Type:      v1alpha1.DatabaseTypeCloudNativePG,
		Instances: ptr.To[int32](1),
		Storage:   &v1alpha1.StorageSpec{StorageClass: ptr.To("fast")},
		Backup: &v1alpha1.BackupSpec{
			S3: &v1alpha1.S3Spec{Bucket: "b", Region: "us-east-1"},
		},
	}

	first, err := Resolve(spec)
	require.NoError(t, err)
	second, err := Resolve(spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// the resolved config must not alias the input
	*second.Storage.StorageClass = "slow"
	assert.Equal(t, "fast", *spec.Storage.StorageClass)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "s3.bucket", Reason: "bucket is required when s3 is configured"}
	assert.Equal(t, "invalid database spec: s3.bucket: bucket is required when s3 is configured", err.Error())
	assert.False(t, IsValidationError(nil))
}
