package config

import (
	v1alpha1 "github.com/stellarcore/stellarcore-operator/api/v1alpha1"
)

// Resolve turns a partially specified database block into a DatabaseConfig.
//
// Each field takes the user value when set, otherwise its default. A missing
// block yields the defaults of all of its fields without inspecting deeper
// levels. The only failure is an s3 block without bucket or region.
// Resolve does not look at spec.Type; callers pick the manager first.
func Resolve(spec *v1alpha1.DatabaseSpec) (*DatabaseConfig, error) {
	if spec == nil {
		spec = &v1alpha1.DatabaseSpec{}
	}

	backup, err := resolveBackup(spec.Backup)
	if err != nil {
		return nil, err
	}

	return &DatabaseConfig{
		Instances: int32OrDefault(spec.Instances, DefaultInstances),
		Storage:   resolveStorage(spec.Storage),
		Backup:    backup,
		Pooler:    resolvePooler(spec.Pooler),
	}, nil
}

func resolveStorage(s *v1alpha1.StorageSpec) StorageConfig {
	if s == nil {
		return StorageConfig{Size: DefaultStorageSize}
	}
	cfg := StorageConfig{Size: stringOrDefault(s.Size, DefaultStorageSize)}
	if s.StorageClass != nil {
		sc := *s.StorageClass
		cfg.StorageClass = &sc
	}
	return cfg
}

func resolveBackup(b *v1alpha1.BackupSpec) (BackupConfig, error) {
	if b == nil {
		return BackupConfig{
			Enabled:         DefaultBackupEnabled,
			RetentionPolicy: DefaultRetentionPolicy,
			Schedule:        DefaultBackupSchedule,
		}, nil
	}

	cfg := BackupConfig{
		Enabled:         boolOrDefault(b.Enabled, DefaultBackupEnabled),
		RetentionPolicy: stringOrDefault(b.RetentionPolicy, DefaultRetentionPolicy),
		Schedule:        stringOrDefault(b.Schedule, DefaultBackupSchedule),
	}
	if b.S3 != nil {
		s3, err := resolveS3(b.S3)
		if err != nil {
			return BackupConfig{}, err
		}
		cfg.S3 = s3
	}
	return cfg, nil
}

func resolveS3(s *v1alpha1.S3Spec) (*S3Config, error) {
	if s.Bucket == "" {
		return nil, &ValidationError{Field: "s3.bucket", Reason: "bucket is required when s3 is configured"}
	}
	if s.Region == "" {
		return nil, &ValidationError{Field: "s3.region", Reason: "region is required when s3 is configured"}
	}

	secretName := DefaultS3SecretName
	if s.Credentials != nil {
		secretName = stringOrDefault(s.Credentials.SecretName, DefaultS3SecretName)
	}

	return &S3Config{
		Bucket:      s.Bucket,
		Region:      s.Region,
		EndpointURL: stringOrDefault(s.EndpointURL, DefaultS3EndpointURL),
		Credentials: S3CredentialsConfig{SecretName: secretName},
	}, nil
}

func resolvePooler(p *v1alpha1.PoolerSpec) PoolerConfig {
	if p == nil {
		return PoolerConfig{
			Enabled:       DefaultPoolerEnabled,
			Instances:     DefaultPoolerInstances,
			PoolMode:      DefaultPoolMode,
			MaxClientConn: DefaultMaxClientConn,
		}
	}
	return PoolerConfig{
		Enabled:       boolOrDefault(p.Enabled, DefaultPoolerEnabled),
		Instances:     int32OrDefault(p.Instances, DefaultPoolerInstances),
		PoolMode:      stringOrDefault(p.PoolMode, DefaultPoolMode),
		MaxClientConn: int32OrDefault(p.MaxClientConn, DefaultMaxClientConn),
	}
}

func stringOrDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func int32OrDefault(v *int32, def int32) int32 {
	if v == nil {
		return def
	}
	return *v
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
