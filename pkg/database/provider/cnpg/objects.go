package cnpg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stellarcore/stellarcore-operator/pkg/database/config"
)

const (
	methodBarmanObjectStore = "barmanObjectStore"
	methodVolumeSnapshot    = "volumeSnapshot"
)

// clusterOptionalPaths are owned Cluster spec paths removed from the live
// object when the desired spec no longer sets them.
var clusterOptionalPaths = [][]string{
	{"storage", "storageClass"},
	{"backup"},
	{"backup", "barmanObjectStore"},
	{"backup", "volumeSnapshot"},
}

// unstructured JSON only supports float64/int64, not int32

func clusterSpec(cfg *config.DatabaseConfig) map[string]interface{} {
	storage := map[string]interface{}{"size": cfg.Storage.Size}
	if sc := cfg.Storage.StorageClass; sc != nil && *sc != "" {
		storage["storageClass"] = *sc
	}

	spec := map[string]interface{}{
		"instances": int64(cfg.Instances),
		"storage":   storage,
	}

	if cfg.Backup.Enabled {
		backup := map[string]interface{}{
			"retentionPolicy": cfg.Backup.RetentionPolicy,
		}
		if s3 := cfg.Backup.S3; s3 != nil {
			secret := s3.Credentials.SecretName
			backup["barmanObjectStore"] = map[string]interface{}{
				"destinationPath": fmt.Sprintf("s3://%s/", s3.Bucket),
				"endpointURL":     s3EndpointURL(s3),
				"s3Credentials": map[string]interface{}{
					"accessKeyId":     map[string]interface{}{"name": secret, "key": AccessKeyIDKey},
					"secretAccessKey": map[string]interface{}{"name": secret, "key": SecretAccessKeyKey},
				},
			}
		} else {
			backup["volumeSnapshot"] = map[string]interface{}{}
		}
		spec["backup"] = backup
	}
	return spec
}

func scheduledBackupSpec(name string, backup config.BackupConfig) map[string]interface{} {
	method := methodVolumeSnapshot
	if backup.S3 != nil {
		method = methodBarmanObjectStore
	}
	return map[string]interface{}{
		"schedule":             cnpgSchedule(backup.Schedule),
		"backupOwnerReference": "cluster",
		"cluster":              map[string]interface{}{"name": clusterName(name)},
		"method":               method,
	}
}

func poolerSpec(name string, pooler config.PoolerConfig) map[string]interface{} {
	return map[string]interface{}{
		"cluster":   map[string]interface{}{"name": clusterName(name)},
		"type":      "rw",
		"instances": int64(pooler.Instances),
		"pgbouncer": map[string]interface{}{
			"poolMode": pooler.PoolMode,
			"parameters": map[string]interface{}{
				// pgbouncer parameters are strings
				"max_client_conn": strconv.Itoa(int(pooler.MaxClientConn)),
			},
		},
	}
}

// s3EndpointURL returns the configured endpoint, or the regional AWS
// endpoint when none is set.
func s3EndpointURL(s3 *config.S3Config) string {
	if s3.EndpointURL != "" {
		return s3.EndpointURL
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com", s3.Region)
}

// cnpgSchedule converts a standard five field cron expression into the six
// field format used by ScheduledBackup, which starts with seconds.
func cnpgSchedule(schedule string) string {
	fields := strings.Fields(schedule)
	if len(fields) == 5 {
		return "0 " + strings.Join(fields, " ")
	}
	return schedule
}
