package objectstore

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type minioChecker struct {
	client *minio.Client
}

func newMinioChecker(ctx context.Context, t Target) (BucketChecker, error) {
	endpoint, secure, err := splitEndpoint(t.EndpointURL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(t.AccessKeyID, t.SecretAccessKey, ""),
		Secure: secure,
		Region: t.Region,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create minio client for %s", endpoint)
	}
	return &minioChecker{client: client}, nil
}

func (c *minioChecker) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return c.client.BucketExists(ctx, bucket)
}

// splitEndpoint strips the scheme from an endpoint URL, as minio expects a
// bare host[:port], and reports whether TLS is used.
func splitEndpoint(endpointURL string) (string, bool, error) {
	var host string
	var secure bool
	switch {
	case strings.HasPrefix(endpointURL, "https://"):
		host, secure = strings.TrimPrefix(endpointURL, "https://"), true
	case strings.HasPrefix(endpointURL, "http://"):
		host = strings.TrimPrefix(endpointURL, "http://")
	default:
		return "", false, errors.Errorf("unsupported endpoint %q: scheme must be http or https", endpointURL)
	}

	host = strings.TrimSuffix(host, "/")
	if host == "" || strings.Contains(host, "/") {
		return "", false, errors.Errorf("unsupported endpoint %q: expected scheme://host[:port]", endpointURL)
	}
	return host, secure, nil
}
