// Package objectstore checks that the off-cluster backup target of a
// database is reachable before backups are scheduled against it.
package objectstore

import (
	"context"

	"github.com/pkg/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	ProviderAWS   = "aws"
	ProviderMinio = "minio"
)

// ErrBucketNotFound is returned by Verify when the bucket does not exist
// or is not visible with the given credentials.
var ErrBucketNotFound = errors.New("backup bucket not found")

// Target describes an S3 bucket and the credentials used to reach it
type Target struct {
	Bucket          string
	Region          string
	EndpointURL     string // empty means the AWS endpoint of Region
	AccessKeyID     string
	SecretAccessKey string
}

// BucketChecker reports whether a bucket exists
type BucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// NewCheckerFunc builds a BucketChecker for a Target
type NewCheckerFunc func(ctx context.Context, t Target) (BucketChecker, error)

// checkerFactories maps a provider name to the function creating its checker
var checkerFactories = map[string]NewCheckerFunc{
	ProviderAWS:   newAWSChecker,
	ProviderMinio: newMinioChecker,
}

// ProviderFor picks the client used for t: AWS for the default endpoint,
// MinIO for any S3 compatible endpoint.
func ProviderFor(t Target) string {
	if t.EndpointURL == "" {
		return ProviderAWS
	}
	return ProviderMinio
}

// NewBucketChecker returns the BucketChecker matching the provider of t
func NewBucketChecker(ctx context.Context, t Target) (BucketChecker, error) {
	provider := ProviderFor(t)
	fn, ok := checkerFactories[provider]
	if !ok {
		return nil, errors.Errorf("no bucket checker for provider %q", provider)
	}
	return fn(ctx, t)
}

// Verifier checks backup targets
type Verifier struct {
	// NewChecker defaults to NewBucketChecker
	NewChecker NewCheckerFunc
}

// Verify returns nil when the bucket of t exists, ErrBucketNotFound when it
// does not and the client error otherwise.
func (v *Verifier) Verify(ctx context.Context, t Target) error {
	scopedLog := log.FromContext(ctx).WithName("objectstore.Verify")

	newChecker := v.NewChecker
	if newChecker == nil {
		newChecker = NewBucketChecker
	}
	checker, err := newChecker(ctx, t)
	if err != nil {
		return errors.Wrap(err, "could not create bucket client")
	}

	exists, err := checker.BucketExists(ctx, t.Bucket)
	if err != nil {
		return errors.Wrapf(err, "could not check bucket %s", t.Bucket)
	}
	if !exists {
		return errors.Wrapf(ErrBucketNotFound, "bucket %s", t.Bucket)
	}

	scopedLog.V(1).Info("backup bucket reachable", "bucket", t.Bucket, "provider", ProviderFor(t))
	return nil
}
