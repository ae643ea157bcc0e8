package main

import (
	"context"
	"fmt"
	"path"

	"dagger/lettarag/internal/dagger"
)

// bucket holds the credentials of an S3-compatible artifact bucket.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyID     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// publish syncs artifacts into the bucket under prefix.
func (l *Lettarag) publish(ctx context.Context, b bucket, artifacts *dagger.Directory, prefix string) error {
	name, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bucket name: %w", err)
	}
	endpoint, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get endpoint: %w", err)
	}

	_, err = dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyID).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{
			"aws", "s3", "sync", ".",
			"s3://" + path.Join(name, prefix),
			"--endpoint-url", endpoint,
		}).
		Sync(ctx)
	if err != nil {
		return fmt.Errorf("failed to upload artifacts to %s: %w", prefix, err)
	}
	return nil
}

// Release builds versioned binaries and uploads them under both the version
// and "latest" prefixes.
func (l *Lettarag) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyID *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	b := bucket{endpoint, bucketName, accessKeyID, secretAccessKey}
	artifacts := l.BuildRelease(ctx, version, commit)

	for _, prefix := range []string{version, "latest"} {
		if err := l.publish(ctx, b, artifacts, prefix); err != nil {
			return artifacts, err
		}
	}
	return artifacts, nil
}

// Nightly builds and uploads binaries under the "nightly" prefix.
func (l *Lettarag) Nightly(
	ctx context.Context,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyID *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts := l.BuildRelease(ctx, "nightly", commit)
	err := l.publish(ctx, bucket{endpoint, bucketName, accessKeyID, secretAccessKey}, artifacts, "nightly")
	return artifacts, err
}
