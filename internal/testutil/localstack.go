// Package testutil provides LocalStack integration test utilities.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

// LocalStack credentials accepted by any LocalStack container.
const (
	LocalStackAccessKey = "test"
	LocalStackSecretKey = "test"
	LocalStackRegion    = "us-east-1"
)

// LocalStackContainer wraps a LocalStack container for testing.
type LocalStackContainer struct {
	container *localstack.LocalStackContainer
	endpoint  string
}

// NewLocalStackContainer creates and starts a new LocalStack container with S3 enabled.
func NewLocalStackContainer(ctx context.Context, t *testing.T) (*LocalStackContainer, error) {
	t.Helper()

	container, err := localstack.Run(ctx,
		"localstack/localstack:latest",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start LocalStack container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, nat.Port("4566/tcp"))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &LocalStackContainer{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}

// S3Client returns an S3 client configured to use LocalStack.
func (c *LocalStackContainer) S3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(LocalStackRegion),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     LocalStackAccessKey,
					SecretAccessKey: LocalStackSecretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(c.endpoint)
	}), nil
}

// Endpoint returns the LocalStack endpoint URL.
func (c *LocalStackContainer) Endpoint() string {
	return c.endpoint
}

// Terminate stops and removes the LocalStack container.
func (c *LocalStackContainer) Terminate(ctx context.Context) error {
	if c.container != nil {
		if err := c.container.Terminate(ctx); err != nil {
			return fmt.Errorf("failed to terminate container: %w", err)
		}
	}
	return nil
}

// SetupLocalStackBucket starts LocalStack, creates bucket and registers cleanup.
// The test is skipped in short mode.
func SetupLocalStackBucket(t *testing.T, bucket string) (*LocalStackContainer, *s3.Client) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := NewLocalStackContainer(ctx, t)
	if err != nil {
		t.Fatalf("Failed to create LocalStack container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate LocalStack container: %v", err)
		}
	})

	client, err := container.S3Client(ctx)
	if err != nil {
		t.Fatalf("Failed to create S3 client: %v", err)
	}

	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("Failed to create bucket: %v", err)
	}

	return container, client
}
