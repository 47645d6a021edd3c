//go:build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/dittodocs/pkg/transport"
	transporttesting "github.com/marmos91/dittodocs/pkg/transport/testing"
	"github.com/stretchr/testify/require"
)

// TestS3Transport_Integration runs the complete Transport test suite
// against a real S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/transport/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Transport_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // Required for Localstack
	})

	bucketName := "dittodocs-test-bucket"
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		tr, err := New(ctx, S3TransportConfig{Client: client, Bucket: bucketName})
		if err == nil {
			_ = tr.RemoveAll(ctx, "")
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	})

	suite := &transporttesting.TransportTestSuite{
		NewTransport: func(t *testing.T) transport.Transport {
			// Every test gets its own key space inside the shared bucket.
			tr, err := New(ctx, S3TransportConfig{
				Client:    client,
				Bucket:    bucketName,
				KeyPrefix: "test-" + uuid.NewString(),
			})
			require.NoError(t, err)
			return tr
		},
	}

	suite.Run(t)
}
