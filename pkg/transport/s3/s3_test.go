package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS3Transport_Keys(t *testing.T) {
	s := &S3Transport{keyPrefix: "docs/"}

	assert.Equal(t, "docs/doc/a.json", s.objectKey("/doc/a.json"))
	assert.Equal(t, "docs/doc/sub.meta", s.objectKey("doc/sub.meta"))
	assert.Equal(t, "docs/doc/sub/", s.dirPrefix("doc/sub/"))
	assert.Equal(t, "docs/", s.dirPrefix(""))

	s = &S3Transport{}
	assert.Equal(t, "doc/a.json", s.objectKey("doc/a.json"))
	assert.Equal(t, "", s.dirPrefix("/"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), S3TransportConfig{Bucket: "b"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(ctx, S3TransportConfig{Bucket: "b"})
	assert.ErrorIs(t, err, context.Canceled)
}
