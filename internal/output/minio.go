package output

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStore uploads result archives to an S3-compatible bucket. It is
// optional: a nil store is a no-op and local files remain authoritative.
type ArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewArtifactStore connects to the object store and ensures the bucket
// exists. An empty endpoint returns a nil store.
func NewArtifactStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*ArtifactStore, error) {
	if endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object store: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &ArtifactStore{client: client, bucket: bucket}, nil
}

// Upload pushes a result file under the job's prefix. Upload failures are
// logged, not fatal: the local file is still served.
func (s *ArtifactStore) Upload(ctx context.Context, jobID, path string) {
	if s == nil {
		return
	}
	object := jobID + "/" + filepath.Base(path)
	_, err := s.client.FPutObject(ctx, s.bucket, object, path, minio.PutObjectOptions{})
	if err != nil {
		log.Printf("[Output] artifact upload failed for %s: %v", object, err)
		return
	}
	log.Printf("[Output] uploaded artifact %s", object)
}
