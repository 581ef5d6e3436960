package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"
)

/*
Storage provider for S3-compatible object storage. We use the minio client
library.

PutIfAbsent is implemented with a stat-then-put sequence. On stores with
conditional write support (MinIO, GCS interop, recent S3) this should be
replaced with an If-None-Match put once the client library exposes it; until
then the race window between stat and put means log correctness on S3 depends
on writers not colliding within it. The directory store has no such caveat.
*/

////////////////////////////////////////////////////////////////////////////////

const minioErrNoSuchKey = "NoSuchKey"

type s3store struct {
	mc     *minio.Client
	bucket string
}

// NewS3Store returns a storage provider backed by an S3 bucket.
func NewS3Store(mc *minio.Client, bucket string) *s3store {
	return &s3store{
		mc:     mc,
		bucket: bucket,
	}
}

// Put stores the data in the object store.
func (s *s3store) Put(ctx context.Context, id string, data []byte) error {
	_, err := s.mc.PutObject(
		ctx,
		s.bucket,
		id,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// PutIfAbsent stores the data only if the object does not already exist.
func (s *s3store) PutIfAbsent(ctx context.Context, id string, data []byte) error {
	_, err := s.mc.StatObject(ctx, s.bucket, id, minio.StatObjectOptions{})
	if err == nil {
		return ErrObjectExists
	}
	if minio.ToErrorResponse(err).Code != minioErrNoSuchKey {
		return fmt.Errorf("failed to stat object: %w", err)
	}
	return s.Put(ctx, id, data)
}

// Get retrieves an object from the object store.
func (s *s3store) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := s.mc.GetObject(ctx, s.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == minioErrNoSuchKey {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// List returns the IDs of objects under the given prefix in lexicographic
// order.
func (s *s3store) List(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	for object := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		ids = append(ids, object.Key)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an object from the object store.
func (s *s3store) Delete(ctx context.Context, id string) error {
	if err := s.mc.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *s3store) String() string {
	return fmt.Sprintf("s3(%s)", s.bucket)
}
