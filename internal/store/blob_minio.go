package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tlxue/everclaw/internal/logger"
)

// MinioOptions configures the S3-compatible endpoint used by [MinioBlobs].
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobs is a [BlobBackend] over a single S3-compatible bucket.
type MinioBlobs struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

var _ BlobBackend = (*MinioBlobs)(nil)

// NewMinioBlobs connects to the endpoint and creates the bucket if it does
// not exist yet.
func NewMinioBlobs(ctx context.Context, opts MinioOptions, log *logger.Logger) (*MinioBlobs, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		log.Err(err).Str("endpoint", opts.Endpoint).Msg("error checking minio bucket")
		return nil, fmt.Errorf("minio bucket exists: %w", err)
	}
	if !exists {
		if err = client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
		log.Info().Str("bucket", opts.Bucket).Msg("created minio bucket")
	}
	log.Info().Str("endpoint", opts.Endpoint).Str("bucket", opts.Bucket).Msg("connected to minio successfully")

	return &MinioBlobs{client: client, bucket: opts.Bucket, logger: log}, nil
}

func (s *MinioBlobs) Get(ctx context.Context, key string) ([]byte, ObjectMeta, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectMeta{}, mapMinioError(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, ObjectMeta{}, mapMinioError(key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, ObjectMeta{}, mapMinioError(key, err)
	}
	return data, metaFromInfo(info), nil
}

func (s *MinioBlobs) Head(ctx context.Context, key string) (ObjectMeta, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectMeta{}, mapMinioError(key, err)
	}
	return metaFromInfo(info), nil
}

func (s *MinioBlobs) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

func (s *MinioBlobs) Delete(ctx context.Context, keys ...string) error {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		if err := s.client.RemoveObject(ctx, s.bucket, keys[0], minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("minio remove %s: %w", keys[0], err)
		}
		return nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)

	var errs []error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("minio remove %s: %w", rerr.ObjectName, rerr.Err))
	}
	return errors.Join(errs...)
}

// List reads at most Limit+1 entries after the cursor key; the extra entry
// only signals truncation. The listing context is cancelled as soon as
// enough entries were read so minio stops paging.
func (s *MinioBlobs) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = MaxListLimit
	}
	after, err := decodeCursor(opts.Prefix, opts.Cursor)
	if err != nil {
		return ListResult{}, err
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:     opts.Prefix,
		StartAfter: after,
		Recursive:  true,
	})

	var res ListResult
	for info := range ch {
		if info.Err != nil {
			return ListResult{}, fmt.Errorf("minio list %s: %w", opts.Prefix, info.Err)
		}
		if len(res.Objects) == opts.Limit {
			res.Truncated = true
			res.Cursor = encodeCursor(res.Objects[len(res.Objects)-1].Key)
			cancel()
			break
		}
		res.Objects = append(res.Objects, metaFromInfo(info))
	}
	// drain so the lister goroutine exits after cancel
	for range ch {
	}

	return res, nil
}

// Close is a no-op; the minio client holds no long-lived resources.
func (s *MinioBlobs) Close() error { return nil }

func metaFromInfo(info minio.ObjectInfo) ObjectMeta {
	return ObjectMeta{
		Key:         info.Key,
		Size:        info.Size,
		Uploaded:    info.LastModified.UTC(),
		ContentType: info.ContentType,
	}
}

func mapMinioError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("minio %s: %w", key, err)
}
