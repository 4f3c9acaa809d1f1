package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chartflow/import-server/internal/models"
	"github.com/dustin/go-humanize"
)

// S3Store keeps blobs in one S3 bucket; the logical bucket becomes the key
// prefix. Large puts go through the upload manager.
type S3Store struct {
	Client   *s3.Client
	Bucket   string
	uploader *manager.Uploader
}

func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{
		Client:   client,
		Bucket:   bucket,
		uploader: manager.NewUploader(client),
	}
}

func (s *S3Store) objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	logger.Debug("writing blob", "bucket", bucket, "key", key, "size", humanize.Bytes(uint64(len(data))))
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
		Body:   bytes.NewReader(data),
	})
	return err
}

func (s *S3Store) PutIfAbsent(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.objectKey(bucket, key)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr interface{ ErrorCode() string }
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrExists)
		}
		return err
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	rsp, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.objectKey(bucket, key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, err
	}
	defer rsp.Body.Close()
	return io.ReadAll(rsp.Body)
}

func (s *S3Store) Health(ctx context.Context) (rsp models.ServiceHealthResp) {
	rsp.Service = models.BLOB_STORE + " (s3)"
	rsp.Status = models.STATUS_UP
	rsp.HealthIssue = models.HEALTH_ISSUE_NONE
	if _, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.Bucket)}); err != nil {
		return rsp.BuildErrorResponse(err)
	}
	return rsp
}
