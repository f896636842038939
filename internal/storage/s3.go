package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Store persists artifacts as objects named "<linkID>/<artifact>" in a
// single bucket. It works with AWS S3 and with compatible stores such as
// MinIO (set a custom endpoint and path-style addressing in the config).
//
// CompareAndSwap uses ETag-conditional writes (If-Match), which S3 rejects
// with PreconditionFailed when the object changed after it was read.
type S3Store struct {
	baseURL string
	bucket  string
	client  *s3.Client
}

func NewS3Store(client *s3.Client, bucket, baseURL string) (*S3Store, error) {
	if bucket == "" {
		return nil, NewError(OpStore, "", "bucket is required")
	}
	return &S3Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		client:  client,
	}, nil
}

func (s *S3Store) BaseURL() string { return s.baseURL }

func (s *S3Store) Store(ctx context.Context, key string, data []byte) error {
	if err := validateKey(OpStore, key); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return WrapError(err, OpStore, key, "failed to store object")
	}
	return nil
}

func (s *S3Store) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(OpRetrieve, key); err != nil {
		return nil, err
	}

	data, _, err := s.getObject(ctx, OpRetrieve, key)
	return data, err
}

func (s *S3Store) Delete(ctx context.Context, linkID string) error {
	if err := validateLinkID(OpDelete, linkID); err != nil {
		return err
	}

	prefix := linkID + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return WrapError(err, OpDelete, linkID, "failed to list objects")
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, object := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: object.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return WrapError(err, OpDelete, linkID, "failed to delete objects")
		}
	}
	return nil
}

func (s *S3Store) CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error) {
	if err := validateKey(OpCompareAndSwap, key); err != nil {
		return false, err
	}

	current, etag, err := s.getObject(ctx, OpCompareAndSwap, key)
	if err != nil {
		return false, err
	}
	if !bytes.Equal(current, expected) {
		return false, nil
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		Body:    bytes.NewReader(replacement),
		IfMatch: aws.String(etag),
	})
	if err != nil {
		// the object changed between the read and the conditional write
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return false, nil
		}
		return false, WrapError(err, OpCompareAndSwap, key, "failed to swap object")
	}
	return true, nil
}

// getObject reads an object and its ETag, mapping a missing key to ErrNotFound.
func (s *S3Store) getObject(ctx context.Context, op, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", NotFound(op, key)
		}
		return nil, "", WrapError(err, op, key, "failed to get object")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", WrapError(err, op, key, "failed to read object body")
	}
	return data, aws.ToString(out.ETag), nil
}
