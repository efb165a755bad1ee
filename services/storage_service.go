package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"skyshelf/models"
)

// GlobalBucket is the bucket all product sources are stored in.
const GlobalBucket = "global"

// MaxSingleUploadSize is the threshold above which uploads become
// multipart, and also the multipart batch size.
const MaxSingleUploadSize = 50 * 1024 * 1024

// StorageConfig configures the S3-compatible backend (MinIO in
// development).
type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// URLExpiry bounds the lifetime of issued pre-signed URLs.
	URLExpiry time.Duration
}

// StorageService issues pre-signed upload/download URLs and coordinates
// multipart uploads against an S3-compatible object store. Bytes never
// flow through this service; clients talk to the object store directly.
type StorageService struct {
	client  *s3.Client
	presign *s3.PresignClient
	expires time.Duration
}

func NewStorageService(ctx context.Context, cfg StorageConfig) (*StorageService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// MinIO serves buckets path-style.
		o.UsePathStyle = true
	})

	expires := cfg.URLExpiry
	if expires <= 0 {
		expires = 24 * time.Hour
	}

	return &StorageService{
		client:  client,
		presign: s3.NewPresignClient(client),
		expires: expires,
	}, nil
}

// ObjectName is the object key convention: {uploader}/{uuid}/{basename}.
// Any path components smuggled in through the filename are stripped.
func (s *StorageService) ObjectName(filename, uploader, fileUUID string) string {
	return fmt.Sprintf("%s/%s/%s", uploader, fileUUID, filepath.Base(filename))
}

func (s *StorageService) ensureBucket(ctx context.Context, name string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return nil
}

// Put returns a pre-signed URL for a single-shot HTTP PUT upload.
func (s *StorageService) Put(ctx context.Context, name, uploader, fileUUID, bucket string) (string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.ObjectName(name, uploader, fileUUID)),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", name, err)
	}

	return req.URL, nil
}

// PutMultipart opens a multipart upload session and returns its id
// together with one pre-signed URL per part. Parts are sized by batch;
// the client uploads them independently and in parallel.
func (s *StorageService) PutMultipart(ctx context.Context, name, uploader, fileUUID, bucket string, size, batch int64) (string, []string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", nil, err
	}

	key := s.ObjectName(name, uploader, fileUUID)

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to open multipart upload for %s: %w", name, err)
	}

	parts := int((size + batch - 1) / batch)
	urls := make([]string, 0, parts)

	for part := 1; part <= parts; part++ {
		req, err := s.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   created.UploadId,
			PartNumber: aws.Int32(int32(part)),
		}, s3.WithPresignExpires(s.expires))
		if err != nil {
			return "", nil, fmt.Errorf("failed to presign part %d for %s: %w", part, name, err)
		}
		urls = append(urls, req.URL)
	}

	return aws.ToString(created.UploadId), urls, nil
}

// CompleteMultipart finalizes a multipart session from the response
// headers the client collected while uploading each part. Treat this as
// at-most-once; do not retry automatically.
func (s *StorageService) CompleteMultipart(ctx context.Context, name, uploader, fileUUID, bucket, uploadID string, headers []map[string]string, sizes []int64) error {
	if len(headers) != len(sizes) {
		return fmt.Errorf("part header count %d does not match size count %d", len(headers), len(sizes))
	}

	parts := make([]types.CompletedPart, 0, len(headers))
	for i, h := range headers {
		etag, ok := partETag(h)
		if !ok {
			return fmt.Errorf("part %d response is missing an ETag header", i+1)
		}
		parts = append(parts, types.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int32(int32(i + 1)),
		})
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(s.ObjectName(name, uploader, fileUUID)),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to complete multipart upload for %s: %w", name, err)
	}
	return nil
}

func partETag(headers map[string]string) (string, bool) {
	for _, key := range []string{"ETag", "Etag", "etag"} {
		if v, ok := headers[key]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Confirm checks whether the object backing a file actually exists in
// the store.
func (s *StorageService) Confirm(ctx context.Context, name, uploader, fileUUID, bucket string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.ObjectName(name, uploader, fileUUID)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "NotFound", "NoSuchKey":
				return false, nil
			}
		}
		return false, fmt.Errorf("failed to confirm object %s: %w", name, err)
	}
	return true, nil
}

// Get returns a pre-signed URL for an HTTP GET download.
func (s *StorageService) Get(ctx context.Context, name, uploader, fileUUID, bucket string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.ObjectName(name, uploader, fileUUID)),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign download for %s: %w", name, err)
	}
	return req.URL, nil
}

// Delete removes an object from the store.
func (s *StorageService) Delete(ctx context.Context, name, uploader, fileUUID, bucket string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(s.ObjectName(name, uploader, fileUUID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", name, err)
	}
	return nil
}

// CreateFileSlot allocates a File record in the not-yet-available state
// together with the pre-signed upload URL(s) the client needs to push
// the bytes. Uploads above MaxSingleUploadSize become multipart.
func (s *StorageService) CreateFileSlot(ctx context.Context, name string, description *string, uploader string, size int64, checksum string) (models.File, []string, error) {
	fileUUID := uuid.New().String()
	multipart := size > MaxSingleUploadSize
	numberOfParts := int((size + MaxSingleUploadSize - 1) / MaxSingleUploadSize)
	if numberOfParts < 1 {
		numberOfParts = 1
	}

	var uploadID *string
	var urls []string

	if multipart {
		id, partURLs, err := s.PutMultipart(ctx, name, uploader, fileUUID, GlobalBucket, size, MaxSingleUploadSize)
		if err != nil {
			return models.File{}, nil, err
		}
		uploadID = &id
		urls = partURLs
	} else {
		url, err := s.Put(ctx, name, uploader, fileUUID, GlobalBucket)
		if err != nil {
			return models.File{}, nil, err
		}
		urls = []string{url}
	}

	file := models.File{
		UUID:            fileUUID,
		Name:            filepath.Base(name),
		Description:     description,
		Uploader:        uploader,
		Bucket:          GlobalBucket,
		Size:            size,
		Checksum:        checksum,
		Available:       false,
		Multipart:       multipart,
		NumberOfParts:   numberOfParts,
		UploadID:        uploadID,
		MultipartClosed: !multipart,
		CreatedAt:       time.Now().UTC(),
	}

	return file, urls, nil
}
