package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// FirebaseDocuments stores documents in the project's Firebase Storage bucket.
type FirebaseDocuments struct {
	bucket *gcs.BucketHandle
}

func NewFirebaseDocuments(ctx context.Context, app *firebase.App, bucketName string) (*FirebaseDocuments, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}
	var bucket *gcs.BucketHandle
	if bucketName != "" {
		bucket, err = client.Bucket(bucketName)
	} else {
		bucket, err = client.DefaultBucket()
	}
	if err != nil {
		return nil, fmt.Errorf("error getting storage bucket: %w", err)
	}
	return &FirebaseDocuments{bucket: bucket}, nil
}

func (d *FirebaseDocuments) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	w := d.bucket.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize object: %w", err)
	}

	url, err := d.bucket.SignedURL(objectPath, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(DocumentURLTTL),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

// S3Config selects an S3 (or S3-compatible) bucket for documents.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is set for S3-compatible providers such as R2 or MinIO.
	Endpoint string
}

// S3Documents stores documents in S3 and hands out presigned GET URLs.
type S3Documents struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   *string
}

func NewS3Documents(ctx context.Context, cfg S3Config) (*S3Documents, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket not configured")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	bucket := aws.String(cfg.Bucket)
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return nil, fmt.Errorf("bucket '%s' does not exist", cfg.Bucket)
		}
		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Documents{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 2
			u.PartSize = 5 << 20
		}),
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

func (d *S3Documents) Put(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	_, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      d.bucket,
		Key:         aws.String(objectPath),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3, %w", err)
	}

	req, err := d.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: d.bucket,
		Key:    aws.String(objectPath),
	}, s3.WithPresignExpires(DocumentURLTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign document url, %w", err)
	}
	return req.URL, nil
}
