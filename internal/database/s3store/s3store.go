// Package s3store keeps the user collection as a JSON object in an S3-compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
)

// ObjectAPI is the subset of the S3 client the storage needs.
type ObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage is an S3-backed database.Storage. PutObject replaces the object
// atomically, so readers never see a partial collection.
type Storage struct {
	client ObjectAPI
	bucket string
	key    string
}

// New creates a storage on an existing client.
func New(client ObjectAPI, bucket, key string) *Storage {
	return &Storage{client: client, bucket: bucket, key: key}
}

// Open builds an S3 client from configuration. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
// A custom endpoint (MinIO, LocalStack) switches to path-style addressing.
func Open(ctx context.Context, cfg *config.S3Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required for the s3 backend")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return New(client, cfg.Bucket, cfg.Key), nil
}

// Describe implements database.Describer.
func (s *Storage) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// Init uploads an empty collection if the object does not exist
func (s *Storage) Init(ctx context.Context) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("checking %s: %w", s.Describe(), err)
	}
	return s.put(ctx, database.EmptyCollection())
}

// Load downloads and decodes the collection
func (s *Storage) Load(ctx context.Context) ([]database.UserRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Describe(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Describe(), err)
	}
	return database.UnmarshalRecords(data)
}

// Save uploads the full collection
func (s *Storage) Save(ctx context.Context, records []database.UserRecord) error {
	data, err := database.MarshalRecords(records)
	if err != nil {
		return err
	}
	return s.put(ctx, data)
}

func (s *Storage) put(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", s.Describe(), err)
	}
	return nil
}

// isNotFound matches both HeadObject's bare 404 and GetObject's NoSuchKey.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
