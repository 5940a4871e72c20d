package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mangoplex/multipacks/internal/config"
)

type AmazonS3 struct {
	client *s3.Client
	bucket string
	key    string
}

func NewAmazonS3(ctx context.Context, c *config.AmazonS3) (*AmazonS3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}

	if c.Credentials != nil {
		creds, err := resolve[config.SecretAWS](ctx, c.Credentials)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.URL != "" {
			o.BaseEndpoint = aws.String(c.URL)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return &AmazonS3{client: client, bucket: c.Bucket, key: c.Key}, nil
}

func (s *AmazonS3) Upload(ctx context.Context, body io.Reader, revision string) error {
	bs, meta, err := metadata(body, revision)
	if err != nil {
		return err
	}

	uploader := manager.NewUploader(s.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(bs),
		ContentType: aws.String("application/zip"),
		Metadata:    meta,
	}); err != nil {
		return fmt.Errorf("s3: failed to upload s3://%s/%s: %w", s.bucket, s.key, err)
	}

	return nil
}

func (s *AmazonS3) Download(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: failed to download s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return out.Body, nil
}
