package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	sc "github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
)

// Package-level seams so tests can stub the AWS SDK without network access.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const presignExpiry = 15 * time.Minute

// BlobStore issues presigned URLs against the configured S3-compatible
// endpoint. The server itself never proxies file bytes.
type BlobStore struct {
	config *sc.Config
}

func NewBlobStore(config *sc.Config) *BlobStore {
	return &BlobStore{config: config}
}

// RandomStorageKey allocates a date-bucketed object key.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), int(d.Month()), d.Day(), uuid.New())
}

func (b *BlobStore) getPresignClient() (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(b.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			b.config.S3RootUser,
			b.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(b.config.S3BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

// PresignedPutURL returns a fresh storage key and a presigned PUT URL for it.
func (b *BlobStore) PresignedPutURL(ctx context.Context) (string, string, error) {
	presignClient, err := b.getPresignClient()
	if err != nil {
		return "", "", err
	}

	bucket := b.config.S3Bucket
	key := RandomStorageKey()

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", "", err
	}

	return key, req.URL, nil
}

// PresignedGetURL returns a presigned GET URL for an existing object.
func (b *BlobStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := b.getPresignClient()
	if err != nil {
		return "", err
	}

	bucket := b.config.S3Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
