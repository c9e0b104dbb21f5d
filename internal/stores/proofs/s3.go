package proofs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/orders"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presignTTL bounds how long a proof link handed to an admin stays valid.
const presignTTL = 15 * time.Minute

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Store struct {
	client  objectAPI
	presign presignAPI
	bucket  string
	prefix  string
}

type S3StoreConfig struct {
	Bucket   string
	Region   string
	Endpoint string // MinIO, LocalStack
	Prefix   string
}

func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, s3.NewPresignClient(client), cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client objectAPI, presign presignAPI, bucket, prefix string) *S3Store {
	return &S3Store{client: client, presign: presign, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Save(ctx context.Context, p orders.PaymentProof) (string, error) {
	name, contentType := objectName(p)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + name),
		Body:        bytes.NewReader(p.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed: %w", err)
	}
	return URIPrefix + name, nil
}

func (s *S3Store) Delete(ctx context.Context, uri string) error {
	name, err := nameOf(uri)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed for %s: %w", uri, err)
	}
	return nil
}

// Locate returns a presigned GET for the proof object.
func (s *S3Store) Locate(ctx context.Context, uri string) (Location, error) {
	name, err := nameOf(uri)
	if err != nil {
		return Location{}, err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return Location{}, fmt.Errorf("s3 presign failed for %s: %w", uri, err)
	}
	return Location{URL: req.URL}, nil
}
