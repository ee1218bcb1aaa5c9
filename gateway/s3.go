package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jacentio/livewall"
)

// S3API is the subset of the S3 client used for blobs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures S3Blobs.
type S3Config struct {
	Bucket string

	// Prefix is prepended to every object key.
	Prefix string

	// PublicURL, if set, is the base URL objects are served from. Otherwise
	// stored URLs use the s3:// scheme.
	PublicURL string

	// LinkExpiry is the lifetime of presigned download links.
	// Default: 15 minutes
	LinkExpiry time.Duration
}

// S3Blobs stores images as S3 objects.
type S3Blobs struct {
	client  S3API
	presign *s3.PresignClient
	config  S3Config
}

// NewS3Blobs creates an S3 blob store. presign may be nil, in which case
// Link is unavailable.
func NewS3Blobs(client S3API, presign *s3.PresignClient, config S3Config) *S3Blobs {
	if config.LinkExpiry <= 0 {
		config.LinkExpiry = 15 * time.Minute
	}
	return &S3Blobs{client: client, presign: presign, config: config}
}

func (b *S3Blobs) key(id string) string {
	return b.config.Prefix + id
}

func (b *S3Blobs) url(key string) string {
	if b.config.PublicURL != "" {
		return strings.TrimRight(b.config.PublicURL, "/") + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", b.config.Bucket, key)
}

func (b *S3Blobs) Store(ctx context.Context, id string, data []byte, contentType string) (string, error) {
	key := b.key(id)
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", classify("blob.store", err)
	}
	return b.url(key), nil
}

func (b *S3Blobs) Fetch(ctx context.Context, id string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		return nil, classify("blob.fetch", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, livewall.Upstream("blob.fetch", err)
	}
	return data, nil
}

func (b *S3Blobs) Delete(ctx context.Context, id string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(id)),
	})
	err = classify("blob.delete", err)
	if errors.Is(err, livewall.ErrNotFound) {
		return nil
	}
	return err
}

// Link returns a presigned GET URL for id.
func (b *S3Blobs) Link(ctx context.Context, id string) (string, error) {
	if b.presign == nil {
		return "", fmt.Errorf("blob.link: %w: presigning not configured", livewall.ErrUpstreamUnavailable)
	}
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.key(id)),
	}, s3.WithPresignExpires(b.config.LinkExpiry))
	if err != nil {
		return "", livewall.Upstream("blob.link", err)
	}
	return req.URL, nil
}
