// Package assets adapts an S3-compatible asset host (MinIO in development).
// Uploaded objects are addressed by a stable public URL; deletion derives the
// object key back from that URL and never touches foreign URLs.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/sitekeeper/internal/common"
)

// versionMarker prefixes every object key this adapter writes. Only URLs
// containing it are eligible for deletion through the adapter.
const versionMarker = "v1"

// objectAPI is the subset of the S3 client used by the adapter. Tests
// substitute a fake.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Host uploads binary payloads to the asset host and deletes previously
// uploaded objects by their public URL.
type Host struct {
	api      objectAPI
	bucket   string
	endpoint string
}

// Config carries the asset host connection settings.
type Config struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// NewHost builds an adapter with a real S3 client.
func NewHost(ctx context.Context, c Config) (*Host, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.RootUser,
			c.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.BaseEndpoint)
		o.UsePathStyle = true
	})

	return newHost(client, c.Bucket, c.BaseEndpoint), nil
}

func newHost(api objectAPI, bucket, endpoint string) *Host {
	return &Host{
		api:      api,
		bucket:   bucket,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// urlPrefix is the start of every URL this adapter has produced.
func (h *Host) urlPrefix() string {
	return h.endpoint + "/" + h.bucket + "/" + versionMarker + "/"
}

// Managed reports whether url matches the adapter's own hosting pattern.
// Foreign URLs (stock photos, other hosts) must never be deleted here.
func (h *Host) Managed(url string) bool {
	return strings.HasPrefix(url, h.urlPrefix())
}

// Upload stores data under a fresh key inside folder and returns the public
// URL. Object keys carry no extension; the content type is stored on the
// object itself.
func (h *Host) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	if folder == "" {
		folder = common.DefaultAssetFolder
	}
	key := fmt.Sprintf("%s/%s/%s", versionMarker, folder, uuid.NewString())

	_, err := h.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &h.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	return h.endpoint + "/" + h.bucket + "/" + key, nil
}

// DeleteByURL removes the object a previously returned URL points at. The
// remote identifier is derived purely from the URL path: the segment
// following the version marker, extension stripped. URLs that do not match
// the adapter's hosting pattern are silently ignored.
func (h *Host) DeleteByURL(ctx context.Context, url string) error {
	if !h.Managed(url) {
		return nil
	}

	id := strings.TrimPrefix(url, h.urlPrefix())
	if ext := path.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	if id == "" {
		return nil
	}
	key := versionMarker + "/" + id

	_, err := h.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &h.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrAssetDelete, key, err)
	}
	return nil
}
