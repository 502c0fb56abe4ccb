// Package publish uploads corrected files to S3 after a successful remux.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the subset of *s3.Client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher puts each corrected file at <prefix>/<rel> in one bucket.
type S3Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	region string
}

// NewS3Publisher wraps an existing client. region is used only to build
// the returned object URLs.
func NewS3Publisher(client PutObjectAPI, bucket, prefix, region string) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		region: region,
	}
}

// NewS3PublisherFromConfig loads the default AWS credential chain. An empty
// region falls back to whatever the shared config or environment resolves.
func NewS3PublisherFromConfig(ctx context.Context, bucket, prefix, region string) (*S3Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Publisher(s3.NewFromConfig(awsCfg), bucket, prefix, awsCfg.Region), nil
}

// Key maps a root-relative path to an object key. Separators are always
// forward slashes.
func (p *S3Publisher) Key(rel string) string {
	rel = filepath.ToSlash(rel)
	if p.prefix == "" {
		return rel
	}
	return path.Join(p.prefix, rel)
}

// URL returns the virtual-hosted style URL for key.
func (p *S3Publisher) URL(key string) string {
	if p.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

// Publish uploads localPath under Key(rel) and returns the object URL.
func (p *S3Publisher) Publish(ctx context.Context, localPath, rel string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := p.Key(rel)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(localPath)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", p.bucket, key, err)
	}
	return p.URL(key), nil
}

// ContentType returns the MIME type for a video file by extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".avi":
		return "video/x-msvideo"
	}
	return "application/octet-stream"
}
