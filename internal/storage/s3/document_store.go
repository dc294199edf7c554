// Package s3 implements the DocumentStore port against S3-compatible object
// storage.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fiscora/internal/config"
	"fiscora/internal/domain"
	"fiscora/internal/port"
)

var _ port.DocumentStore = (*DocumentStore)(nil)

// DocumentStore fetches scanned pages from a single bucket. The document
// reference is the object key.
type DocumentStore struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
}

// NewDocumentStore builds an S3 client from cfg. A custom endpoint switches
// to path-style addressing for MinIO-style deployments.
func NewDocumentStore(cfg *config.S3Config) (*DocumentStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return &DocumentStore{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
	}, nil
}

// Fetch downloads the object behind ref and hashes its content. Scans can be
// large, so the download runs through the concurrent part downloader.
func (s *DocumentStore) Fetch(ctx context.Context, ref string) (*port.Document, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, ref)
		}
		return nil, fmt.Errorf("s3 head %s: %w", ref, err)
	}

	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	_, err = s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, ref)
		}
		return nil, fmt.Errorf("s3 download %s: %w", ref, err)
	}

	data := buf.Bytes()
	sum := sha256.Sum256(data)
	contentType := ""
	if head.ContentType != nil {
		contentType = *head.ContentType
	}
	return &port.Document{
		Ref:         ref,
		Bytes:       data,
		ContentHash: hex.EncodeToString(sum[:]),
		ContentType: contentType,
	}, nil
}
