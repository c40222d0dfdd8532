// Package storage uploads vehicle images to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/config"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

var (
	ErrDisabled        = errors.New("image storage is not configured")
	ErrTooLarge        = fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	ErrUnsupportedType = errors.New("image must be jpeg, png or webp")
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Putter is the subset of the S3 client used by ImageStore.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ImageStore writes vehicle images under vehicles/<id>/ in one bucket.
type ImageStore struct {
	client  Putter
	bucket  string
	baseURL string
}

// NewImageStore builds an S3 client from cfg. Static credentials are used
// when both keys are set, else the default AWS credential chain. A custom
// endpoint switches to path-style addressing for MinIO and similar servers.
func NewImageStore(ctx context.Context, cfg config.StorageConfig) (*ImageStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewImageStoreWithClient(client, cfg), nil
}

// NewImageStoreWithClient wraps an existing client.
func NewImageStoreWithClient(client Putter, cfg config.StorageConfig) *ImageStore {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		switch {
		case cfg.Endpoint != "":
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		default:
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &ImageStore{client: client, bucket: cfg.Bucket, baseURL: base}
}

// UploadVehicleImage stores the image read from r and returns its public URL.
// The content type is sniffed from the data, not trusted from the client.
func (s *ImageStore) UploadVehicleImage(ctx context.Context, vehiculeID string, r io.Reader) (string, error) {
	if s == nil {
		return "", ErrDisabled
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}
	contentType := DetectImageType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := fmt.Sprintf("vehicles/%s/%s.%s", vehiculeID, uuid.NewString(), ext)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	url := s.baseURL + "/" + key
	log.WithFields(log.Fields{
		"vehicule_id": vehiculeID,
		"key":         key,
		"bytes":       len(data),
	}).Info("Uploaded vehicle image")
	return url, nil
}

// DetectImageType sniffs the MIME type of data.
func DetectImageType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
