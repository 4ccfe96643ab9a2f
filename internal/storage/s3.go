package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3-compatible store.
type S3Options struct {
	Bucket    string
	Endpoint  string
	PublicURL string
	Region    string
	AccessKey string
	SecretKey string
	SignedTTL time.Duration
}

// S3Store persists blobs in an S3-compatible bucket using path-style
// addressing so that MinIO and similar services work unchanged.
type S3Store struct {
	client    *s3.Client
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	ttl       time.Duration
}

// NewS3Store builds an S3 client with static credentials.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = true
	})
	return newS3Store(client, opts), nil
}

func newS3Store(client *s3.Client, opts S3Options) *S3Store {
	ttl := opts.SignedTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = opts.Endpoint
	}
	return &S3Store{
		client:    client,
		presign:   s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		ttl:       ttl,
	}
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return Object{}, err
	}
	if contentType == "" {
		contentType = mimeForExtension(cleanKey)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(cleanKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: put object %s: %w", cleanKey, err)
	}
	return Object{Key: cleanKey, URL: s.objectURL(cleanKey), ContentType: contentType}, nil
}

// Get downloads the object stored at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, "", err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("storage: get object %s: %w", cleanKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("storage: read object %s: %w", cleanKey, err)
	}
	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = mimeForExtension(cleanKey)
	}
	return data, contentType, nil
}

// Sign presigns a GET request for key valid for the configured TTL.
func (s *S3Store) Sign(ctx context.Context, key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(cleanKey),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", cleanKey, err)
	}
	return req.URL, nil
}

// objectURL is the unsigned public URL: <public>/<bucket>/<key>.
func (s *S3Store) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicURL, url.PathEscape(s.bucket), strings.Join(segments, "/"))
}

var _ BlobStore = (*S3Store)(nil)
