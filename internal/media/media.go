// Package media stores chat attachments in S3-compatible object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxUploadSize bounds a single attachment.
const MaxUploadSize = 25 << 20

var (
	ErrNotConfigured = errors.New("media storage not configured")
	ErrInvalidName   = errors.New("invalid media object name")
	ErrNotFound      = errors.New("media object not found")
)

var objectName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3-compatible storage configuration. PublicURL is the base
// under which stored objects are readable without credentials; when empty,
// objects are served back through the API under ProxyURL.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	PublicURL string
	ProxyURL  string
}

// Configured reports whether enough is set to talk to a bucket.
func (c Config) Configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Store writes and reads family-scoped media objects.
type Store struct {
	cfg    Config
	client s3Client
}

// New returns a Store, or one that reports ErrNotConfigured when cfg is
// incomplete.
func New(cfg Config) *Store {
	s := &Store{cfg: cfg}
	if cfg.Configured() {
		s.client = newS3Client(cfg)
	}
	return s
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,

		// S3-compatible providers reject the streaming checksum trailer.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (s *Store) Configured() bool {
	return s.client != nil
}

// Key returns the object key for name inside familyID's prefix.
func Key(familyID, name string) (string, error) {
	if familyID == "" || !objectName.MatchString(name) || strings.Contains(name, "..") {
		return "", ErrInvalidName
	}
	return familyID + "/" + name, nil
}

// Put uploads body under familyID/name and returns the object's URL.
func (s *Store) Put(ctx context.Context, familyID, name string, body io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}
	key, err := Key(familyID, name)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.URL(familyID, name), nil
}

// Object is a stored attachment opened for reading.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// Get opens familyID/name. The caller closes Body.
func (s *Store) Get(ctx context.Context, familyID, name string) (*Object, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	key, err := Key(familyID, name)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	obj := &Object{Body: out.Body, ContentType: aws.ToString(out.ContentType)}
	if out.ContentLength != nil {
		obj.Size = *out.ContentLength
	}
	return obj, nil
}

// URL returns where a client can fetch familyID/name.
func (s *Store) URL(familyID, name string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + path.Join(url.PathEscape(familyID), url.PathEscape(name))
	}
	return strings.TrimRight(s.cfg.ProxyURL, "/") + "/api/families/" + url.PathEscape(familyID) + "/media/" + url.PathEscape(name)
}
