// Package objectstore issues presigned S3 upload URLs for negotiation
// attachments.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

var (
	ErrDisabled           = errors.New("Attachment storage is not configured")
	ErrContentTypeBlocked = errors.New("File type not allowed")
)

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// PutPresigner is the part of s3.PresignClient the store uses.
type PutPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Upload describes a presigned PUT the client performs itself.
type Upload struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	FileURL   string            `json:"fileUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Store signs uploads into one bucket.
type Store struct {
	presigner PutPresigner
	cfg       *Config
	now       func() time.Time
}

// NewStore builds an S3 presign client from cfg.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	log.Infof("[ObjectStore] Presigning uploads for bucket %s", cfg.BucketName)
	return NewStoreWithPresigner(s3.NewPresignClient(client), cfg), nil
}

func NewStoreWithPresigner(p PutPresigner, cfg *Config) *Store {
	return &Store{presigner: p, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// ObjectKey returns prefix/<uuid><ext>, keeping only a short lowercase
// extension from fileName.
func ObjectKey(prefix, fileName string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return strings.TrimRight(prefix, "/") + "/" + uuid.NewString() + ext
}

// AttachmentPrefix is where a negotiation's attachments live.
func AttachmentPrefix(threadID string) string {
	return "negotiations/" + threadID
}

// PresignUpload signs a PUT of contentType under prefix.
func (s *Store) PresignUpload(ctx context.Context, prefix, fileName, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowedContentTypes[contentType] {
		return nil, ErrContentTypeBlocked
	}
	key := ObjectKey(prefix, fileName)
	expiry := s.cfg.UploadExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.BucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}

	return &Upload{
		Key:       key,
		UploadURL: req.URL,
		Method:    req.Method,
		Headers:   map[string]string{"Content-Type": contentType},
		FileURL:   s.fileURL(key),
		ExpiresAt: s.now().Add(expiry),
	}, nil
}

func (s *Store) fileURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	if s.cfg.EndpointURL != "" {
		return strings.TrimRight(s.cfg.EndpointURL, "/") + "/" + s.cfg.BucketName + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.BucketName, s.cfg.Region, (&url.URL{Path: key}).EscapedPath())
}
