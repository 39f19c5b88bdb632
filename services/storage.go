package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"law_timeline_app_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/juju/errors"
)

// StorageProvider is where case document files live
type StorageProvider interface {
	UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error)
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error) // Returns reader, content-type, error
	// GetSignedURL returns a time-limited direct link, or errors.NotSupported
	// when the provider serves files only through Get
	GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// StorageResult contains information about the stored file
type StorageResult struct {
	Key      string
	FileSize int64
	MimeType string
}

// NewStorageProvider picks R2 when fully configured and reachable, else the local filesystem
func NewStorageProvider(cfg *config.Config) StorageProvider {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" {
		logger.Infof("storage: local filesystem at %s", cfg.UploadDir)
		return NewLocalStorage(cfg.UploadDir)
	}

	r2, err := NewR2Storage(cfg)
	if err != nil {
		logger.Warningf("storage: R2 init failed, falling back to local: %v", err)
		return NewLocalStorage(cfg.UploadDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r2.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.R2BucketName}); err != nil {
		logger.Warningf("storage: R2 bucket %s unreachable, falling back to local: %v", cfg.R2BucketName, err)
		return NewLocalStorage(cfg.UploadDir)
	}

	logger.Infof("storage: Cloudflare R2 bucket %s", cfg.R2BucketName)
	return r2
}

// R2Storage implements StorageProvider for Cloudflare R2
type R2Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// NewR2Storage creates a new R2 storage provider
func NewR2Storage(cfg *config.Config) (*R2Storage, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)

	creds := credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(creds),
		awsconfig.WithRegion("auto"), // R2 uses "auto" region
	)
	if err != nil {
		return nil, errors.Annotate(err, "loading AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.R2BucketName,
	}, nil
}

func (r *R2Storage) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "uploading %s to R2", key)
	}
	return &StorageResult{Key: key, FileSize: size, MimeType: contentType}, nil
}

// Delete is idempotent: S3 reports success for missing keys
func (r *R2Storage) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	return errors.Annotatef(err, "deleting %s from R2", key)
}

func (r *R2Storage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", errors.Annotatef(err, "reading %s from R2", key)
	}

	contentType := "application/octet-stream"
	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	return result.Body, contentType, nil
}

func (r *R2Storage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", errors.Annotatef(err, "signing %s", key)
	}
	return req.URL, nil
}

// LocalStorage implements StorageProvider for local filesystem
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir}
}

// UploadReader writes to a temp file first so a failed copy never leaves a partial object at key
func (l *LocalStorage) UploadReader(ctx context.Context, reader io.Reader, key string, contentType string, size int64) (*StorageResult, error) {
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, errors.Annotate(err, "creating upload directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return nil, errors.Annotate(err, "creating upload file")
	}
	written, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, errors.Annotate(err, "writing upload")
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, errors.Annotate(err, "storing upload")
	}

	return &StorageResult{Key: key, FileSize: written, MimeType: contentType}, nil
}

func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(l.baseDir, filepath.FromSlash(key))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, "deleting %s", key)
	}
	return nil
}

func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	file, err := os.Open(filepath.Join(l.baseDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errors.NotFoundf("file %s", key)
		}
		return nil, "", errors.Annotatef(err, "opening %s", key)
	}
	return file, contentTypeForExt(filepath.Ext(key)), nil
}

// GetSignedURL is not available locally; files are streamed through Get
func (l *LocalStorage) GetSignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "", errors.NotSupportedf("signed URLs on local storage")
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return "application/octet-stream"
}

// GenerateCaseDocumentKey creates a unique storage key for a case document file
func GenerateCaseDocumentKey(firmID, caseID, originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return fmt.Sprintf("firms/%s/cases/%s/%s%s", firmID, caseID, uuid.New().String(), ext)
}
