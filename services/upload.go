package services

import (
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
)

// UploadLimits bounds what may be attached to a case document
type UploadLimits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// UploadLimitsFromConfig builds limits from MAX_UPLOAD_BYTES / ALLOWED_UPLOAD_TYPES
func UploadLimitsFromConfig(cfg *config.Config) UploadLimits {
	return UploadLimits{MaxBytes: cfg.MaxUploadBytes, AllowedTypes: cfg.AllowedUploadTypes}
}

// DefaultUploadLimits are used when the service is built without explicit limits
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxBytes:     config.DefaultMaxUploadBytes,
		AllowedTypes: append([]string(nil), config.DefaultAllowedUploadTypes...),
	}
}

// FileUpload is an incoming file with its declared metadata
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Validate checks the declared size and content type. Parameters such as
// "; charset=utf-8" are ignored when matching the allow-list.
func (l UploadLimits) Validate(f FileUpload) error {
	if strings.TrimSpace(f.Filename) == "" {
		return errors.NotValidf("empty file name")
	}
	if f.Size <= 0 {
		return errors.NotValidf("empty file %q", f.Filename)
	}
	if l.MaxBytes > 0 && f.Size > l.MaxBytes {
		return errors.NotValidf("file %q of %d bytes exceeds the %d byte limit", f.Filename, f.Size, l.MaxBytes)
	}

	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		return errors.NewNotValid(err, "content type "+f.ContentType)
	}
	for _, allowed := range l.AllowedTypes {
		if strings.EqualFold(mediaType, allowed) {
			return nil
		}
	}
	return errors.NotValidf("file type %q", mediaType)
}

// MediaType returns the declared content type without parameters
func (f FileUpload) MediaType() string {
	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil {
		return f.ContentType
	}
	return mediaType
}

// OpenFileUpload opens a multipart file. The caller closes the returned reader.
func OpenFileUpload(fh *multipart.FileHeader) (FileUpload, io.Closer, error) {
	src, err := fh.Open()
	if err != nil {
		return FileUpload{}, nil, errors.Annotate(err, "opening uploaded file")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForExt(filepath.Ext(fh.Filename))
	}
	return FileUpload{
		Filename:    filepath.Base(fh.Filename),
		ContentType: contentType,
		Size:        fh.Size,
		Reader:      src,
	}, src, nil
}
