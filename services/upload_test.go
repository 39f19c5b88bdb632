package services

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"law_timeline_app_go/config"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMockFileHeader(t *testing.T, filename string, content []byte, contentType string) *multipart.FileHeader {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write(content)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(10 * 1024 * 1024)
	require.NoError(t, err)
	return form.File["file"][0]
}

func TestUploadLimitsValidate(t *testing.T) {
	limits := UploadLimits{MaxBytes: 1024, AllowedTypes: []string{"application/pdf", "image/png"}}
	file := func(name, contentType string, size int64) FileUpload {
		return FileUpload{Filename: name, ContentType: contentType, Size: size}
	}

	t.Run("accepts allowed type", func(t *testing.T) {
		assert.NoError(t, limits.Validate(file("a.pdf", "application/pdf", 10)))
	})

	t.Run("ignores parameters and case", func(t *testing.T) {
		assert.NoError(t, limits.Validate(file("a.png", "IMAGE/PNG; charset=binary", 10)))
	})

	t.Run("size exactly at limit", func(t *testing.T) {
		assert.NoError(t, limits.Validate(file("a.pdf", "application/pdf", 1024)))
	})

	cases := []struct {
		name string
		f    FileUpload
	}{
		{"too large", file("a.pdf", "application/pdf", 1025)},
		{"empty", file("a.pdf", "application/pdf", 0)},
		{"no name", file("  ", "application/pdf", 10)},
		{"disallowed type", file("a.exe", "application/x-msdownload", 10)},
		{"malformed type", file("a.pdf", "pdf;;", 10)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := limits.Validate(tc.f)
			assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
		})
	}
}

func TestUploadLimitsFromConfig(t *testing.T) {
	cfg := &config.Config{MaxUploadBytes: 42, AllowedUploadTypes: []string{"text/plain"}}
	limits := UploadLimitsFromConfig(cfg)
	assert.Equal(t, int64(42), limits.MaxBytes)
	assert.Equal(t, []string{"text/plain"}, limits.AllowedTypes)

	defaults := DefaultUploadLimits()
	assert.Equal(t, int64(config.DefaultMaxUploadBytes), defaults.MaxBytes)
	assert.Contains(t, defaults.AllowedTypes, "application/pdf")
}

func TestOpenFileUpload(t *testing.T) {
	t.Run("uses declared content type", func(t *testing.T) {
		fh := createMockFileHeader(t, "contract.pdf", []byte("%PDF-1.4 body"), "application/pdf")
		f, closer, err := OpenFileUpload(fh)
		require.NoError(t, err)
		defer closer.Close()

		assert.Equal(t, "contract.pdf", f.Filename)
		assert.Equal(t, "application/pdf", f.MediaType())
		assert.Equal(t, int64(len("%PDF-1.4 body")), f.Size)
		data, _ := io.ReadAll(f.Reader)
		assert.Equal(t, "%PDF-1.4 body", string(data))
	})

	t.Run("falls back to extension", func(t *testing.T) {
		fh := createMockFileHeader(t, "scan.png", []byte("png"), "")
		f, closer, err := OpenFileUpload(fh)
		require.NoError(t, err)
		defer closer.Close()
		assert.Equal(t, "image/png", f.ContentType)
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		fh := createMockFileHeader(t, "notes.txt", []byte("hi"), "text/plain")
		fh.Filename = "../../etc/notes.txt"
		f, closer, err := OpenFileUpload(fh)
		require.NoError(t, err)
		defer closer.Close()
		assert.False(t, strings.Contains(f.Filename, "/"))
	})
}
