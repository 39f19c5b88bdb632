package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"law_timeline_app_go/models"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pdfUpload(name, content string) FileUpload {
	return FileUpload{
		Filename:    name,
		ContentType: "application/pdf",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
	}
}

func statusPtr(s string) *string {
	return &s
}

func TestSummarizeDocuments(t *testing.T) {
	s := SummarizeDocuments([]models.CaseDocument{
		{IsRequired: true, Status: models.DocumentStatusApproved},
		{IsRequired: true, Status: models.DocumentStatusNotRequired},
		{IsRequired: true, Status: models.DocumentStatusSubmitted},
		{IsRequired: false, Status: models.DocumentStatusPending},
	})
	assert.Equal(t, 3, s.RequiredTotal)
	assert.Equal(t, 1, s.RequiredOutstanding)
	assert.False(t, s.RequiredComplete)
	assert.Equal(t, 1, s.Counts[models.DocumentStatusPending])
	assert.Equal(t, 0, s.Counts[models.DocumentStatusRejected])
	assert.Len(t, s.Counts, len(models.DocumentStatuses))

	assert.True(t, SummarizeDocuments(nil).RequiredComplete)
}

func TestSeedRequirementsDeduplicates(t *testing.T) {
	f := newTimelineFixture(t)
	caseID := f.caseRec.ID

	created, err := f.svc.SeedRequirements(f.staffActor, caseID, []string{"Passport", "Tax Return", "Power of Attorney"})
	require.NoError(t, err)
	require.Len(t, created, 3)
	for _, d := range created {
		assert.True(t, d.IsRequired)
		assert.Equal(t, models.DocumentStatusPending, d.Status)
	}

	// one of them moves on before the template is applied again
	_, err = f.svc.AttachFile(context.Background(), f.clientActor, caseID, created[0].ID, pdfUpload("passport.pdf", "%PDF"), nil)
	require.NoError(t, err)

	again, err := f.svc.SeedRequirements(f.staffActor, caseID, []string{"passport", "TAX  return", "Power of Attorney", "Bank Statement", "bank statement"})
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "Bank Statement", again[0].Name)

	list, err := f.svc.ListCaseDocuments(f.clientActor, caseID)
	require.NoError(t, err)
	assert.Len(t, list.Documents, 4)
	assert.Equal(t, 4, list.Summary.RequiredTotal)
	assert.Equal(t, 1, list.Summary.Counts[models.DocumentStatusSubmitted])

	_, err = f.svc.SeedRequirements(f.clientActor, caseID, []string{"x"})
	assert.True(t, errors.Is(err, errors.Forbidden))
}

func TestAttachFileStateMachine(t *testing.T) {
	ctx := context.Background()
	f := newTimelineFixture(t)
	caseID := f.caseRec.ID
	docs, err := f.svc.SeedRequirements(f.staffActor, caseID, []string{"Passport"})
	require.NoError(t, err)
	docID := docs[0].ID

	res, err := f.svc.AttachFile(ctx, f.clientActor, caseID, docID, pdfUpload("passport.pdf", "%PDF-1"), nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, models.DocumentStatusSubmitted, res.Document.Status)
	assert.Equal(t, 2, res.Document.Version)
	require.NotNil(t, res.Document.FileOriginalName)
	assert.Equal(t, "passport.pdf", *res.Document.FileOriginalName)
	assert.Equal(t, f.client.ID, *res.Document.UploadedByID)
	firstKey := *res.Document.FileKey

	t.Run("client notice goes to the assigned lawyer", func(t *testing.T) {
		var n models.Notification
		require.NoError(t, f.db.Where("user_id = ?", f.lawyer.ID).First(&n).Error)
		assert.Equal(t, models.NotificationTypeDocumentSubmitted, n.Type)
		assert.Contains(t, n.Message, "Passport")
		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, []string{f.lawyer.Email}, f.mailer.sent[0].To)
	})

	t.Run("client cannot attach to a submitted document", func(t *testing.T) {
		_, err := f.svc.AttachFile(ctx, f.clientActor, caseID, docID, pdfUpload("again.pdf", "%PDF-2"), nil)
		assert.True(t, errors.Is(err, errors.Forbidden))
	})

	t.Run("requires_action reopens the document for the client", func(t *testing.T) {
		_, err := f.svc.ReviewDocument(ctx, f.staffActor, caseID, docID, ReviewInput{
			Status: statusPtr(models.DocumentStatusRequiresAction),
			Notes:  statusPtr("Page 2 is missing"),
		})
		require.NoError(t, err)

		res, err := f.svc.AttachFile(ctx, f.clientActor, caseID, docID, pdfUpload("passport-full.pdf", "%PDF-3"), nil)
		require.NoError(t, err)
		assert.Equal(t, models.DocumentStatusSubmitted, res.Document.Status)
		assert.Nil(t, res.Document.ReviewerNotes, "client upload clears reviewer notes")
		assert.NotEqual(t, firstKey, *res.Document.FileKey)

		// the replaced file is gone, the new one is readable
		_, _, err = f.storage.Get(ctx, firstKey)
		assert.True(t, errors.Is(err, errors.NotFound))
		r, _, doc, err := f.svc.OpenDocumentFile(ctx, f.clientActor, caseID, docID)
		require.NoError(t, err)
		defer r.Close()
		data, _ := io.ReadAll(r)
		assert.Equal(t, "%PDF-3", string(data))
		assert.Equal(t, "passport-full.pdf", *doc.FileOriginalName)
	})

	t.Run("approved is terminal for the client but not for staff", func(t *testing.T) {
		_, err := f.svc.ReviewDocument(ctx, f.staffActor, caseID, docID, ReviewInput{Status: statusPtr(models.DocumentStatusApproved)})
		require.NoError(t, err)

		_, err = f.svc.AttachFile(ctx, f.clientActor, caseID, docID, pdfUpload("late.pdf", "%PDF-4"), nil)
		assert.True(t, errors.Is(err, errors.Forbidden))

		res, err := f.svc.AttachFile(ctx, f.staffActor, caseID, docID, pdfUpload("certified.pdf", "%PDF-5"), nil)
		require.NoError(t, err)
		assert.Equal(t, models.DocumentStatusSubmitted, res.Document.Status)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		_, err := f.svc.AttachFile(ctx, f.staffActor, caseID, docID, pdfUpload("x.pdf", "%PDF"), intPtr(1))
		assert.True(t, errors.Is(err, ErrConflict))
	})

	t.Run("invalid files are rejected before storage", func(t *testing.T) {
		f.svc.Limits = UploadLimits{MaxBytes: 4, AllowedTypes: []string{"application/pdf"}}
		defer func() { f.svc.Limits = UploadLimits{} }()

		_, err := f.svc.AttachFile(ctx, f.staffActor, caseID, docID, pdfUpload("big.pdf", "%PDF-too-big"), nil)
		assert.True(t, errors.Is(err, errors.NotValid))

		exe := FileUpload{Filename: "run.exe", ContentType: "application/x-msdownload", Size: 2, Reader: strings.NewReader("MZ")}
		_, err = f.svc.AttachFile(ctx, f.staffActor, caseID, docID, exe, nil)
		assert.True(t, errors.Is(err, errors.NotValid))
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := f.svc.AttachFile(ctx, f.staffActor, caseID, "missing", pdfUpload("x.pdf", "%PDF"), nil)
		assert.True(t, errors.Is(err, errors.NotFound))
	})
}

func TestAttachFileStorageFailures(t *testing.T) {
	ctx := context.Background()
	f := newTimelineFixture(t)
	docs, err := f.svc.SeedRequirements(f.staffActor, f.caseRec.ID, []string{"Passport"})
	require.NoError(t, err)

	t.Run("upload failure leaves the document untouched", func(t *testing.T) {
		storage := new(MockStorageProvider)
		storage.On("UploadReader", mock.Anything, mock.Anything, mock.Anything, "application/pdf", int64(4)).
			Return(nil, errors.New("bucket unavailable"))
		f.svc.Storage = storage

		_, err := f.svc.AttachFile(ctx, f.clientActor, f.caseRec.ID, docs[0].ID, pdfUpload("p.pdf", "%PDF"), nil)
		require.Error(t, err)
		storage.AssertExpectations(t)

		var doc models.CaseDocument
		require.NoError(t, f.db.First(&doc, "id = ?", docs[0].ID).Error)
		assert.Equal(t, models.DocumentStatusPending, doc.Status)
		assert.Equal(t, 1, doc.Version)
	})

	t.Run("old file deletion failure is a warning", func(t *testing.T) {
		storage := new(MockStorageProvider)
		storage.On("UploadReader", mock.Anything, mock.Anything, mock.Anything, "application/pdf", int64(4)).
			Return(func(_ context.Context, _ io.Reader, key, ct string, size int64) *StorageResult {
				return &StorageResult{Key: key, FileSize: size, MimeType: ct}
			}, nil)
		storage.On("Delete", mock.Anything, "firms/old/file.pdf").Return(errors.New("delete refused"))
		f.svc.Storage = storage

		require.NoError(t, f.db.Model(&models.CaseDocument{}).Where("id = ?", docs[0].ID).
			Update("file_key", "firms/old/file.pdf").Error)

		res, err := f.svc.AttachFile(ctx, f.staffActor, f.caseRec.ID, docs[0].ID, pdfUpload("p.pdf", "%PDF"), nil)
		require.NoError(t, err)
		assert.Equal(t, models.DocumentStatusSubmitted, res.Document.Status)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, models.OutboxKindDeleteFile, res.Warnings[0].Kind)
		storage.AssertExpectations(t)

		var task models.OutboxTask
		require.NoError(t, f.db.Where("kind = ? AND entity_id = ?", models.OutboxKindDeleteFile, docs[0].ID).First(&task).Error)
		assert.Equal(t, models.OutboxStatusFailed, task.Status)
		require.NotNil(t, task.LastError)
		assert.Contains(t, *task.LastError, "delete refused")
	})
}

func TestReviewDocument(t *testing.T) {
	ctx := context.Background()
	f := newTimelineFixture(t)
	docs, err := f.svc.SeedRequirements(f.staffActor, f.caseRec.ID, []string{"Passport"})
	require.NoError(t, err)
	docID := docs[0].ID

	res, err := f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{
		Status: statusPtr(models.DocumentStatusRejected),
		Notes:  statusPtr("<b>Expired</b> passport"),
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.DocumentStatusRejected, res.Document.Status)
	assert.Equal(t, "Expired passport", *res.Document.ReviewerNotes)
	assert.Equal(t, f.lawyer.ID, *res.Document.ReviewedByID)
	assert.Equal(t, 2, res.Document.Version)

	var n models.Notification
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", f.client.ID, models.NotificationTypeDocumentReviewed).First(&n).Error)
	assert.Contains(t, n.Message, "rejected")

	t.Run("same values report no change", func(t *testing.T) {
		res, err := f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{
			Status: statusPtr(models.DocumentStatusRejected),
			Notes:  statusPtr("Expired passport"),
		})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, 2, res.Document.Version)
	})

	t.Run("notes only keep the status", func(t *testing.T) {
		sent := len(f.mailer.sent)
		res, err := f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{Notes: statusPtr("Bring the renewal")})
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, models.DocumentStatusRejected, res.Document.Status)
		assert.Len(t, f.mailer.sent, sent, "no notice without a status change")
	})

	t.Run("not_required is a staff override", func(t *testing.T) {
		res, err := f.svc.ReviewDocument(ctx, f.adminActor, f.caseRec.ID, docID, ReviewInput{Status: statusPtr(models.DocumentStatusNotRequired)})
		require.NoError(t, err)
		assert.Equal(t, models.DocumentStatusNotRequired, res.Document.Status)

		list, err := f.svc.ListCaseDocuments(f.staffActor, f.caseRec.ID)
		require.NoError(t, err)
		assert.True(t, list.Summary.RequiredComplete)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{})
		assert.True(t, errors.Is(err, errors.NotValid))

		_, err = f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{Status: statusPtr("lost")})
		assert.True(t, errors.Is(err, errors.NotValid))

		_, err = f.svc.ReviewDocument(ctx, f.staffActor, f.caseRec.ID, docID, ReviewInput{
			Status:          statusPtr(models.DocumentStatusApproved),
			ExpectedVersion: intPtr(1),
		})
		assert.True(t, errors.Is(err, ErrConflict))
	})

	t.Run("clients cannot review", func(t *testing.T) {
		_, err := f.svc.ReviewDocument(ctx, f.clientActor, f.caseRec.ID, docID, ReviewInput{Status: statusPtr(models.DocumentStatusApproved)})
		assert.True(t, errors.Is(err, errors.Forbidden))
	})
}

func TestUploadAdHocDocument(t *testing.T) {
	ctx := context.Background()
	f := newTimelineFixture(t)

	res, err := f.svc.UploadAdHocDocument(ctx, f.staffActor, f.caseRec.ID, "", pdfUpload("court-order.pdf", "%PDF"))
	require.NoError(t, err)
	assert.False(t, res.Document.IsRequired)
	assert.Equal(t, "court-order.pdf", res.Document.Name)
	assert.Equal(t, models.DocumentStatusSubmitted, res.Document.Status)
	assert.Equal(t, "/api/cases/"+f.caseRec.ID+"/documents/"+res.Document.ID+"/file", res.Document.GetDownloadURL())

	// staff upload notifies the client
	var n models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.client.ID).First(&n).Error)
	assert.Equal(t, models.NotificationTypeDocumentUploaded, n.Type)

	var audit models.AuditLog
	require.NoError(t, f.db.Where("resource_id = ?", res.Document.ID).First(&audit).Error)
	assert.Equal(t, models.AuditActionUpload, audit.Action)

	list, err := f.svc.ListCaseDocuments(f.staffActor, f.caseRec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Summary.RequiredTotal)
	assert.True(t, list.Summary.RequiredComplete)
}

func TestOpenDocumentFileWithoutFile(t *testing.T) {
	f := newTimelineFixture(t)
	docs, err := f.svc.SeedRequirements(f.staffActor, f.caseRec.ID, []string{"Passport"})
	require.NoError(t, err)

	_, _, _, err = f.svc.OpenDocumentFile(context.Background(), f.staffActor, f.caseRec.ID, docs[0].ID)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestDocumentFileURL(t *testing.T) {
	ctx := context.Background()
	f := newTimelineFixture(t)
	docs, err := f.svc.SeedRequirements(f.staffActor, f.caseRec.ID, []string{"Passport"})
	require.NoError(t, err)

	_, err = f.svc.DocumentFileURL(ctx, f.clientActor, f.caseRec.ID, docs[0].ID)
	assert.True(t, errors.Is(err, errors.NotFound), "no file attached yet")

	res, err := f.svc.AttachFile(ctx, f.clientActor, f.caseRec.ID, docs[0].ID, pdfUpload("p.pdf", "%PDF"), nil)
	require.NoError(t, err)

	t.Run("local storage streams instead", func(t *testing.T) {
		_, err := f.svc.DocumentFileURL(ctx, f.clientActor, f.caseRec.ID, docs[0].ID)
		assert.True(t, errors.Is(err, errors.NotSupported))
	})

	t.Run("signing storage returns a link", func(t *testing.T) {
		storage := new(MockStorageProvider)
		storage.On("GetSignedURL", mock.Anything, *res.Document.FileKey, signedURLExpiry).
			Return("https://bucket.test/passport?sig=abc", nil)
		f.svc.Storage = storage

		url, err := f.svc.DocumentFileURL(ctx, f.clientActor, f.caseRec.ID, docs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "https://bucket.test/passport?sig=abc", url)
		storage.AssertExpectations(t)
	})

	t.Run("other tenants cannot sign", func(t *testing.T) {
		outsider := f.clientActor
		outsider.FirmID = "other-firm"
		_, err := f.svc.DocumentFileURL(ctx, outsider, f.caseRec.ID, docs[0].ID)
		assert.True(t, errors.Is(err, errors.NotFound))
	})
}
